package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/wacrm-dispatch/internal/cache"
	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/gateway"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/queue"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
)

// errCampaignGone stops a run whose campaign was deleted underneath it.
var errCampaignGone = errors.New("campaign no longer exists")

// WorkerDeps groups what the dispatch worker talks to. Cache and Progressor are optional.
type WorkerDeps struct {
	Campaigns repository.CampaignRepositoryInterface
	Messages  repository.CampaignMessageRepositoryInterface
	Contacts  repository.ContactRepositoryInterface
	Gateway   gateway.Client
	Queue     queue.Queue

	Cache      cache.MessageCache
	Progressor *Progressor

	// SendTimeout bounds a single gateway call. Zero leaves it to the gateway client.
	SendTimeout time.Duration
}

// Worker drains the dispatch queue, one campaign at a time, sending every pending
// message of the campaign at the campaign's rate limit.
type Worker struct {
	deps WorkerDeps
	log  zerolog.Logger
	now  func() time.Time

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// RunSummary describes one pass of ProcessCampaign.
type RunSummary struct {
	CampaignID  int64
	Pending     int
	Processed   int
	Sent        int
	Failed      int
	Skipped     int
	Duration    time.Duration
	Completed   bool
	Interrupted bool
}

func NewWorker(deps WorkerDeps, log zerolog.Logger) *Worker {
	return &Worker{
		deps: deps,
		log:  log.With().Str("component", "dispatch_worker").Logger(),
		now:  time.Now,
	}
}

// Start launches the consumer loop. It returns false if the worker is already running.
func (w *Worker) Start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running.Store(true)

	go func() {
		defer close(w.done)
		w.log.Info().Msg("dispatch worker started")
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
			w.log.Error().Err(err).Msg("dispatch worker stopped unexpectedly")
		}
	}()

	return true
}

// Stop stops taking new campaigns and waits for the current recipient to finish.
func (w *Worker) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return false
	}

	w.cancel()
	<-w.done
	w.running.Store(false)

	w.log.Info().Msg("dispatch worker stopped")
	return true
}

func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// Run consumes the queue until ctx is cancelled or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	return w.deps.Queue.Consume(ctx, w.handle)
}

// handle is the queue callback: it never lets a failed or panicking run reach the
// consumer loop.
func (w *Worker) handle(ctx context.Context, campaignID int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Int64("campaign_id", campaignID).Msg("campaign run panic recovered")
			err = fmt.Errorf("campaign %d: panic: %v", campaignID, r)
		}
	}()

	if _, err := w.ProcessCampaign(ctx, campaignID); err != nil {
		w.log.Error().Err(err).Int64("campaign_id", campaignID).Msg("campaign run aborted")
		return err
	}
	return nil
}

// ProcessCampaign sends every pending message of the campaign, then marks it
// completed. A missing campaign is a no-op. Gateway failures only fail the message
// at hand; a persistence error aborts the run and is returned. When ctx is cancelled
// the run stops between recipients and the campaign keeps its pending messages.
func (w *Worker) ProcessCampaign(ctx context.Context, campaignID int64) (*RunSummary, error) {
	log := w.log.With().Int64("campaign_id", campaignID).Logger()

	campaign, err := w.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			log.Info().Msg("campaign not found, nothing to dispatch")
			return nil, nil
		}
		return nil, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}

	pending, err := w.deps.Messages.ListPending(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load pending messages of campaign %d: %w", campaignID, err)
	}

	summary := &RunSummary{CampaignID: campaignID, Pending: len(pending)}
	if len(pending) == 0 && campaign.Status == model.CampaignCompleted {
		log.Info().Msg("campaign already completed, nothing pending")
		return summary, nil
	}

	interval := campaign.SendInterval()
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	start := w.now()

	log.Info().
		Int("pending", len(pending)).
		Int("rate_limit", campaign.RateLimit).
		Dur("interval", interval).
		Msg("campaign dispatch started")

	for _, msg := range pending {
		// Skipped recipients are paced like sent ones.
		if err := limiter.Wait(ctx); err != nil {
			summary.Interrupted = true
			break
		}

		outcome, err := w.processMessage(ctx, campaign, msg)
		if err != nil {
			summary.Duration = w.now().Sub(start)
			if errors.Is(err, errCampaignGone) {
				log.Warn().Int("processed", summary.Processed).Msg("campaign deleted during dispatch, stopping")
				return summary, nil
			}
			return summary, fmt.Errorf("campaign %d message %d: %w", campaignID, msg.ID, err)
		}

		summary.Processed++
		switch outcome {
		case outcomeSent:
			summary.Sent++
		case outcomeFailed:
			summary.Failed++
		case outcomeSkipped:
			summary.Skipped++
		}
	}
	summary.Duration = w.now().Sub(start)

	if summary.Interrupted {
		log.Warn().
			Int("processed", summary.Processed).
			Int("remaining", summary.Pending-summary.Processed).
			Msg("campaign dispatch interrupted, remaining messages stay pending")
		return summary, nil
	}

	completedAt := w.now()
	campaign.Status = model.CampaignCompleted
	campaign.CompletedAt = &completedAt
	if err := w.deps.Campaigns.Update(context.WithoutCancel(ctx), campaign); err != nil {
		if appErrors.IsNotFound(err) {
			log.Warn().Msg("campaign deleted before completion")
			return summary, nil
		}
		return summary, fmt.Errorf("complete campaign %d: %w", campaignID, err)
	}
	summary.Completed = true

	log.Info().
		Int("processed", summary.Processed).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("campaign completed")
	return summary, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
	outcomeUnchanged
)

// processMessage handles one recipient. Once started it runs to the end even if ctx
// is cancelled. Only persistence problems are returned as errors.
func (w *Worker) processMessage(ctx context.Context, campaign *model.Campaign, msg *model.CampaignMessage) (res outcome, err error) {
	ctx = context.WithoutCancel(ctx)
	log := w.log.With().
		Int64("campaign_id", campaign.ID).
		Int64("message_id", msg.ID).
		Int64("contact_id", msg.ContactID).
		Logger()

	// Once the send is recorded the row must stay sent, whatever fails afterwards.
	persisted := false
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bool("persisted", persisted).Msg("recipient processing panic recovered")
			if persisted {
				res, err = outcomeSent, nil
				return
			}
			res, err = w.fail(ctx, campaign.ID, msg, fmt.Sprintf("panic: %v", r), outcomeFailed)
		}
	}()

	contact, err := w.deps.Contacts.GetByID(ctx, msg.ContactID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("load contact %d: %w", msg.ContactID, err)
	}
	if contact == nil {
		log.Info().Str("outcome", "skipped").Msg("recipient no longer exists")
		return w.fail(ctx, campaign.ID, msg, "contact not found", outcomeSkipped)
	}
	if contact.OptedOut {
		log.Info().Str("outcome", "skipped").Str("phone", contact.Phone).Msg("recipient opted out")
		return w.fail(ctx, campaign.ID, msg, "contact opted out", outcomeSkipped)
	}

	text := RenderTemplate(campaign.TemplateText, ContactPlaceholders(contact))

	sent, sendErr := w.send(ctx, contact.Phone, text)
	if sendErr != nil {
		log.Warn().Err(sendErr).Str("phone", contact.Phone).Str("outcome", "failed").Msg("send failed")
		return w.fail(ctx, campaign.ID, msg, sendErr.Error(), outcomeFailed)
	}

	at := w.now()
	if err := w.write(ctx, campaign.ID, func() (bool, error) {
		return w.deps.Messages.MarkSent(ctx, msg.ID, sent.ProviderMessageID, sent.ProviderConversationID, at)
	}); err != nil {
		return outcomeUnchanged, err
	}
	persisted = true

	log.Info().
		Str("phone", contact.Phone).
		Str("provider_message_id", sent.ProviderMessageID).
		Str("outcome", "sent").
		Msg("message sent")

	if w.deps.Cache != nil {
		if err := w.deps.Cache.StoreSent(ctx, msg.ID, sent.ProviderMessageID, at); err != nil {
			log.Warn().Err(err).Msg("cache provider reference failed")
		}
	}
	if w.deps.Progressor != nil && w.deps.Gateway.SimulationMode() {
		w.deps.Progressor.Schedule(msg.ID)
	}
	return outcomeSent, nil
}

// send calls the gateway, turning panics and empty references into errors.
func (w *Worker) send(ctx context.Context, phone, text string) (res *gateway.SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: panic: %v", gateway.ErrSendFailed, r)
		}
	}()

	if w.deps.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.deps.SendTimeout)
		defer cancel()
	}

	res, err = w.deps.Gateway.SendText(ctx, phone, text)
	if err != nil {
		return nil, err
	}
	if res == nil || (res.ProviderMessageID == "" && res.ProviderConversationID == "") {
		return nil, fmt.Errorf("%w: no provider reference returned", gateway.ErrSendFailed)
	}
	return res, nil
}

func (w *Worker) fail(ctx context.Context, campaignID int64, msg *model.CampaignMessage, reason string, o outcome) (outcome, error) {
	at := w.now()
	if err := w.write(ctx, campaignID, func() (bool, error) {
		return w.deps.Messages.MarkFailed(ctx, msg.ID, reason, at)
	}); err != nil {
		return outcomeUnchanged, err
	}
	return o, nil
}

// write runs a guarded status write on a row this run owns. A rejected write means
// someone else touched the row; when the campaign itself is gone the run stops.
func (w *Worker) write(ctx context.Context, campaignID int64, fn func() (bool, error)) error {
	ok, err := fn()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if _, err := w.deps.Campaigns.GetByID(ctx, campaignID); err != nil {
		if appErrors.IsNotFound(err) {
			return errCampaignGone
		}
		return err
	}
	w.log.Warn().Int64("campaign_id", campaignID).Msg("message status changed concurrently, write skipped")
	return nil
}
