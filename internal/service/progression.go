package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
)

// DelayRange is an inclusive [Min, Max] wait.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

func (d DelayRange) pick(rnd func(n int64) int64) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rnd(int64(d.Max-d.Min)+1))
}

// ProgressionConfig shapes the synthetic delivery lifecycle of simulated sends.
type ProgressionConfig struct {
	Delivered DelayRange
	Read      DelayRange
	Replied   DelayRange

	ReadProbability  float64
	ReplyProbability float64
}

func DefaultProgressionConfig() ProgressionConfig {
	return ProgressionConfig{
		Delivered:        DelayRange{Min: time.Second, Max: 3 * time.Second},
		Read:             DelayRange{Min: 3 * time.Second, Max: 8 * time.Second},
		Replied:          DelayRange{Min: 8 * time.Second, Max: 15 * time.Second},
		ReadProbability:  0.5,
		ReplyProbability: 0.2,
	}
}

// Progressor walks simulated messages through delivered, read and replied in the
// background. Each message gets its own goroutine; every step is a forward-only write,
// so a step that lost a race with another writer is simply dropped.
type Progressor struct {
	ctx      context.Context
	messages repository.CampaignMessageRepositoryInterface
	cfg      ProgressionConfig
	log      zerolog.Logger
	now      func() time.Time

	wg sync.WaitGroup

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewProgressor binds the background tasks to ctx: cancelling it abandons every
// pending step.
func NewProgressor(ctx context.Context, messages repository.CampaignMessageRepositoryInterface, cfg ProgressionConfig, log zerolog.Logger) *Progressor {
	return &Progressor{
		ctx:      ctx,
		messages: messages,
		cfg:      cfg,
		log:      log.With().Str("component", "progressor").Logger(),
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Schedule starts the synthetic lifecycle of one sent message and returns immediately.
func (p *Progressor) Schedule(messageID int64) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Interface("panic", r).Int64("message_id", messageID).Msg("progression panic recovered")
			}
		}()
		p.run(messageID)
	}()
}

// Wait blocks until every scheduled progression has finished or been abandoned.
func (p *Progressor) Wait() {
	p.wg.Wait()
}

func (p *Progressor) run(messageID int64) {
	if !p.step(messageID, model.StatusDelivered, p.cfg.Delivered) {
		return
	}
	// read and replied are rolled independently.
	if p.chance(p.cfg.ReadProbability) {
		if !p.step(messageID, model.StatusRead, p.cfg.Read) {
			return
		}
	}
	if p.chance(p.cfg.ReplyProbability) {
		p.step(messageID, model.StatusReplied, p.cfg.Replied)
	}
}

// step waits a random delay then advances the message. It reports false when the
// progression should stop: context done, write error, or the message is failed.
func (p *Progressor) step(messageID int64, to model.MessageStatus, delay DelayRange) bool {
	t := time.NewTimer(delay.pick(p.int63n))
	defer t.Stop()

	select {
	case <-p.ctx.Done():
		return false
	case <-t.C:
	}

	ok, err := p.messages.AdvanceStatus(p.ctx, messageID, to, p.now())
	if err != nil {
		p.log.Warn().Err(err).Int64("message_id", messageID).Str("status", string(to)).Msg("progression write failed")
		return false
	}
	if !ok {
		// Already further along (or failed); later steps may still apply.
		m, err := p.messages.GetByID(p.ctx, messageID)
		if err != nil || m == nil || m.Status == model.StatusFailed {
			return false
		}
		return true
	}

	p.log.Debug().Int64("message_id", messageID).Str("status", string(to)).Msg("simulated status update")
	return true
}

func (p *Progressor) chance(prob float64) bool {
	if prob <= 0 {
		return false
	}
	if prob >= 1 {
		return true
	}
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return p.rnd.Float64() < prob
}

func (p *Progressor) int63n(n int64) int64 {
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return p.rnd.Int63n(n)
}
