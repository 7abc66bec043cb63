// Package app wires storage, transport, gateway and services from configuration.
// Both the HTTP server and the standalone worker are built from it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/cache"
	"github.com/unclebandit/wacrm-dispatch/internal/config"
	"github.com/unclebandit/wacrm-dispatch/internal/gateway"
	"github.com/unclebandit/wacrm-dispatch/internal/queue"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

type App struct {
	Config  *config.Config
	Store   *repository.Store
	Queue   queue.Queue
	Gateway gateway.Client
	// Cache is nil when Redis is not configured.
	Cache      cache.MessageCache
	Progressor *service.Progressor

	Campaigns *service.CampaignService
	Contacts  *service.ContactService
	Statuses  *service.StatusService
	Worker    *service.Worker

	stopProgressor context.CancelFunc
	closers        []func() error
}

// New connects everything cfg asks for. On error, whatever was opened is closed again.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx, cfg, log); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := repository.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, a.Store.Close)

	switch cfg.Queue.Driver {
	case config.DriverAMQP:
		q, err := queue.DialAMQP(cfg.Queue.AMQPURL, cfg.Queue.AMQPQueue, log)
		if err != nil {
			return err
		}
		a.Queue = q
	default:
		a.Queue = queue.NewInMemoryQueue()
	}
	a.closers = append(a.closers, a.Queue.Close)

	if cfg.Redis.Enabled {
		rc, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
		log.Info().Str("addr", cfg.Redis.Address).Msg("provider reference cache enabled")
	}

	a.Gateway = gateway.New(cfg.Gateway, log)
	if a.Gateway.SimulationMode() {
		pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.stopProgressor = cancel
		a.Progressor = service.NewProgressor(pctx, a.Store.Messages, service.DefaultProgressionConfig(), log)
	}

	a.Campaigns = &service.CampaignService{
		CampaignRepo:     a.Store.Campaigns,
		MessageRepo:      a.Store.Messages,
		ContactRepo:      a.Store.Contacts,
		Queue:            a.Queue,
		Log:              log.With().Str("component", "campaign_service").Logger(),
		DefaultRateLimit: cfg.Dispatch.DefaultRateLimit,
	}
	a.Contacts = &service.ContactService{
		ContactRepo: a.Store.Contacts,
		Log:         log.With().Str("component", "contact_service").Logger(),
	}
	a.Statuses = &service.StatusService{
		Messages: a.Store.Messages,
		Cache:    a.Cache,
		Log:      log.With().Str("component", "status_service").Logger(),
	}
	a.Worker = service.NewWorker(service.WorkerDeps{
		Campaigns:   a.Store.Campaigns,
		Messages:    a.Store.Messages,
		Contacts:    a.Store.Contacts,
		Gateway:     a.Gateway,
		Queue:       a.Queue,
		Cache:       a.Cache,
		Progressor:  a.Progressor,
		SendTimeout: cfg.Gateway.Timeout,
	}, log)

	return nil
}

// Close stops the worker, abandons pending progressions and closes connections in
// reverse order of opening.
func (a *App) Close() error {
	if a.Worker != nil {
		a.Worker.Stop()
	}
	if a.stopProgressor != nil {
		a.stopProgressor()
		a.Progressor.Wait()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
