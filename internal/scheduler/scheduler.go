package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs tickFn once on Start and then on every activation of a cron spec.
// Ticks never overlap: an activation that fires while a tick is still running is skipped.
type Scheduler struct {
	schedule cron.Schedule
	spec     string
	tickFn   func(context.Context)
	log      zerolog.Logger

	running atomic.Bool

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	done   chan struct{}
}

// New parses spec as a standard five-field cron expression or a descriptor such as "@every 30s".
func New(spec string, tickFn func(context.Context), log zerolog.Logger) (*Scheduler, error) {
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		schedule: schedule,
		spec:     spec,
		tickFn:   tickFn,
		log:      log.With().Str("component", "scheduler").Logger(),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	var busy sync.Mutex
	job := cron.FuncJob(func() {
		if !busy.TryLock() {
			s.log.Debug().Msg("previous tick still running, skipping")
			return
		}
		defer busy.Unlock()
		s.safeTick(ctx)
	})

	s.cron = cron.New()
	s.cron.Schedule(s.schedule, job)

	go func() {
		defer close(s.done)
		s.log.Info().Str("spec", s.spec).Msg("scheduler started")
		job.Run()
	}()
	s.cron.Start()

	return true
}

// Stop cancels the tick context and waits for a running tick to return.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.cron.Stop().Done()
	<-s.done
	s.running.Store(false)

	s.log.Info().Msg("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("scheduler tick panic recovered")
		}
	}()

	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.tickFn(ctx)
	s.log.Debug().Int64("duration_ms", time.Since(start).Milliseconds()).Msg("scheduler tick completed")
}
