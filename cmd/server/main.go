// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/app"
	"github.com/unclebandit/wacrm-dispatch/internal/config"
	"github.com/unclebandit/wacrm-dispatch/internal/controller"
	"github.com/unclebandit/wacrm-dispatch/internal/handler"
	"github.com/unclebandit/wacrm-dispatch/internal/logging"
	"github.com/unclebandit/wacrm-dispatch/internal/scheduler"
)

func main() {
	// Load .env
	envErr := godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if envErr != nil {
		log.Debug().Msg("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	if cfg.Dispatch.InProcess {
		// The broker keeps unacked jobs; only the in-memory queue starts empty.
		if cfg.Queue.Driver == config.DriverMemory {
			if _, err := a.Campaigns.ResumeRunning(ctx); err != nil {
				return err
			}
		}
		a.Worker.Start()
	} else {
		log.Info().Msg("in-process dispatch disabled, run cmd/worker to send campaigns")
	}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.Spec, func(ctx context.Context) {
			n, err := a.Campaigns.StartDueCampaigns(ctx)
			if err != nil {
				log.Error().Err(err).Msg("start scheduled campaigns")
				return
			}
			if n > 0 {
				log.Info().Int("started", n).Msg("scheduled campaigns started")
			}
		}, log)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	router := handler.NewRouter(handler.Routes{
		Campaigns:     &controller.CampaignController{CampaignService: a.Campaigns, Log: log},
		Contacts:      &controller.ContactController{ContactService: a.Contacts, Log: log},
		Gateway:       &controller.GatewayController{Gateway: a.Gateway, Log: log},
		Webhooks:      &controller.WebhookController{StatusService: a.Statuses, Log: log},
		WorkerRunning: a.Worker.IsRunning,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Address).
			Str("storage", cfg.Storage.Driver).
			Str("queue", cfg.Queue.Driver).
			Bool("simulation", a.Gateway.SimulationMode()).
			Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
