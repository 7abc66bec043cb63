package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/app"
	"github.com/unclebandit/wacrm-dispatch/internal/config"
	"github.com/unclebandit/wacrm-dispatch/internal/logging"
)

// The standalone worker consumes the dispatch queue that cmd/server publishes to
// when DISPATCH_IN_PROCESS=false.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.Queue.Driver != config.DriverAMQP {
		log.Warn().Str("queue", cfg.Queue.Driver).Msg("worker is not sharing a broker with the server, only locally enqueued campaigns will be sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("worker setup failed")
	}
	defer a.Close()

	run(ctx, a, log)
}

// run consumes until ctx is cancelled. The campaign in flight stops after its current
// recipient and keeps the rest pending.
func run(ctx context.Context, a *app.App, log zerolog.Logger) {
	a.Worker.Start()
	log.Info().Msg("worker running, waiting for campaigns...")

	<-ctx.Done()
	a.Worker.Stop()
}
