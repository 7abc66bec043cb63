package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/app"
	"github.com/unclebandit/wacrm-dispatch/internal/config"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

func TestWorker(t *testing.T) {
	cfg := &config.Config{
		Storage:  config.StorageConfig{Driver: config.DriverMemory},
		Queue:    config.QueueConfig{Driver: config.DriverMemory},
		Dispatch: config.DispatchConfig{DefaultRateLimit: 6000},
		Gateway:  config.GatewayConfig{Timeout: time.Second},
	}
	a, err := app.New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	defer a.Close()

	bg := context.Background()
	for _, name := range []string{"Ana", "Bia"} {
		if _, err := a.Contacts.CreateContact(bg, service.CreateContactInput{Name: name, Phone: "11999990001"}); err != nil {
			t.Fatalf("CreateContact: %v", err)
		}
	}
	res, err := a.Campaigns.CreateCampaign(bg, service.CreateCampaignInput{Name: "Promo", TemplateText: "Hi {{name}}"})
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	if _, err := a.Campaigns.StartCampaign(bg, res.Campaign.ID); err != nil {
		t.Fatalf("StartCampaign: %v", err)
	}

	ctx, cancel := context.WithCancel(bg)
	done := make(chan struct{})
	go func() {
		run(ctx, a, zerolog.Nop())
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		c, _ := a.Store.Campaigns.GetByID(bg, res.Campaign.ID)
		if c.Status == model.CampaignCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("campaign not completed, status %s", c.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
	if a.Worker.IsRunning() {
		t.Fatalf("expected worker stopped")
	}

	stats, _ := a.Store.Messages.Stats(bg, res.Campaign.ID)
	if stats.Pending != 0 || stats.Failed != 0 {
		t.Fatalf("expected every message sent, got %+v", stats)
	}
}
