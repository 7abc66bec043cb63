package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/gateway"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/queue"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
	"github.com/unclebandit/wacrm-dispatch/internal/service"
)

type sendCall struct {
	Phone string
	Text  string
	At    time.Time
}

// fakeGateway records every send; sendFn decides the outcome (success by default).
type fakeGateway struct {
	mu     sync.Mutex
	calls  []sendCall
	sim    bool
	sendFn func(call int, phone, text string) (*gateway.SendResult, error)
}

func (g *fakeGateway) SendText(ctx context.Context, phone, text string) (*gateway.SendResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, sendCall{Phone: phone, Text: text, At: time.Now()})
	n := len(g.calls)
	fn := g.sendFn
	g.mu.Unlock()

	if fn != nil {
		return fn(n, phone, text)
	}
	return &gateway.SendResult{
		ProviderMessageID:      fmt.Sprintf("prov-%d", n),
		ProviderConversationID: fmt.Sprintf("zaap-%d", n),
	}, nil
}

func (g *fakeGateway) SendImage(ctx context.Context, phone, imageURL, caption string) (*gateway.SendResult, error) {
	return nil, errors.New("not supported")
}

func (g *fakeGateway) SendDocument(ctx context.Context, phone, documentURL, fileName string) (*gateway.SendResult, error) {
	return nil, errors.New("not supported")
}

func (g *fakeGateway) ReadMessage(ctx context.Context, phone, messageID string) error { return nil }

func (g *fakeGateway) ConnectionStatus(ctx context.Context) (gateway.ConnectionStatus, error) {
	return gateway.ConnectionStatus{}, nil
}

func (g *fakeGateway) QRCode(ctx context.Context) (string, error) { return "", nil }
func (g *fakeGateway) Disconnect(ctx context.Context) error       { return nil }
func (g *fakeGateway) Configured() bool                           { return !g.sim }
func (g *fakeGateway) SimulationMode() bool                       { return g.sim }

func (g *fakeGateway) Calls() []sendCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sendCall(nil), g.calls...)
}

type fixture struct {
	store    *repository.MemoryStore
	contacts *repository.MemoryContactRepository
	messages *repository.MemoryMessageRepository
	queue    *queue.InMemoryQueue
	svc      *service.CampaignService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	q := queue.NewInMemoryQueue()
	t.Cleanup(func() { _ = q.Close() })

	return &fixture{
		store:    store,
		contacts: store.Contacts(),
		messages: store.Messages(),
		queue:    q,
		svc: &service.CampaignService{
			CampaignRepo:     store.Campaigns(),
			MessageRepo:      store.Messages(),
			ContactRepo:      store.Contacts(),
			Queue:            q,
			Log:              zerolog.Nop(),
			DefaultRateLimit: model.DefaultRateLimit,
		},
	}
}

func (f *fixture) addContacts(t *testing.T, contacts ...*model.Contact) {
	t.Helper()
	for _, c := range contacts {
		if err := f.contacts.Create(context.Background(), c); err != nil {
			t.Fatalf("create contact: %v", err)
		}
	}
}

// newCampaign creates a campaign over every eligible contact.
func (f *fixture) newCampaign(t *testing.T, rateLimit int, template string) *model.Campaign {
	t.Helper()
	res, err := f.svc.CreateCampaign(context.Background(), service.CreateCampaignInput{
		Name:         "Black Friday",
		TemplateText: template,
		RateLimit:    rateLimit,
	})
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return res.Campaign
}

func (f *fixture) worker(gw gateway.Client, mutate ...func(*service.WorkerDeps)) *service.Worker {
	deps := service.WorkerDeps{
		Campaigns: f.store.Campaigns(),
		Messages:  f.store.Messages(),
		Contacts:  f.store.Contacts(),
		Gateway:   gw,
		Queue:     f.queue,
	}
	for _, m := range mutate {
		m(&deps)
	}
	return service.NewWorker(deps, zerolog.Nop())
}

func (f *fixture) messagesOf(t *testing.T, campaignID int64) []*model.CampaignMessage {
	t.Helper()
	msgs, err := f.messages.ListByCampaign(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("ListByCampaign: %v", err)
	}
	return msgs
}

func (f *fixture) campaign(t *testing.T, id int64) *model.Campaign {
	t.Helper()
	c, err := f.store.Campaigns().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%d): %v", id, err)
	}
	return c
}

func threeContacts() []*model.Contact {
	return []*model.Contact{
		{Name: "Ana", Phone: "+55 (11) 99999-0001", Tags: []string{"lead"}},
		{Name: "Bruno", Phone: "11999990002", Tags: []string{"vip"}},
		{Name: "Carla", Phone: "5511999990003", Tags: []string{"lead", "vip"}},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
