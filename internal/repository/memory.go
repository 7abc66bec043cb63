package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
)

// MemoryStore keeps campaigns, messages and contacts in process memory. It backs the
// "memory" storage driver and the package tests of the services built on top of it.
// Values are copied in and out so callers never share state with the store.
type MemoryStore struct {
	mu sync.Mutex

	campaigns map[int64]*model.Campaign
	messages  map[int64]*model.CampaignMessage
	contacts  map[int64]*model.Contact

	nextCampaignID int64
	nextMessageID  int64
	nextContactID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: map[int64]*model.Campaign{},
		messages:  map[int64]*model.CampaignMessage{},
		contacts:  map[int64]*model.Contact{},
	}
}

func (s *MemoryStore) Campaigns() *MemoryCampaignRepository { return &MemoryCampaignRepository{s: s} }
func (s *MemoryStore) Messages() *MemoryMessageRepository   { return &MemoryMessageRepository{s: s} }
func (s *MemoryStore) Contacts() *MemoryContactRepository   { return &MemoryContactRepository{s: s} }

// DeleteCampaign drops a campaign and its messages.
func (s *MemoryStore) DeleteCampaign(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.campaigns, id)
	for mid, m := range s.messages {
		if m.CampaignID == id {
			delete(s.messages, mid)
		}
	}
}

// ====================== Campaigns ======================

type MemoryCampaignRepository struct {
	s *MemoryStore
}

func (r *MemoryCampaignRepository) CreateWithMessages(ctx context.Context, c *model.Campaign, contactIDs []int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c.CreatedAt = now
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.RateLimit <= 0 {
		c.RateLimit = model.DefaultRateLimit
	}
	s.nextCampaignID++
	c.ID = s.nextCampaignID
	s.campaigns[c.ID] = copyCampaign(c)

	seen := map[int64]bool{}
	for _, contactID := range contactIDs {
		if seen[contactID] {
			continue
		}
		seen[contactID] = true
		s.nextMessageID++
		s.messages[s.nextMessageID] = &model.CampaignMessage{
			ID:         s.nextMessageID,
			CampaignID: c.ID,
			ContactID:  contactID,
			Status:     model.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	return nil
}

func (r *MemoryCampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return copyCampaign(c), nil
}

func (r *MemoryCampaignRepository) List(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := []*model.Campaign{}
	for _, c := range r.s.campaigns {
		if status != "" && string(c.Status) != status {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	page := []*model.Campaign{}
	for i := offset; i < total && i < offset+limit; i++ {
		page = append(page, copyCampaign(all[i]))
	}
	return page, total, nil
}

func (r *MemoryCampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.campaigns[c.ID]; !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	now := time.Now()
	c.UpdatedAt = &now
	r.s.campaigns[c.ID] = copyCampaign(c)
	return nil
}

func (r *MemoryCampaignRepository) MarkRunning(ctx context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.campaigns[id]
	if !ok {
		return false, appErrors.NewCampaignNotFound(id)
	}
	if c.Status == model.CampaignRunning {
		return false, nil
	}
	started := at
	c.Status = model.CampaignRunning
	c.StartedAt = &started
	c.CompletedAt = nil
	c.UpdatedAt = &started
	return true, nil
}

func (r *MemoryCampaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	due := []*model.Campaign{}
	for _, c := range r.s.campaigns {
		if c.Status == model.CampaignDraft && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			due = append(due, copyCampaign(c))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(*due[j].ScheduledAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})
	return due, nil
}

// ====================== Messages ======================

type MemoryMessageRepository struct {
	s *MemoryStore
}

func (r *MemoryMessageRepository) ListPending(ctx context.Context, campaignID int64) ([]*model.CampaignMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	pending := []*model.CampaignMessage{}
	for _, m := range r.s.messages {
		if m.CampaignID == campaignID && m.Status == model.StatusPending {
			pending = append(pending, copyMessage(m))
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

// ListByCampaign returns every message of a campaign in id order.
func (r *MemoryMessageRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*model.CampaignMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	msgs := []*model.CampaignMessage{}
	for _, m := range r.s.messages {
		if m.CampaignID == campaignID {
			msgs = append(msgs, copyMessage(m))
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

func (r *MemoryMessageRepository) GetByID(ctx context.Context, id int64) (*model.CampaignMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(m), nil
}

func (r *MemoryMessageRepository) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*model.CampaignMessage, error) {
	if providerMessageID == "" {
		return nil, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var found *model.CampaignMessage
	for _, m := range r.s.messages {
		if m.ProviderMessageID == providerMessageID && (found == nil || m.ID > found.ID) {
			found = m
		}
	}
	if found == nil {
		return nil, nil
	}
	return copyMessage(found), nil
}

func (r *MemoryMessageRepository) MarkSent(ctx context.Context, id int64, providerMessageID, providerConversationID string, at time.Time) (bool, error) {
	return r.update(id, func(m *model.CampaignMessage) bool {
		if !m.Advance(model.StatusSent, at) {
			return false
		}
		m.ProviderMessageID = providerMessageID
		m.ProviderConversationID = providerConversationID
		return true
	})
}

func (r *MemoryMessageRepository) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	return r.update(id, func(m *model.CampaignMessage) bool {
		if !m.Advance(model.StatusFailed, at) {
			return false
		}
		m.LastError = reason
		return true
	})
}

func (r *MemoryMessageRepository) AdvanceStatus(ctx context.Context, id int64, to model.MessageStatus, at time.Time) (bool, error) {
	return r.update(id, func(m *model.CampaignMessage) bool {
		return m.Advance(to, at)
	})
}

func (r *MemoryMessageRepository) update(id int64, apply func(m *model.CampaignMessage) bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return false, nil
	}
	return apply(m), nil
}

func (r *MemoryMessageRepository) Stats(ctx context.Context, campaignID int64) (model.CampaignStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var stats model.CampaignStats
	for _, m := range r.s.messages {
		if m.CampaignID == campaignID {
			stats.Add(m.Status, 1)
		}
	}
	return stats, nil
}

// ====================== Contacts ======================

type MemoryContactRepository struct {
	s *MemoryStore
}

func (r *MemoryContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contacts[id]
	if !ok {
		return nil, nil
	}
	return copyContact(c), nil
}

func (r *MemoryContactRepository) ListEligible(ctx context.Context, tags []string) ([]*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	eligible := []*model.Contact{}
	for _, c := range r.s.contacts {
		if c.OptedOut {
			continue
		}
		if len(tags) > 0 && !c.HasAnyTag(tags) {
			continue
		}
		eligible = append(eligible, copyContact(c))
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible, nil
}

func (r *MemoryContactRepository) List(ctx context.Context, offset, limit int) ([]*model.Contact, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := make([]*model.Contact, 0, len(r.s.contacts))
	for _, c := range r.s.contacts {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	page := []*model.Contact{}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		page = append(page, copyContact(all[i]))
	}
	return page, len(all), nil
}

func (r *MemoryContactRepository) Create(ctx context.Context, c *model.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.OptedOut && c.OptOutAt == nil {
		c.OptOutAt = &now
	}
	r.s.nextContactID++
	c.ID = r.s.nextContactID
	r.s.contacts[c.ID] = copyContact(c)
	return nil
}

func (r *MemoryContactRepository) SetOptOut(ctx context.Context, id int64, optedOut bool, at time.Time) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contacts[id]
	if !ok {
		return nil, appErrors.NewContactNotFound(id)
	}
	c.OptedOut = optedOut
	c.OptOutAt = nil
	if optedOut {
		t := at
		c.OptOutAt = &t
	}
	c.UpdatedAt = at
	return copyContact(c), nil
}

func copyCampaign(c *model.Campaign) *model.Campaign {
	cp := *c
	return &cp
}

func copyMessage(m *model.CampaignMessage) *model.CampaignMessage {
	cp := *m
	return &cp
}

func copyContact(c *model.Contact) *model.Contact {
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	return &cp
}

var (
	_ CampaignRepositoryInterface        = (*MemoryCampaignRepository)(nil)
	_ CampaignMessageRepositoryInterface = (*MemoryMessageRepository)(nil)
	_ ContactRepositoryInterface         = (*MemoryContactRepository)(nil)
)
