package service

import (
	"context"
	"encoding/json"
	"strings"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
)

// AudienceFilter selects recipients by tag. A contact matches when it carries at
// least one of Tags; an empty filter matches every contact.
type AudienceFilter struct {
	Tags []string `json:"tags"`
}

func (f AudienceFilter) Empty() bool { return len(f.Tags) == 0 }

// String serializes the filter the way it is stored on the campaign.
func (f AudienceFilter) String() string {
	if f.Empty() {
		return ""
	}
	b, _ := json.Marshal(f)
	return string(b)
}

// ParseAudienceFilter decodes a stored filter such as {"tags":["lead","vip"]}.
// Blank input is the empty filter. Tags are trimmed and de-duplicated.
func ParseAudienceFilter(raw string) (AudienceFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return AudienceFilter{}, nil
	}

	var f AudienceFilter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return AudienceFilter{}, appErrors.Invalid("audience filter: %v", err)
	}

	seen := map[string]bool{}
	tags := make([]string, 0, len(f.Tags))
	for _, t := range f.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	f.Tags = tags
	return f, nil
}

// RecipientResolver computes the eligible recipients of a campaign at creation time.
type RecipientResolver struct {
	Contacts repository.ContactRepositoryInterface
}

// Resolve returns the contacts that have not opted out and match filter.
func (r *RecipientResolver) Resolve(ctx context.Context, filter AudienceFilter) ([]*model.Contact, error) {
	return r.Contacts.ListEligible(ctx, filter.Tags)
}

// ResolveIDs is Resolve reduced to contact ids, in the store's order.
func (r *RecipientResolver) ResolveIDs(ctx context.Context, filter AudienceFilter) ([]int64, error) {
	contacts, err := r.Resolve(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
