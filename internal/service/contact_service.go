package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/gateway"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
)

type ContactService struct {
	ContactRepo repository.ContactRepositoryInterface
	Log         zerolog.Logger
}

type CreateContactInput struct {
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Tags     []string `json:"tags"`
	OptedOut bool     `json:"opted_out"`
}

func (s *ContactService) CreateContact(ctx context.Context, in CreateContactInput) (*model.Contact, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErrors.Invalid("name is required")
	}
	phone := strings.TrimSpace(in.Phone)
	if gateway.NormalizePhone(phone) == "" {
		return nil, appErrors.Invalid("phone must contain digits")
	}

	tags := []string{}
	seen := map[string]bool{}
	for _, t := range in.Tags {
		t = strings.TrimSpace(t)
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	c := &model.Contact{Name: name, Phone: phone, Tags: tags, OptedOut: in.OptedOut}
	if err := s.ContactRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListContacts returns one page of contacts plus pagination metadata.
func (s *ContactService) ListContacts(ctx context.Context, page, pageSize int) ([]*model.Contact, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	contacts, total, err := s.ContactRepo.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return contacts, map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}, nil
}

// SetOptOut toggles the opt-out flag. Pending campaign messages of an opted-out
// contact are failed by the dispatch worker when their turn comes.
func (s *ContactService) SetOptOut(ctx context.Context, contactID int64, optedOut bool) (*model.Contact, error) {
	c, err := s.ContactRepo.SetOptOut(ctx, contactID, optedOut, time.Now())
	if err != nil {
		return nil, err
	}
	s.Log.Info().Int64("contact_id", contactID).Bool("opted_out", optedOut).Msg("contact opt-out updated")
	return c, nil
}
