package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/cache"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
)

// providerStatuses maps the gateway's callback statuses onto the message lifecycle.
var providerStatuses = map[string]model.MessageStatus{
	"SENT":     model.StatusSent,
	"RECEIVED": model.StatusDelivered,
	"READ":     model.StatusRead,
	"PLAYED":   model.StatusRead,
}

// MapProviderStatus reports false for statuses the lifecycle does not track.
func MapProviderStatus(raw string) (model.MessageStatus, bool) {
	s, ok := providerStatuses[strings.ToUpper(strings.TrimSpace(raw))]
	return s, ok
}

// StatusUpdateResult is returned to the gateway callback.
type StatusUpdateResult struct {
	Status  model.MessageStatus `json:"status,omitempty"`
	Updated int                 `json:"updated"`
	Skipped string              `json:"skipped,omitempty"`
}

// StatusService applies delivery callbacks from the gateway to campaign messages.
type StatusService struct {
	Messages repository.CampaignMessageRepositoryInterface
	// Cache is optional; misses fall back to the repository.
	Cache cache.MessageCache
	Log   zerolog.Logger
	Now   func() time.Time
}

func (s *StatusService) Apply(ctx context.Context, rawStatus string, providerIDs []string) (*StatusUpdateResult, error) {
	if strings.TrimSpace(rawStatus) == "" || len(providerIDs) == 0 {
		return &StatusUpdateResult{Skipped: "no status or ids"}, nil
	}
	to, ok := MapProviderStatus(rawStatus)
	if !ok {
		return &StatusUpdateResult{Skipped: "unhandled status: " + strings.ToUpper(rawStatus)}, nil
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	res := &StatusUpdateResult{Status: to}
	for _, providerID := range providerIDs {
		messageID, found, err := s.resolve(ctx, providerID)
		if err != nil {
			return res, err
		}
		if !found {
			s.Log.Debug().Str("provider_message_id", providerID).Msg("status callback for unknown message")
			continue
		}

		moved, err := s.Messages.AdvanceStatus(ctx, messageID, to, now())
		if err != nil {
			return res, err
		}
		if moved {
			res.Updated++
			s.Log.Info().
				Int64("message_id", messageID).
				Str("provider_message_id", providerID).
				Str("status", string(to)).
				Msg("message status updated from gateway")
		}
	}
	return res, nil
}

func (s *StatusService) resolve(ctx context.Context, providerID string) (int64, bool, error) {
	if s.Cache != nil {
		id, ok, err := s.Cache.LookupMessageID(ctx, providerID)
		if err != nil {
			s.Log.Warn().Err(err).Msg("cache lookup failed, falling back to database")
		} else if ok {
			return id, true, nil
		}
	}

	m, err := s.Messages.FindByProviderMessageID(ctx, providerID)
	if err != nil {
		return 0, false, err
	}
	if m == nil {
		return 0, false, nil
	}
	return m.ID, true, nil
}
