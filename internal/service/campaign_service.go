// internal/service/campaign_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
	"github.com/unclebandit/wacrm-dispatch/internal/queue"
	"github.com/unclebandit/wacrm-dispatch/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	MessageRepo  repository.CampaignMessageRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	Queue        queue.Queue
	Log          zerolog.Logger

	// DefaultRateLimit applies when a campaign is created without one.
	DefaultRateLimit int
	Now              func() time.Time
}

type CreateCampaignInput struct {
	Name         string
	TemplateText string
	RateLimit    int
	// AudienceFilter is the serialized filter, e.g. {"tags":["lead"]}. Blank selects everyone.
	AudienceFilter string
	// ScheduledAt is RFC 3339; nil for manual start.
	ScheduledAt *string
}

type CreateCampaignResult struct {
	Campaign         *model.Campaign `json:"campaign"`
	EligibleContacts int             `json:"eligible_contacts"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats model.CampaignStats `json:"stats"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateCampaign validates the input, resolves the audience and stores the campaign
// with one pending message per eligible contact.
func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*CreateCampaignResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErrors.Invalid("name is required")
	}
	if strings.TrimSpace(in.TemplateText) == "" {
		return nil, appErrors.Invalid("template_text is required")
	}
	if in.RateLimit < 0 {
		return nil, appErrors.Invalid("rate_limit must be positive")
	}

	filter, err := ParseAudienceFilter(in.AudienceFilter)
	if err != nil {
		return nil, err
	}

	c := &model.Campaign{
		Name:           name,
		TemplateText:   in.TemplateText,
		Status:         model.CampaignDraft,
		RateLimit:      in.RateLimit,
		AudienceFilter: filter.String(),
	}
	if c.RateLimit == 0 {
		c.RateLimit = s.DefaultRateLimit
	}

	if in.ScheduledAt != nil && strings.TrimSpace(*in.ScheduledAt) != "" {
		// parse scheduledAt string into time.Time
		t, err := time.Parse(time.RFC3339, *in.ScheduledAt)
		if err != nil {
			return nil, appErrors.Invalid("scheduled_at: %v", err)
		}
		c.ScheduledAt = &t
	}

	resolver := &RecipientResolver{Contacts: s.ContactRepo}
	contactIDs, err := resolver.ResolveIDs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	if err := s.CampaignRepo.CreateWithMessages(ctx, c, contactIDs); err != nil {
		return nil, err
	}

	s.Log.Info().
		Int64("campaign_id", c.ID).
		Int("eligible_contacts", len(contactIDs)).
		Str("audience_filter", c.AudienceFilter).
		Msg("campaign created")

	return &CreateCampaignResult{Campaign: c, EligibleContacts: len(contactIDs)}, nil
}

// StartCampaign flips the campaign to running and hands it to the dispatch queue.
// A campaign that is already running is queued again so an interrupted run can pick
// up its pending messages. A completed campaign with nothing pending is left as is.
func (s *CampaignService) StartCampaign(ctx context.Context, campaignID int64) (*model.Campaign, error) {
	prev, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if prev.Status == model.CampaignCompleted {
		stats, err := s.MessageRepo.Stats(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if stats.Pending == 0 {
			return nil, appErrors.Conflict("campaign %d is completed and has nothing pending", campaignID)
		}
	}

	started, err := s.CampaignRepo.MarkRunning(ctx, campaignID, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.Queue.Enqueue(ctx, campaignID); err != nil {
		s.Log.Error().Err(err).Int64("campaign_id", campaignID).Msg("failed to enqueue campaign")
		if started {
			s.revertStart(ctx, prev)
		}
		return nil, fmt.Errorf("enqueue campaign %d: %w", campaignID, err)
	}

	if started {
		s.Log.Info().Int64("campaign_id", campaignID).Msg("campaign started")
	} else {
		s.Log.Info().Int64("campaign_id", campaignID).Msg("campaign already running, queued again")
	}
	return s.CampaignRepo.GetByID(ctx, campaignID)
}

// revertStart puts back the state MarkRunning replaced, so a campaign that never
// reached the queue is not left running.
func (s *CampaignService) revertStart(ctx context.Context, prev *model.Campaign) {
	if err := s.CampaignRepo.Update(context.WithoutCancel(ctx), prev); err != nil {
		s.Log.Error().Err(err).Int64("campaign_id", prev.ID).Msg("failed to revert campaign start")
	}
}

// StartDueCampaigns starts every draft campaign whose schedule has passed and returns
// how many were started.
func (s *CampaignService) StartDueCampaigns(ctx context.Context) (int, error) {
	due, err := s.CampaignRepo.ListDueScheduled(ctx, s.now())
	if err != nil {
		return 0, err
	}

	started := 0
	for _, c := range due {
		if _, err := s.StartCampaign(ctx, c.ID); err != nil {
			if appErrors.IsNotFound(err) || isConflict(err) {
				continue
			}
			return started, err
		}
		started++
	}
	return started, nil
}

// ResumeRunning re-enqueues campaigns left running by an interrupted process. Their
// pending rows are picked up again; rows already sent are not touched.
func (s *CampaignService) ResumeRunning(ctx context.Context) (int, error) {
	const batch = 100

	var ids []int64
	for offset := 0; ; offset += batch {
		page, total, err := s.CampaignRepo.List(ctx, offset, batch, string(model.CampaignRunning))
		if err != nil {
			return 0, err
		}
		for _, c := range page {
			ids = append(ids, c.ID)
		}
		if offset+batch >= total || len(page) == 0 {
			break
		}
	}

	// List is newest first; resume in start order.
	for i := len(ids) - 1; i >= 0; i-- {
		if err := s.Queue.Enqueue(ctx, ids[i]); err != nil {
			return len(ids) - 1 - i, fmt.Errorf("enqueue campaign %d: %w", ids[i], err)
		}
	}
	if len(ids) > 0 {
		s.Log.Info().Int("campaigns", len(ids)).Msg("resumed running campaigns")
	}
	return len(ids), nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]CampaignDetails, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	switch model.CampaignStatus(status) {
	case "", model.CampaignDraft, model.CampaignRunning, model.CampaignCompleted:
	default:
		return nil, nil, appErrors.Invalid("unknown campaign status %q", status)
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.List(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]CampaignDetails, len(ptrs))
	for i, c := range ptrs {
		stats, err := s.MessageRepo.Stats(ctx, c.ID)
		if err != nil {
			return nil, nil, err
		}
		campaigns[i] = CampaignDetails{Campaign: c, Stats: stats}
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetails(ctx context.Context, campaignID int64) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.MessageRepo.Stats(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// RenderPreview renders the campaign template (or overrideTemplate) for one contact.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID, contactID int64, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return "", err
	}

	contact, err := s.ContactRepo.GetByID(ctx, contactID)
	if err != nil {
		return "", err
	}
	if contact == nil {
		return "", appErrors.NewContactNotFound(contactID)
	}

	template := campaign.TemplateText
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", appErrors.Invalid("template cannot be empty")
	}

	return RenderTemplate(template, ContactPlaceholders(contact)), nil
}

func isConflict(err error) bool {
	return errors.Is(err, appErrors.ErrConflict)
}
