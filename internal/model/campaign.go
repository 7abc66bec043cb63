// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
)

// DefaultRateLimit is the messages-per-minute pace used when a campaign is created without one.
const DefaultRateLimit = 30

type Campaign struct {
	ID             int64          `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	TemplateText   string         `db:"template_text" json:"template_text"`
	Status         CampaignStatus `db:"status" json:"status"`
	RateLimit      int            `db:"rate_limit" json:"rate_limit"`
	AudienceFilter string         `db:"audience_filter" json:"audience_filter,omitempty"`
	ScheduledAt    *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt      *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// SendInterval is the pause between two recipients: one minute spread over RateLimit sends.
func (c *Campaign) SendInterval() time.Duration {
	limit := c.RateLimit
	if limit < 1 {
		limit = 1
	}
	return time.Minute / time.Duration(limit)
}

// CampaignStats counts a campaign's messages per delivery status.
type CampaignStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Replied   int `json:"replied"`
	Failed    int `json:"failed"`
}

// Add counts n messages with the given status.
func (s *CampaignStats) Add(status MessageStatus, n int) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusSent:
		s.Sent += n
	case StatusDelivered:
		s.Delivered += n
	case StatusRead:
		s.Read += n
	case StatusReplied:
		s.Replied += n
	case StatusFailed:
		s.Failed += n
	default:
		return
	}
	s.Total += n
}
