// internal/model/campaign_message.go
package model

import "time"

// CampaignMessage is the delivery record of one campaign for one recipient.
type CampaignMessage struct {
	ID                     int64         `db:"id" json:"id"`
	CampaignID             int64         `db:"campaign_id" json:"campaign_id"`
	ContactID              int64         `db:"contact_id" json:"contact_id"`
	Status                 MessageStatus `db:"status" json:"status"`
	ProviderMessageID      string        `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ProviderConversationID string        `db:"provider_conversation_id" json:"provider_conversation_id,omitempty"`
	LastError              string        `db:"last_error" json:"last_error,omitempty"`
	SentAt                 *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt            *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt                 *time.Time    `db:"read_at" json:"read_at,omitempty"`
	RepliedAt              *time.Time    `db:"replied_at" json:"replied_at,omitempty"`
	CreatedAt              time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time     `db:"updated_at" json:"updated_at"`
}

// Advance moves the message to status `to` and stamps the matching timestamp.
// It reports false and leaves the message untouched when the move would go backwards
// or revive a failed message.
func (m *CampaignMessage) Advance(to MessageStatus, at time.Time) bool {
	if !CanAdvance(m.Status, to) {
		return false
	}
	m.Status = to
	m.UpdatedAt = at
	t := at
	switch to {
	case StatusSent:
		m.SentAt = &t
	case StatusDelivered:
		m.DeliveredAt = &t
	case StatusRead:
		m.ReadAt = &t
	case StatusReplied:
		m.RepliedAt = &t
	}
	return true
}
