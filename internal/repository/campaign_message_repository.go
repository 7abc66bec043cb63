package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/unclebandit/wacrm-dispatch/internal/model"
)

// CampaignMessageRepositoryInterface is the message status store. Every status write
// honours model.CanAdvance; the bool results report whether the row actually moved.
type CampaignMessageRepositoryInterface interface {
	ListPending(ctx context.Context, campaignID int64) ([]*model.CampaignMessage, error)
	GetByID(ctx context.Context, id int64) (*model.CampaignMessage, error)
	FindByProviderMessageID(ctx context.Context, providerMessageID string) (*model.CampaignMessage, error)

	MarkSent(ctx context.Context, id int64, providerMessageID, providerConversationID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error)
	AdvanceStatus(ctx context.Context, id int64, to model.MessageStatus, at time.Time) (bool, error)

	Stats(ctx context.Context, campaignID int64) (model.CampaignStats, error)
}

type CampaignMessageRepository struct {
	DB *sql.DB
}

const messageColumns = `id, campaign_id, contact_id, status, provider_message_id, provider_conversation_id,
	last_error, sent_at, delivered_at, read_at, replied_at, created_at, updated_at`

// guardedUpdate applies the forward-only rule inside the UPDATE itself so concurrent
// writers cannot regress a row: failed is final, anything else only moves up in rank.
const guardedUpdate = `
	UPDATE campaign_messages SET
		status = $2::text,
		updated_at = $3,
		sent_at      = CASE WHEN $2::text = 'sent'      THEN $3 ELSE sent_at END,
		delivered_at = CASE WHEN $2::text = 'delivered' THEN $3 ELSE delivered_at END,
		read_at      = CASE WHEN $2::text = 'read'      THEN $3 ELSE read_at END,
		replied_at   = CASE WHEN $2::text = 'replied'   THEN $3 ELSE replied_at END,
		last_error   = CASE WHEN $2::text = 'failed'    THEN $5 ELSE last_error END,
		provider_message_id      = CASE WHEN $6 <> '' THEN $6 ELSE provider_message_id END,
		provider_conversation_id = CASE WHEN $7 <> '' THEN $7 ELSE provider_conversation_id END
	WHERE id = $1
	  AND status <> 'failed'
	  AND ($2::text = 'failed' OR
	       (CASE status
	            WHEN 'pending'   THEN 0
	            WHEN 'sent'      THEN 1
	            WHEN 'delivered' THEN 2
	            WHEN 'read'      THEN 3
	            WHEN 'replied'   THEN 4
	        END) < $4)
`

func (r *CampaignMessageRepository) ListPending(ctx context.Context, campaignID int64) ([]*model.CampaignMessage, error) {
	query := `SELECT ` + messageColumns + `
		FROM campaign_messages
		WHERE campaign_id=$1 AND status='pending'
		ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*model.CampaignMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *CampaignMessageRepository) GetByID(ctx context.Context, id int64) (*model.CampaignMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM campaign_messages WHERE id=$1`
	m, err := scanMessage(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *CampaignMessageRepository) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*model.CampaignMessage, error) {
	if providerMessageID == "" {
		return nil, nil
	}
	query := `SELECT ` + messageColumns + ` FROM campaign_messages WHERE provider_message_id=$1 ORDER BY id DESC LIMIT 1`
	m, err := scanMessage(r.DB.QueryRowContext(ctx, query, providerMessageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *CampaignMessageRepository) MarkSent(ctx context.Context, id int64, providerMessageID, providerConversationID string, at time.Time) (bool, error) {
	return r.advance(ctx, id, model.StatusSent, at, "", providerMessageID, providerConversationID)
}

func (r *CampaignMessageRepository) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	return r.advance(ctx, id, model.StatusFailed, at, reason, "", "")
}

func (r *CampaignMessageRepository) AdvanceStatus(ctx context.Context, id int64, to model.MessageStatus, at time.Time) (bool, error) {
	return r.advance(ctx, id, to, at, "", "", "")
}

func (r *CampaignMessageRepository) advance(ctx context.Context, id int64, to model.MessageStatus, at time.Time, reason, providerMessageID, providerConversationID string) (bool, error) {
	if !to.Valid() || to == model.StatusPending {
		return false, nil
	}
	res, err := r.DB.ExecContext(ctx, guardedUpdate, id, string(to), at, to.Rank(), reason, providerMessageID, providerConversationID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CampaignMessageRepository) Stats(ctx context.Context, campaignID int64) (model.CampaignStats, error) {
	var stats model.CampaignStats
	query := `SELECT status, COUNT(*) FROM campaign_messages WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Add(model.MessageStatus(status), count)
	}
	return stats, rows.Err()
}

func scanMessage(row rowScanner) (*model.CampaignMessage, error) {
	var m model.CampaignMessage
	err := row.Scan(
		&m.ID, &m.CampaignID, &m.ContactID, &m.Status, &m.ProviderMessageID, &m.ProviderConversationID,
		&m.LastError, &m.SentAt, &m.DeliveredAt, &m.ReadAt, &m.RepliedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

var _ CampaignMessageRepositoryInterface = (*CampaignMessageRepository)(nil)
