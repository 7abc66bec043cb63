package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
)

type CampaignRepositoryInterface interface {
	// CreateWithMessages inserts the campaign and one pending message per contact in a
	// single transaction, filling c.ID and the defaults.
	CreateWithMessages(ctx context.Context, c *model.Campaign, contactIDs []int64) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	Update(ctx context.Context, c *model.Campaign) error
	// MarkRunning flips the campaign to running and stamps StartedAt. It reports false
	// when the campaign is already running.
	MarkRunning(ctx context.Context, id int64, at time.Time) (bool, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, template_text, status, rate_limit, audience_filter,
	scheduled_at, started_at, completed_at, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) CreateWithMessages(ctx context.Context, c *model.Campaign, contactIDs []int64) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.RateLimit <= 0 {
		c.RateLimit = model.DefaultRateLimit
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO campaigns (name, template_text, status, rate_limit, audience_filter, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		c.Name, c.TemplateText, c.Status, c.RateLimit, c.AudienceFilter, c.ScheduledAt, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	if len(contactIDs) > 0 {
		// One statement for the whole audience; ON CONFLICT keeps a duplicated contact id
		// from breaking the transaction.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO campaign_messages (campaign_id, contact_id, status, created_at, updated_at)
			SELECT $1, contact_id, 'pending', $2, $2
			FROM UNNEST($3::bigint[]) AS contact_id
			ON CONFLICT (campaign_id, contact_id) DO NOTHING
		`, c.ID, c.CreatedAt, pq.Array(contactIDs))
		if err != nil {
			return fmt.Errorf("insert campaign messages: %w", err)
		}
	}

	return tx.Commit()
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	now := time.Now()
	query := `
		UPDATE campaigns
		SET name=$1, template_text=$2, status=$3, rate_limit=$4, audience_filter=$5,
		    scheduled_at=$6, started_at=$7, completed_at=$8, updated_at=$9
		WHERE id=$10
	`
	res, err := r.DB.ExecContext(ctx, query,
		c.Name, c.TemplateText, c.Status, c.RateLimit, c.AudienceFilter,
		c.ScheduledAt, c.StartedAt, c.CompletedAt, now, c.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	c.UpdatedAt = &now
	return nil
}

func (r *CampaignRepository) MarkRunning(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns SET status='running', started_at=$2, completed_at=NULL, updated_at=$2
		WHERE id=$1 AND status<>'running'
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	// Nothing updated: either missing or already running.
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Count total
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status='draft' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at, id`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, c)
	}
	return due, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.TemplateText, &c.Status, &c.RateLimit, &c.AudienceFilter,
		&c.ScheduledAt, &c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
