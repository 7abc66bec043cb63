package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
)

// ContactRepositoryInterface defines methods used by service
type ContactRepositoryInterface interface {
	// GetByID returns nil, nil when the contact does not exist.
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	// ListEligible returns the contacts that have not opted out and, when tags is not
	// empty, carry at least one of them.
	ListEligible(ctx context.Context, tags []string) ([]*model.Contact, error)
	List(ctx context.Context, offset, limit int) ([]*model.Contact, int, error)
	Create(ctx context.Context, c *model.Contact) error
	SetOptOut(ctx context.Context, id int64, optedOut bool, at time.Time) (*model.Contact, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, name, phone, tags, opted_out, opt_out_at, created_at, updated_at`

// GetByID fetches a contact by ID
func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	c, err := scanContact(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, err
	}
	return c, nil
}

func (r *ContactRepository) ListEligible(ctx context.Context, tags []string) ([]*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE opted_out = FALSE`
	args := []interface{}{}
	if len(tags) > 0 {
		query += ` AND tags && $1::text[]`
		args = append(args, pq.Array(tags))
	}
	query += ` ORDER BY id`

	return r.query(ctx, query, args...)
}

func (r *ContactRepository) List(ctx context.Context, offset, limit int) ([]*model.Contact, int, error) {
	contacts, err := r.query(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.OptedOut && c.OptOutAt == nil {
		c.OptOutAt = &now
	}
	query := `
		INSERT INTO contacts (name, phone, tags, opted_out, opt_out_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		c.Name, c.Phone, pq.Array(c.Tags), c.OptedOut, c.OptOutAt, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

func (r *ContactRepository) SetOptOut(ctx context.Context, id int64, optedOut bool, at time.Time) (*model.Contact, error) {
	query := `
		UPDATE contacts
		SET opted_out = $2,
		    opt_out_at = CASE WHEN $2 THEN $3 ELSE NULL END,
		    updated_at = $3
		WHERE id = $1
		RETURNING ` + contactColumns
	c, err := scanContact(r.DB.QueryRowContext(ctx, query, id, optedOut, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewContactNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *ContactRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Contact, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []*model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func scanContact(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Name, &c.Phone, pq.Array(&c.Tags), &c.OptedOut, &c.OptOutAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
