// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks caller mistakes; wrap it with details.
var ErrInvalidInput = errors.New("invalid input")

// ErrConflict marks requests that clash with the current state of a record.
var ErrConflict = errors.New("conflict")

// ErrCampaignNotFound is returned when a campaign id has no row.
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrContactNotFound struct {
	ContactID int64
}

func (e *ErrContactNotFound) Error() string {
	return fmt.Sprintf("contact with ID %d not found", e.ContactID)
}

func NewContactNotFound(id int64) error {
	return &ErrContactNotFound{ContactID: id}
}

// Invalid wraps ErrInvalidInput with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict with a formatted reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is (or wraps) one of the not-found errors.
func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var ct *ErrContactNotFound
	return errors.As(err, &c) || errors.As(err, &ct)
}
