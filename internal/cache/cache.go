package cache

import (
	"context"
	"time"
)

// MessageCache maps provider message ids back to campaign message ids so status
// callbacks can skip the database lookup.
type MessageCache interface {
	StoreSent(ctx context.Context, messageID int64, providerMessageID string, sentAt time.Time) error
	// LookupMessageID reports false when the provider id is unknown or expired.
	LookupMessageID(ctx context.Context, providerMessageID string) (int64, bool, error)
}
