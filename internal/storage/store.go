package storage

import (
	"context"
	"errors"

	"translate_broker/internal/models"
)

// ErrNotFound is returned when no installation record exists yet.
var ErrNotFound = errors.New("storage: installation state not found")

// StateStore is the durable key/value state for one installation: the quota
// ledger entry, the analytics counters, the subscription record and the
// caller-managed settings.
//
// Writes are read-then-write with last-writer-wins semantics; the broker is
// assumed to run a single active request at a time (see the quota ledger for
// the accepted hazard).
type StateStore interface {
	// InstallationID returns the opaque installation identity, creating it
	// on first use. The identity is immutable once created.
	InstallationID(ctx context.Context) (string, error)

	GetSubscription(ctx context.Context) (models.Subscription, error)
	SetSubscription(ctx context.Context, sub models.Subscription) error

	GetDailyUsage(ctx context.Context) (models.DailyUsage, error)
	SetDailyUsage(ctx context.Context, usage models.DailyUsage) error

	GetAnalytics(ctx context.Context) (models.Analytics, error)
	SetAnalytics(ctx context.Context, a models.Analytics) error

	GetSettings(ctx context.Context) (models.Settings, error)
	SetSettings(ctx context.Context, s models.Settings) error
}
