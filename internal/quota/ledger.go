package quota

import (
	"context"
	"fmt"
	"time"

	"translate_broker/internal/models"
	"translate_broker/internal/storage"
)

// Ledger tracks the daily request count for the installation. Reads on a new
// calendar day return zero regardless of stored state; only Increment writes
// the ledger (lazy rollover, no reset job).
type Ledger interface {
	// TodayCount returns the count for the current calendar day.
	TodayCount(ctx context.Context) (int, error)

	// Increment records one admitted request for today and returns the new
	// count. The first increment of a day replaces the previous day's entry.
	Increment(ctx context.Context) (int, error)
}

// StoreLedger keeps the ledger entry in the persistent state store.
//
// Writes are read-then-write: interleaved increments from concurrent callers
// are last-writer-wins. Acceptable for a single-installation broker that
// runs one request at a time; deployments that want atomic counting select
// the Redis ledger instead.
type StoreLedger struct {
	store storage.StateStore
	now   func() time.Time
}

var _ Ledger = (*StoreLedger)(nil)

// NewStoreLedger creates a ledger over the given state store.
func NewStoreLedger(store storage.StateStore) *StoreLedger {
	return &StoreLedger{store: store, now: time.Now}
}

func (l *StoreLedger) today() string {
	return l.now().Format(models.DateFormat)
}

func (l *StoreLedger) TodayCount(ctx context.Context) (int, error) {
	usage, err := l.store.GetDailyUsage(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read daily usage: %w", err)
	}
	if usage.Date != l.today() {
		return 0, nil
	}
	return usage.Count, nil
}

func (l *StoreLedger) Increment(ctx context.Context) (int, error) {
	today := l.today()

	usage, err := l.store.GetDailyUsage(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read daily usage: %w", err)
	}

	if usage.Date != today {
		usage = models.DailyUsage{Date: today, Count: 1}
	} else {
		usage.Count++
	}

	if err := l.store.SetDailyUsage(ctx, usage); err != nil {
		return 0, fmt.Errorf("failed to write daily usage: %w", err)
	}
	return usage.Count, nil
}
