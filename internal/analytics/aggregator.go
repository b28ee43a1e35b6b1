package analytics

import (
	"context"
	"fmt"
	"time"

	"translate_broker/internal/models"
	"translate_broker/internal/storage"
)

// Aggregator accumulates lifetime attempt counters and persists them to the
// state store after every update. A crash between mutation and persistence
// loses at most one attempt's counters.
type Aggregator struct {
	store storage.StateStore
}

// NewAggregator creates an aggregator over the given state store.
func NewAggregator(store storage.StateStore) *Aggregator {
	return &Aggregator{store: store}
}

// RecordAttempt records one completed attempt. Every attempt that reached
// dispatch is recorded exactly once, success or failure.
func (a *Aggregator) RecordAttempt(ctx context.Context, latency time.Duration, success bool) error {
	counters, err := a.store.GetAnalytics(ctx)
	if err != nil {
		return fmt.Errorf("failed to read analytics: %w", err)
	}

	counters.TotalAttempts++
	counters.CumulativeLatencyMS += latency.Milliseconds()
	if success {
		counters.TotalSuccesses++
	} else {
		counters.TotalErrors++
	}

	if err := a.store.SetAnalytics(ctx, counters); err != nil {
		return fmt.Errorf("failed to persist analytics: %w", err)
	}
	return nil
}

// Snapshot returns the current counters without mutating them.
func (a *Aggregator) Snapshot(ctx context.Context) (models.Analytics, error) {
	return a.store.GetAnalytics(ctx)
}
