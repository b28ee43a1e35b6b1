package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translate_broker/internal/storage"
)

func TestAggregator_RecordAttempt(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, agg.RecordAttempt(ctx, 120*time.Millisecond, true))
	require.NoError(t, agg.RecordAttempt(ctx, 80*time.Millisecond, false))

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.TotalAttempts)
	assert.Equal(t, int64(1), snap.TotalSuccesses)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(200), snap.CumulativeLatencyMS)
}

func TestAggregator_AttemptsInvariant(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryStore())
	ctx := context.Background()

	// The invariant must hold after every record, for any interleaving.
	outcomes := []bool{true, false, false, true, true, false, true, false, false, true}
	for _, success := range outcomes {
		require.NoError(t, agg.RecordAttempt(ctx, 10*time.Millisecond, success))

		snap, err := agg.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.TotalAttempts, snap.TotalSuccesses+snap.TotalErrors)
	}

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap.TotalAttempts)
	assert.Equal(t, int64(5), snap.TotalSuccesses)
	assert.Equal(t, int64(5), snap.TotalErrors)
}

func TestAggregator_PersistsAfterEachUpdate(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, NewAggregator(store).RecordAttempt(ctx, 50*time.Millisecond, true))

	// A fresh aggregator over the same store sees the persisted counters.
	snap, err := NewAggregator(store).Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.TotalAttempts)
	assert.Equal(t, int64(50), snap.CumulativeLatencyMS)
}

func TestAggregator_SnapshotDoesNotMutate(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, agg.RecordAttempt(ctx, time.Millisecond, true))

	first, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	second, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalytics_Derived(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryStore())
	ctx := context.Background()

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.AvgLatencyMS())
	assert.Equal(t, 100, snap.SuccessRate())

	require.NoError(t, agg.RecordAttempt(ctx, 100*time.Millisecond, true))
	require.NoError(t, agg.RecordAttempt(ctx, 300*time.Millisecond, false))

	snap, err = agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), snap.AvgLatencyMS())
	assert.Equal(t, 50, snap.SuccessRate())
}
