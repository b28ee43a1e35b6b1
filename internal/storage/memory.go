package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"translate_broker/internal/models"
)

// MemoryStore is an in-memory StateStore. It backs deployments without a
// database and all package tests.
type MemoryStore struct {
	mu    sync.Mutex
	state models.InstallationState
}

var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store. The installation identity
// is created lazily on first use, like the persistent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: models.InstallationState{
			SubscriptionTier: models.TierFree,
			TargetLanguage:   "English",
		},
	}
}

func (m *MemoryStore) InstallationID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.InstallationID == "" {
		m.state.InstallationID = uuid.New().String()
	}
	return m.state.InstallationID, nil
}

func (m *MemoryStore) GetSubscription(ctx context.Context) (models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Subscription(), nil
}

func (m *MemoryStore) SetSubscription(ctx context.Context, sub models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SubscriptionTier = sub.Tier
	m.state.PendingPayment = sub.PendingPayment
	m.state.PaymentInitiatedAt = sub.PaymentInitiatedAt
	m.state.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) GetDailyUsage(ctx context.Context) (models.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DailyUsage(), nil
}

func (m *MemoryStore) SetDailyUsage(ctx context.Context, usage models.DailyUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.UsageDate = usage.Date
	m.state.UsageCount = usage.Count
	m.state.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) GetAnalytics(ctx context.Context) (models.Analytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Analytics(), nil
}

func (m *MemoryStore) SetAnalytics(ctx context.Context, a models.Analytics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.TotalAttempts = a.TotalAttempts
	m.state.TotalSuccesses = a.TotalSuccesses
	m.state.TotalErrors = a.TotalErrors
	m.state.CumulativeLatencyMS = a.CumulativeLatencyMS
	m.state.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) GetSettings(ctx context.Context) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Settings(), nil
}

func (m *MemoryStore) SetSettings(ctx context.Context, s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.APIKey = s.APIKey
	m.state.TargetLanguage = s.TargetLanguage
	m.state.UpdatedAt = time.Now()
	return nil
}
