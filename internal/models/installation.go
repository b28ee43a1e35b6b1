package models

import "time"

// InstallationState is the full persisted record for one installation, one
// logical row per installation. The storage layer reads and writes it
// field-group-wise (subscription, usage, analytics, settings); there is no
// compare-and-swap, so interleaved writers are last-writer-wins.
type InstallationState struct {
	InstallationID      string     `db:"installation_id"`
	SubscriptionTier    Tier       `db:"subscription_tier"`
	PendingPayment      bool       `db:"pending_payment"`
	PaymentInitiatedAt  *time.Time `db:"payment_initiated_at"`
	UsageDate           string     `db:"usage_date"`
	UsageCount          int        `db:"usage_count"`
	TotalAttempts       int64      `db:"total_attempts"`
	TotalSuccesses      int64      `db:"total_successes"`
	TotalErrors         int64      `db:"total_errors"`
	CumulativeLatencyMS int64      `db:"cumulative_latency_ms"`
	APIKey              string     `db:"api_key"`
	TargetLanguage      string     `db:"target_language"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Subscription extracts the subscription record.
func (s *InstallationState) Subscription() Subscription {
	return Subscription{
		Tier:               s.SubscriptionTier,
		PendingPayment:     s.PendingPayment,
		PaymentInitiatedAt: s.PaymentInitiatedAt,
	}
}

// DailyUsage extracts the quota ledger entry.
func (s *InstallationState) DailyUsage() DailyUsage {
	return DailyUsage{Date: s.UsageDate, Count: s.UsageCount}
}

// Analytics extracts the lifetime counters.
func (s *InstallationState) Analytics() Analytics {
	return Analytics{
		TotalAttempts:       s.TotalAttempts,
		TotalSuccesses:      s.TotalSuccesses,
		TotalErrors:         s.TotalErrors,
		CumulativeLatencyMS: s.CumulativeLatencyMS,
	}
}

// Settings extracts the caller-managed settings.
func (s *InstallationState) Settings() Settings {
	return Settings{APIKey: s.APIKey, TargetLanguage: s.TargetLanguage}
}
