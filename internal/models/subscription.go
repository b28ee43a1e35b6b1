package models

import "time"

// Tier is the subscription tier of an installation.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// DailyLimit returns the number of completion requests the tier may make
// per calendar day.
func (t Tier) DailyLimit() int {
	if t == TierPremium {
		return 100
	}
	return 5
}

// MaxTokens returns the completion token ceiling for the tier.
func (t Tier) MaxTokens() int {
	if t == TierPremium {
		return 1000
	}
	return 500
}

// Subscription is the locally stored subscription record. It is mutated by
// demo activation, remote reconciliation and explicit downgrade.
type Subscription struct {
	Tier               Tier       `json:"tier"`
	PendingPayment     bool       `json:"pendingPayment"`
	PaymentInitiatedAt *time.Time `json:"paymentInitiatedAt,omitempty"`
}
