package subscription

import (
	"context"
	"fmt"
	"time"

	"translate_broker/internal/models"
	"translate_broker/internal/storage"
	"translate_broker/internal/utils"
)

// Manager owns the locally stored subscription record. All tier mutations
// funnel through it: demo activation, explicit downgrade and checkout
// initiation. Remote reconciliation lives in the Synchronizer.
type Manager struct {
	store       storage.StateStore
	remote      Authority
	checkoutURL string
	logger      *utils.Logger
	now         func() time.Time
}

// NewManager creates a subscription manager.
func NewManager(store storage.StateStore, remote Authority, checkoutURL string) *Manager {
	return &Manager{
		store:       store,
		remote:      remote,
		checkoutURL: checkoutURL,
		logger:      utils.NewLogger("subscription"),
		now:         time.Now,
	}
}

// Current returns the local subscription record.
func (m *Manager) Current(ctx context.Context) (models.Subscription, error) {
	return m.store.GetSubscription(ctx)
}

// ActivateDemo switches the installation to premium without a payment flow.
// The authority is updated best-effort; the local record is authoritative
// until the next reconcile.
func (m *Manager) ActivateDemo(ctx context.Context) error {
	if err := m.setTier(ctx, models.TierPremium); err != nil {
		return err
	}
	m.pushRemote(ctx, models.TierPremium)
	return nil
}

// Downgrade switches the installation back to the free tier.
func (m *Manager) Downgrade(ctx context.Context) error {
	if err := m.setTier(ctx, models.TierFree); err != nil {
		return err
	}
	m.pushRemote(ctx, models.TierFree)
	return nil
}

// InitiateCheckout marks a payment as pending and returns the checkout URL
// carrying the installation identity as the payment reference. The caller
// is expected to start the bounded payment poll afterwards.
func (m *Manager) InitiateCheckout(ctx context.Context) (string, error) {
	installID, err := m.store.InstallationID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve installation id: %w", err)
	}

	sub, err := m.store.GetSubscription(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read subscription: %w", err)
	}

	initiated := m.now()
	sub.PendingPayment = true
	sub.PaymentInitiatedAt = &initiated
	if err := m.store.SetSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("failed to mark payment pending: %w", err)
	}

	return fmt.Sprintf("%s?client_reference_id=%s", m.checkoutURL, installID), nil
}

func (m *Manager) setTier(ctx context.Context, tier models.Tier) error {
	sub, err := m.store.GetSubscription(ctx)
	if err != nil {
		return fmt.Errorf("failed to read subscription: %w", err)
	}
	sub.Tier = tier
	if err := m.store.SetSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// pushRemote mirrors a local tier change to the authority. Failures are
// logged and swallowed; the synchronizer converges state on its next tick.
func (m *Manager) pushRemote(ctx context.Context, tier models.Tier) {
	if m.remote == nil {
		return
	}
	installID, err := m.store.InstallationID(ctx)
	if err != nil {
		m.logger.Warn("Skipping remote tier push", "error", err)
		return
	}
	if err := m.remote.PushTier(ctx, installID, tier); err != nil {
		m.logger.Warn("Failed to push tier to authority", "tier", tier, "error", err)
	}
}
