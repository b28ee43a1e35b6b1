package subscription

import (
	"context"
	"time"

	"translate_broker/internal/models"
	"translate_broker/internal/storage"
	"translate_broker/internal/utils"
)

// Synchronizer reconciles the local subscription tier against the remote
// authority on a fixed interval, independent of the request path.
type Synchronizer struct {
	store    storage.StateStore
	remote   Authority
	interval time.Duration
	logger   *utils.Logger

	// OnTierChange, if set, is invoked after a reconcile overwrites the
	// local tier. Consumed by the UI-facing layer.
	OnTierChange func(old, new models.Tier)
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(store storage.StateStore, remote Authority, interval time.Duration) *Synchronizer {
	return &Synchronizer{
		store:    store,
		remote:   remote,
		interval: interval,
		logger:   utils.NewLogger("sub-sync"),
	}
}

// Run reconciles on every tick until the context is cancelled. Fetch
// failures are swallowed and retried on the next tick.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Subscription synchronizer stopping")
			return
		case <-ticker.C:
			if _, err := s.Reconcile(ctx); err != nil {
				s.logger.Warn("Reconcile failed, will retry next tick", "error", err)
			}
		}
	}
}

// Reconcile fetches the remote tier and overwrites the local record if it
// differs. Returns whether the local tier changed.
func (s *Synchronizer) Reconcile(ctx context.Context) (bool, error) {
	installID, err := s.store.InstallationID(ctx)
	if err != nil {
		return false, err
	}

	remoteTier, err := s.remote.FetchTier(ctx, installID)
	if err != nil {
		return false, err
	}

	sub, err := s.store.GetSubscription(ctx)
	if err != nil {
		return false, err
	}
	if sub.Tier == remoteTier {
		return false, nil
	}

	old := sub.Tier
	sub.Tier = remoteTier
	if err := s.store.SetSubscription(ctx, sub); err != nil {
		return false, err
	}

	s.logger.Info("Subscription tier reconciled", "old", old, "new", remoteTier)
	if s.OnTierChange != nil {
		s.OnTierChange(old, remoteTier)
	}
	return true, nil
}
