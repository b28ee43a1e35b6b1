package subscription

import (
	"context"
	"sync"
	"time"

	"translate_broker/internal/models"
	"translate_broker/internal/storage"
	"translate_broker/internal/utils"
)

// PollOutcome is the terminal state of one payment polling run.
type PollOutcome int

const (
	// PollSucceeded means the authority confirmed premium before the
	// attempt ceiling.
	PollSucceeded PollOutcome = iota
	// PollExhausted means the attempt ceiling was reached without
	// confirmation.
	PollExhausted
	// PollCancelled means the context was cancelled mid-run.
	PollCancelled
)

func (o PollOutcome) String() string {
	switch o {
	case PollSucceeded:
		return "succeeded"
	case PollExhausted:
		return "exhausted"
	default:
		return "cancelled"
	}
}

// PaymentPoller is the bounded polling loop started after a checkout is
// initiated. It probes the authority on a short interval until either the
// tier flips to premium (edge-triggered: the loop stops on the first
// confirmation) or the attempt ceiling is reached. Both exits clear the
// pendingPayment flag.
type PaymentPoller struct {
	store       storage.StateStore
	remote      Authority
	interval    time.Duration
	maxAttempts int
	logger      *utils.Logger

	mu      sync.Mutex
	running bool
}

// NewPaymentPoller creates a poller.
func NewPaymentPoller(store storage.StateStore, remote Authority, interval time.Duration, maxAttempts int) *PaymentPoller {
	return &PaymentPoller{
		store:       store,
		remote:      remote,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      utils.NewLogger("payment-poll"),
	}
}

// TryStart launches Run in a goroutine unless a run is already in flight.
// Reports whether a new run was started.
func (p *PaymentPoller) TryStart(ctx context.Context) bool {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return false
	}
	p.running = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
		}()
		p.Run(ctx)
	}()
	return true
}

// Run executes the polling state machine and returns its terminal state.
func (p *PaymentPoller) Run(ctx context.Context) PollOutcome {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return PollCancelled
		case <-timer.C:
		}

		confirmed, err := p.probe(ctx)
		if err != nil {
			p.logger.Debug("Payment probe failed", "attempt", attempt, "error", err)
		}
		if confirmed {
			p.logger.Info("Payment confirmed", "attempt", attempt)
			return PollSucceeded
		}

		timer.Reset(p.interval)
	}

	// Ceiling reached: give up and clear the pending flag so the UI stops
	// advertising an in-flight payment.
	if err := p.clearPending(ctx); err != nil {
		p.logger.Warn("Failed to clear pending payment", "error", err)
	}
	p.logger.Info("Payment polling exhausted", "attempts", p.maxAttempts)
	return PollExhausted
}

// probe asks the authority once. On premium confirmation it commits the new
// tier and clears pendingPayment in a single write.
func (p *PaymentPoller) probe(ctx context.Context) (bool, error) {
	installID, err := p.store.InstallationID(ctx)
	if err != nil {
		return false, err
	}

	tier, err := p.remote.FetchTier(ctx, installID)
	if err != nil {
		return false, err
	}
	if tier != models.TierPremium {
		return false, nil
	}

	sub, err := p.store.GetSubscription(ctx)
	if err != nil {
		return false, err
	}
	sub.Tier = models.TierPremium
	sub.PendingPayment = false
	sub.PaymentInitiatedAt = nil
	if err := p.store.SetSubscription(ctx, sub); err != nil {
		return false, err
	}
	return true, nil
}

func (p *PaymentPoller) clearPending(ctx context.Context) error {
	sub, err := p.store.GetSubscription(ctx)
	if err != nil {
		return err
	}
	sub.PendingPayment = false
	sub.PaymentInitiatedAt = nil
	return p.store.SetSubscription(ctx, sub)
}
