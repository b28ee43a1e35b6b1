package broker

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"translate_broker/internal/analytics"
	"translate_broker/internal/gateway"
	"translate_broker/internal/models"
	"translate_broker/internal/quota"
	"translate_broker/internal/session"
	"translate_broker/internal/storage"
	"translate_broker/internal/telemetry"
	"translate_broker/internal/utils"
)

// ErrCallerInvalidated means the caller's session was revoked before the
// request could be admitted. There is no response path: the request is
// dropped with zero side effects.
var ErrCallerInvalidated = errors.New("broker: caller session invalidated")

const (
	minTextRunes = 1
	maxTextRunes = 500
)

// Liveness answers whether a caller capability token is still live. It must
// never block.
type Liveness interface {
	Valid(token string) bool
}

var _ Liveness = (*session.Manager)(nil)

// Broker is the request state machine. Every completion request flows
// through HandleCompletionRequest in a fixed effect order: liveness,
// credential precondition, quota admission, dispatch, then analytics and
// quota commit. Quota is charged only after a successful dispatch; every
// attempt that reaches the credential check updates analytics exactly once.
type Broker struct {
	store     storage.StateStore
	ledger    quota.Ledger
	analytics *analytics.Aggregator
	gateway   gateway.Gateway
	liveness  Liveness
	telemetry telemetry.Publisher
	logger    *utils.Logger
	now       func() time.Time
}

// New wires a broker from its collaborators.
func New(store storage.StateStore, ledger quota.Ledger, agg *analytics.Aggregator, gw gateway.Gateway, liveness Liveness, pub telemetry.Publisher) *Broker {
	if pub == nil {
		pub = telemetry.NoopPublisher{}
	}
	return &Broker{
		store:     store,
		ledger:    ledger,
		analytics: agg,
		gateway:   gw,
		liveness:  liveness,
		telemetry: pub,
		logger:    utils.NewLogger("broker"),
		now:       time.Now,
	}
}

// HandleCompletionRequest runs one request through the state machine and
// returns the response envelope. The only error it returns is
// ErrCallerInvalidated; everything else resolves to a structured response.
func (b *Broker) HandleCompletionRequest(ctx context.Context, req models.CompletionRequest, livenessToken string) (*models.CompletionResponse, error) {
	if !b.liveness.Valid(livenessToken) {
		b.logger.Debug("Dropping request from invalidated caller", "requestId", req.RequestID)
		return nil, ErrCallerInvalidated
	}

	if n := utf8.RuneCountInString(req.Text); n < minTextRunes || n >= maxTextRunes {
		return &models.CompletionResponse{
			OK:        false,
			ErrorKind: models.ErrKindInvalidInput,
			Message:   fmt.Sprintf("text must be between %d and %d characters", minTextRunes, maxTextRunes-1),
		}, nil
	}

	started := b.now()

	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		return b.fail(ctx, started, models.ErrKindUnknown, "failed to load settings"), nil
	}
	if settings.APIKey == "" {
		return b.fail(ctx, started, models.ErrKindConfiguration, "set your API key first"), nil
	}

	sub, err := b.store.GetSubscription(ctx)
	if err != nil {
		return b.fail(ctx, started, models.ErrKindUnknown, "failed to load subscription"), nil
	}
	limit := sub.Tier.DailyLimit()

	count, err := b.ledger.TodayCount(ctx)
	if err != nil {
		return b.fail(ctx, started, models.ErrKindUnknown, "failed to read quota"), nil
	}
	if count >= limit {
		resp := b.fail(ctx, started, models.ErrKindQuotaExceeded,
			fmt.Sprintf("daily limit of %d requests reached", limit))
		resp.DailyUsage = count
		resp.DailyLimit = limit
		return resp, nil
	}

	completion, err := b.gateway.Complete(ctx, settings.APIKey, gateway.Prompt{
		Text:           req.Text,
		TargetLanguage: settings.TargetLanguage,
		Tier:           sub.Tier,
	})
	latency := b.now().Sub(started)
	if err != nil {
		kind, message := classifyGatewayError(err)
		b.logger.Warn("Completion dispatch failed", "requestId", req.RequestID, "kind", kind, "error", err)
		return b.failWithLatency(ctx, latency, kind, message), nil
	}

	// Success path: quota is charged only now, after the provider answered.
	usage, err := b.ledger.Increment(ctx)
	if err != nil {
		b.logger.Error("Failed to charge quota after successful dispatch", "error", err)
		usage = count + 1
	}
	b.commitAttempt(ctx, latency, true, "")

	return &models.CompletionResponse{
		OK:         true,
		Result:     completion.Result,
		LatencyMS:  latency.Milliseconds(),
		DailyUsage: usage,
		DailyLimit: limit,
	}, nil
}

// fail records a failed attempt measured from started and builds the error
// envelope.
func (b *Broker) fail(ctx context.Context, started time.Time, kind models.ErrorKind, message string) *models.CompletionResponse {
	return b.failWithLatency(ctx, b.now().Sub(started), kind, message)
}

func (b *Broker) failWithLatency(ctx context.Context, latency time.Duration, kind models.ErrorKind, message string) *models.CompletionResponse {
	b.commitAttempt(ctx, latency, false, kind)
	return &models.CompletionResponse{
		OK:        false,
		ErrorKind: kind,
		Message:   message,
		LatencyMS: latency.Milliseconds(),
	}
}

// commitAttempt records the attempt in analytics and publishes the matching
// telemetry event. Analytics failures are logged, never surfaced: the caller
// already has an outcome.
func (b *Broker) commitAttempt(ctx context.Context, latency time.Duration, success bool, kind models.ErrorKind) {
	if err := b.analytics.RecordAttempt(ctx, latency, success); err != nil {
		b.logger.Error("Failed to record attempt", "error", err)
	}

	installID, err := b.store.InstallationID(ctx)
	if err != nil {
		b.logger.Debug("Skipping telemetry, no installation id", "error", err)
		return
	}

	event := telemetry.Event{
		Kind:           telemetry.EventCompletionSucceeded,
		InstallationID: installID,
		LatencyMS:      latency.Milliseconds(),
		Timestamp:      b.now(),
	}
	if !success {
		event.Kind = telemetry.EventCompletionFailed
		event.ErrorKind = string(kind)
	}
	b.telemetry.Publish(event)
}

// classifyGatewayError maps a gateway failure to the response taxonomy and a
// one-line actionable message.
func classifyGatewayError(err error) (models.ErrorKind, string) {
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		return models.ErrKindTimeout, "the request timed out, please try again"
	case errors.Is(err, gateway.ErrInvalidCredential):
		return models.ErrKindInvalidCredential, "your API key was rejected, check your settings"
	case errors.Is(err, gateway.ErrRateLimited):
		return models.ErrKindRateLimited, "the provider is rate limiting requests, wait a moment and retry"
	case errors.Is(err, gateway.ErrProviderUnavailable):
		return models.ErrKindProviderUnavailable, "the provider is temporarily unavailable"
	default:
		var provErr *gateway.ProviderError
		if errors.As(err, &provErr) && provErr.Message != "" {
			return models.ErrKindUnknown, provErr.Message
		}
		return models.ErrKindUnknown, "the request failed unexpectedly"
	}
}
