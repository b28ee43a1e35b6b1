package broker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translate_broker/internal/analytics"
	"translate_broker/internal/gateway"
	"translate_broker/internal/models"
	"translate_broker/internal/quota"
	"translate_broker/internal/session"
	"translate_broker/internal/storage"
	"translate_broker/internal/telemetry"
)

// stubGateway returns a scripted outcome and counts calls.
type stubGateway struct {
	mu     sync.Mutex
	result *gateway.Completion
	err    error
	calls  int
}

func (s *stubGateway) Complete(ctx context.Context, apiKey string, p gateway.Prompt) (*gateway.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubGateway) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type capturePublisher struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *capturePublisher) Publish(event telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturePublisher) all() []telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]telemetry.Event(nil), c.events...)
}

type fixture struct {
	broker   *Broker
	store    *storage.MemoryStore
	ledger   quota.Ledger
	gateway  *stubGateway
	sessions *session.Manager
	events   *capturePublisher
	token    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	require.NoError(t, store.SetSettings(ctx, models.Settings{
		APIKey:         "sk-test-key",
		TargetLanguage: "Spanish",
	}))

	gw := &stubGateway{result: &gateway.Completion{Result: "**Translation:** hola"}}
	sessions := session.NewManager([]byte("test-secret"), time.Hour)
	events := &capturePublisher{}
	ledger := quota.NewStoreLedger(store)

	installID, err := store.InstallationID(ctx)
	require.NoError(t, err)
	token, err := sessions.Open(installID)
	require.NoError(t, err)

	return &fixture{
		broker:   New(store, ledger, analytics.NewAggregator(store), gw, sessions, events),
		store:    store,
		ledger:   ledger,
		gateway:  gw,
		sessions: sessions,
		events:   events,
		token:    token,
	}
}

func (f *fixture) request(text string) models.CompletionRequest {
	return models.CompletionRequest{RequestID: "req-1", Text: text, SubmittedAt: time.Now()}
}

func TestBroker_SuccessfulCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.Equal(t, "**Translation:** hola", resp.Result)
	assert.Equal(t, 1, resp.DailyUsage)
	assert.Equal(t, 5, resp.DailyLimit)

	counters, err := f.store.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.TotalAttempts)
	assert.Equal(t, int64(1), counters.TotalSuccesses)
	assert.Equal(t, int64(0), counters.TotalErrors)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.EventCompletionSucceeded, events[0].Kind)
}

func TestBroker_SixthFreeRequestQuotaExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		resp, err := f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
		require.NoError(t, err)
		require.True(t, resp.OK)
	}

	resp, err := f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
	require.NoError(t, err)

	assert.False(t, resp.OK)
	assert.Equal(t, models.ErrKindQuotaExceeded, resp.ErrorKind)
	assert.Equal(t, 5, resp.DailyLimit)
	assert.Equal(t, 5, resp.DailyUsage)

	// The provider was never consulted for the rejected request.
	assert.Equal(t, 5, f.gateway.callCount())

	// Rejection counts as a failed attempt but never charges quota.
	count, err := f.ledger.TodayCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	counters, err := f.store.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), counters.TotalAttempts)
	assert.Equal(t, int64(1), counters.TotalErrors)
}

func TestBroker_PremiumTierGetsHigherLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.store.GetSubscription(ctx)
	require.NoError(t, err)
	sub.Tier = models.TierPremium
	require.NoError(t, f.store.SetSubscription(ctx, sub))

	resp, err := f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, 100, resp.DailyLimit)
}

func TestBroker_MissingCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSettings(ctx, models.Settings{TargetLanguage: "Spanish"}))

	resp, err := f.broker.HandleCompletionRequest(ctx, f.request("hola"), f.token)
	require.NoError(t, err)

	assert.False(t, resp.OK)
	assert.Equal(t, models.ErrKindConfiguration, resp.ErrorKind)
	assert.Contains(t, resp.Message, "API key")
	assert.Equal(t, 0, f.gateway.callCount())

	counters, err := f.store.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.TotalErrors)
	assert.Equal(t, int64(1), counters.TotalAttempts)
}

func TestBroker_GatewayTimeoutLeavesQuotaUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Charge one unit first so the before-state is non-zero.
	resp, err := f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
	require.NoError(t, err)
	require.True(t, resp.OK)

	f.gateway.err = gateway.ErrTimeout
	resp, err = f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
	require.NoError(t, err)

	assert.False(t, resp.OK)
	assert.Equal(t, models.ErrKindTimeout, resp.ErrorKind)

	count, err := f.ledger.TodayCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBroker_GatewayErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind models.ErrorKind
	}{
		{"invalid credential", gateway.ErrInvalidCredential, models.ErrKindInvalidCredential},
		{"rate limited", gateway.ErrRateLimited, models.ErrKindRateLimited},
		{"provider unavailable", gateway.ErrProviderUnavailable, models.ErrKindProviderUnavailable},
		{"unclassified", &gateway.ProviderError{StatusCode: 418, Message: "teapot"}, models.ErrKindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.gateway.err = tc.err

			resp, err := f.broker.HandleCompletionRequest(context.Background(), f.request("hello"), f.token)
			require.NoError(t, err)
			assert.False(t, resp.OK)
			assert.Equal(t, tc.kind, resp.ErrorKind)

			count, err := f.ledger.TodayCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	}
}

func TestBroker_RevokedSessionHasZeroSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sessions.Revoke(f.token)

	resp, err := f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
	assert.ErrorIs(t, err, ErrCallerInvalidated)
	assert.Nil(t, resp)
	assert.Equal(t, 0, f.gateway.callCount())

	count, err := f.ledger.TodayCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	counters, err := f.store.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counters.TotalAttempts)
	assert.Empty(t, f.events.all())
}

func TestBroker_InvalidInputRejectedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range []string{"", strings.Repeat("x", 500)} {
		resp, err := f.broker.HandleCompletionRequest(ctx, f.request(text), f.token)
		require.NoError(t, err)
		assert.False(t, resp.OK)
		assert.Equal(t, models.ErrKindInvalidInput, resp.ErrorKind)
	}

	// Boundary: 499 runes is still accepted.
	resp, err := f.broker.HandleCompletionRequest(ctx, f.request(strings.Repeat("x", 499)), f.token)
	require.NoError(t, err)
	assert.True(t, resp.OK)

	counters, err := f.store.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.TotalAttempts)
}

func TestBroker_AttemptsInvariantAcrossMixedOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcomes := []error{nil, gateway.ErrTimeout, nil, gateway.ErrRateLimited, gateway.ErrProviderUnavailable, nil}
	for _, outcome := range outcomes {
		f.gateway.err = outcome
		_, err := f.broker.HandleCompletionRequest(ctx, f.request("hello"), f.token)
		require.NoError(t, err)

		counters, err := f.store.GetAnalytics(ctx)
		require.NoError(t, err)
		assert.Equal(t, counters.TotalAttempts, counters.TotalSuccesses+counters.TotalErrors)
	}

	counters, err := f.store.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), counters.TotalAttempts)
	assert.Equal(t, int64(3), counters.TotalSuccesses)
	assert.Equal(t, int64(3), counters.TotalErrors)
}

func TestBroker_TelemetryCarriesErrorKind(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = gateway.ErrRateLimited

	_, err := f.broker.HandleCompletionRequest(context.Background(), f.request("hello"), f.token)
	require.NoError(t, err)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.EventCompletionFailed, events[0].Kind)
	assert.Equal(t, string(models.ErrKindRateLimited), events[0].ErrorKind)
	assert.NotEmpty(t, events[0].InstallationID)
}
