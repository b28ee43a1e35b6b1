package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"translate_broker/internal/analytics"
	"translate_broker/internal/broker"
	"translate_broker/internal/config"
	"translate_broker/internal/gateway"
	"translate_broker/internal/quota"
	"translate_broker/internal/session"
	"translate_broker/internal/storage"
	"translate_broker/internal/subscription"
	"translate_broker/internal/telemetry"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Store         storage.StateStore
	Broker        *broker.Broker
	Sessions      *session.Manager
	Analytics     *analytics.Aggregator
	Ledger        quota.Ledger
	Subscriptions *subscription.Manager
	Synchronizer  *subscription.Synchronizer
	Poller        *subscription.PaymentPoller

	closers []func() error
}

// Close releases backend connections held by the dependency graph.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewRouter creates an HTTP router with all dependencies wired up.
func NewRouter(ctx context.Context, cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	deps := &Dependencies{}

	// State store: Postgres when configured, otherwise in-memory.
	if cfg.Database.URL != "" {
		db, err := storage.NewDB(storage.DBConfig{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		deps.closers = append(deps.closers, db.Close)

		repo, err := storage.NewInstallationRepository(ctx, db)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize installation repository: %w", err)
		}
		deps.Store = repo
	} else {
		deps.Store = storage.NewMemoryStore()
	}

	installID, err := deps.Store.InstallationID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve installation id: %w", err)
	}

	// Quota ledger: Redis when configured, otherwise the state store.
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		deps.Ledger = quota.NewRedisLedger(client, installID)
	} else {
		deps.Ledger = quota.NewStoreLedger(deps.Store)
	}

	deps.Analytics = analytics.NewAggregator(deps.Store)
	deps.Sessions = session.NewManager(cfg.SessionSecret, cfg.SessionTTL)

	provider := gateway.NewOpenAIGateway(gateway.OpenAIConfig{
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Provider.Model,
		Timeout: cfg.Provider.RequestTimeout,
	})
	deps.closers = append(deps.closers, provider.Close)

	var publisher telemetry.Publisher = telemetry.NoopPublisher{}
	if cfg.Telemetry.URL != "" {
		publisher = telemetry.NewHTTPPublisher(cfg.Telemetry.URL, cfg.Telemetry.Timeout)
	}

	authority := subscription.NewClient(cfg.Subscription.BaseURL, cfg.Subscription.RequestTimeout)
	deps.Subscriptions = subscription.NewManager(deps.Store, authority, cfg.Subscription.CheckoutURL)
	deps.Synchronizer = subscription.NewSynchronizer(deps.Store, authority, cfg.Subscription.SyncInterval)
	deps.Poller = subscription.NewPaymentPoller(deps.Store, authority, cfg.Subscription.PollInterval, cfg.Subscription.PollMaxAttempts)

	deps.Broker = broker.New(deps.Store, deps.Ledger, deps.Analytics, provider, deps.Sessions, publisher)

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return mux, deps, nil
}

// NewMux builds the route table over pre-wired dependencies. Used by tests.
func NewMux(deps *Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	registerRoutes(mux, deps)
	return mux
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/v1/ping", deps.handlePing)
	mux.HandleFunc("/v1/session", deps.handleSession)
	mux.HandleFunc("/v1/complete", deps.handleComplete)
	mux.HandleFunc("/v1/analytics", deps.handleAnalytics)
	mux.HandleFunc("/v1/settings", deps.handleSettings)
	mux.HandleFunc("/v1/subscription", deps.handleSubscription)
	mux.HandleFunc("/v1/subscription/demo", deps.handleSubscriptionDemo)
	mux.HandleFunc("/v1/subscription/downgrade", deps.handleSubscriptionDowngrade)
	mux.HandleFunc("/v1/subscription/checkout", deps.handleSubscriptionCheckout)
}
