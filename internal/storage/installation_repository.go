package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"translate_broker/internal/models"
)

const installationSchema = `
CREATE TABLE IF NOT EXISTS installation_state (
	installation_id       TEXT PRIMARY KEY,
	subscription_tier     TEXT NOT NULL DEFAULT 'free',
	pending_payment       BOOLEAN NOT NULL DEFAULT FALSE,
	payment_initiated_at  TIMESTAMPTZ,
	usage_date            TEXT NOT NULL DEFAULT '',
	usage_count           INTEGER NOT NULL DEFAULT 0,
	total_attempts        BIGINT NOT NULL DEFAULT 0,
	total_successes       BIGINT NOT NULL DEFAULT 0,
	total_errors          BIGINT NOT NULL DEFAULT 0,
	cumulative_latency_ms BIGINT NOT NULL DEFAULT 0,
	api_key               TEXT NOT NULL DEFAULT '',
	target_language       TEXT NOT NULL DEFAULT 'English',
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// InstallationRepository is the Postgres-backed StateStore. The broker owns
// exactly one installation, so the repository pins the installation row on
// construction and all reads/writes target that row.
type InstallationRepository struct {
	db        *DB
	installID string
}

var _ StateStore = (*InstallationRepository)(nil)

// NewInstallationRepository creates the schema if needed and pins (or
// creates) the installation row.
func NewInstallationRepository(ctx context.Context, db *DB) (*InstallationRepository, error) {
	if _, err := db.conn.ExecContext(ctx, installationSchema); err != nil {
		return nil, fmt.Errorf("failed to create installation_state schema: %w", err)
	}

	r := &InstallationRepository{db: db}
	if err := r.ensureRow(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// ensureRow loads the existing installation identity or generates a new one.
func (r *InstallationRepository) ensureRow(ctx context.Context) error {
	var id string
	err := r.db.conn.GetContext(ctx, &id, `SELECT installation_id FROM installation_state LIMIT 1`)
	if err == nil {
		r.installID = id
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to load installation id: %w", err)
	}

	id = uuid.New().String()
	_, err = r.db.conn.ExecContext(ctx,
		`INSERT INTO installation_state (installation_id) VALUES ($1)`, id)
	if err != nil {
		return fmt.Errorf("failed to create installation row: %w", err)
	}
	r.installID = id
	return nil
}

func (r *InstallationRepository) InstallationID(ctx context.Context) (string, error) {
	return r.installID, nil
}

func (r *InstallationRepository) load(ctx context.Context) (*models.InstallationState, error) {
	query := `
		SELECT installation_id, subscription_tier, pending_payment, payment_initiated_at,
		       usage_date, usage_count, total_attempts, total_successes, total_errors,
		       cumulative_latency_ms, api_key, target_language, updated_at
		FROM installation_state
		WHERE installation_id = $1
	`

	var state models.InstallationState
	err := r.db.conn.GetContext(ctx, &state, query, r.installID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load installation state: %w", err)
	}
	return &state, nil
}

func (r *InstallationRepository) GetSubscription(ctx context.Context) (models.Subscription, error) {
	state, err := r.load(ctx)
	if err != nil {
		return models.Subscription{}, err
	}
	return state.Subscription(), nil
}

func (r *InstallationRepository) SetSubscription(ctx context.Context, sub models.Subscription) error {
	query := `
		UPDATE installation_state
		SET subscription_tier = $2, pending_payment = $3, payment_initiated_at = $4, updated_at = $5
		WHERE installation_id = $1
	`
	_, err := r.db.conn.ExecContext(ctx, query,
		r.installID, sub.Tier, sub.PendingPayment, sub.PaymentInitiatedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (r *InstallationRepository) GetDailyUsage(ctx context.Context) (models.DailyUsage, error) {
	state, err := r.load(ctx)
	if err != nil {
		return models.DailyUsage{}, err
	}
	return state.DailyUsage(), nil
}

func (r *InstallationRepository) SetDailyUsage(ctx context.Context, usage models.DailyUsage) error {
	query := `
		UPDATE installation_state
		SET usage_date = $2, usage_count = $3, updated_at = $4
		WHERE installation_id = $1
	`
	_, err := r.db.conn.ExecContext(ctx, query, r.installID, usage.Date, usage.Count, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update daily usage: %w", err)
	}
	return nil
}

func (r *InstallationRepository) GetAnalytics(ctx context.Context) (models.Analytics, error) {
	state, err := r.load(ctx)
	if err != nil {
		return models.Analytics{}, err
	}
	return state.Analytics(), nil
}

func (r *InstallationRepository) SetAnalytics(ctx context.Context, a models.Analytics) error {
	query := `
		UPDATE installation_state
		SET total_attempts = $2, total_successes = $3, total_errors = $4,
		    cumulative_latency_ms = $5, updated_at = $6
		WHERE installation_id = $1
	`
	_, err := r.db.conn.ExecContext(ctx, query,
		r.installID, a.TotalAttempts, a.TotalSuccesses, a.TotalErrors,
		a.CumulativeLatencyMS, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update analytics: %w", err)
	}
	return nil
}

func (r *InstallationRepository) GetSettings(ctx context.Context) (models.Settings, error) {
	state, err := r.load(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return state.Settings(), nil
}

func (r *InstallationRepository) SetSettings(ctx context.Context, s models.Settings) error {
	query := `
		UPDATE installation_state
		SET api_key = $2, target_language = $3, updated_at = $4
		WHERE installation_id = $1
	`
	_, err := r.db.conn.ExecContext(ctx, query, r.installID, s.APIKey, s.TargetLanguage, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}
