package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"translate_broker/internal/models"
)

// Authority is the remote source of truth for subscription tier.
type Authority interface {
	// FetchTier returns the tier the authority has on record for the
	// installation.
	FetchTier(ctx context.Context, installationID string) (models.Tier, error)

	// PushTier records a tier change with the authority (demo activation,
	// explicit downgrade).
	PushTier(ctx context.Context, installationID string, tier models.Tier) error
}

// Client talks to the subscription authority over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ Authority = (*Client)(nil)

// NewClient creates an authority client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type tierPayload struct {
	Tier models.Tier `json:"tier"`
}

func (c *Client) FetchTier(ctx context.Context, installationID string) (models.Tier, error) {
	url := fmt.Sprintf("%s/subscriptions/%s", c.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("subscription fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("subscription fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload tierPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode subscription response: %w", err)
	}
	if !payload.Tier.Valid() {
		return "", fmt.Errorf("authority returned unknown tier %q", payload.Tier)
	}
	return payload.Tier, nil
}

func (c *Client) PushTier(ctx context.Context, installationID string, tier models.Tier) error {
	body, err := json.Marshal(tierPayload{Tier: tier})
	if err != nil {
		return fmt.Errorf("failed to marshal tier: %w", err)
	}

	url := fmt.Sprintf("%s/subscriptions/%s", c.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("subscription update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("subscription update returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
