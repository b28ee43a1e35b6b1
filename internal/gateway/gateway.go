package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"translate_broker/internal/models"
)

// Sentinel errors. Classify provider failures with errors.Is.
var (
	ErrTimeout             = errors.New("gateway: request timed out")
	ErrInvalidCredential   = errors.New("gateway: invalid provider credential")
	ErrRateLimited         = errors.New("gateway: rate limited by provider")
	ErrProviderUnavailable = errors.New("gateway: provider unavailable")
)

// ProviderError wraps a provider failure that does not map to a sentinel.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gateway: provider returned status %d: %s", e.StatusCode, e.Message)
}

// Prompt is a normalized completion request: the selected text plus the
// context that shapes the instruction template.
type Prompt struct {
	Text           string
	TargetLanguage string
	Tier           models.Tier
}

// Completion is a normalized provider result.
type Completion struct {
	Result          string
	ProviderLatency time.Duration
}

// Gateway performs the external completion call. Implementations apply a
// hard wall-clock timeout and never retry; retry policy belongs to the
// caller, and the broker performs zero automatic retries.
type Gateway interface {
	Complete(ctx context.Context, apiKey string, p Prompt) (*Completion, error)
}

// classifyStatus maps a non-2xx provider status to the error taxonomy.
func classifyStatus(status int, message string) error {
	switch {
	case status == 401:
		return fmt.Errorf("%w: %s", ErrInvalidCredential, message)
	case status == 429:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, status, message)
	default:
		return &ProviderError{StatusCode: status, Message: message}
	}
}
