package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"translate_broker/internal/utils"
)

// Event kinds emitted by the request path.
const (
	EventCompletionSucceeded = "completion_succeeded"
	EventCompletionFailed    = "completion_failed"
)

// Event is a single usage signal. Events carry no request text.
type Event struct {
	Kind           string    `json:"kind"`
	InstallationID string    `json:"installation_id"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	LatencyMS      int64     `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher ships events to a collector. Publish must never block the
// caller and must never surface a failure to it.
type Publisher interface {
	Publish(event Event)
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) {}

// HTTPPublisher posts events to a collector endpoint, fire-and-forget.
// Each event is shipped from its own goroutine; delivery failures are
// logged at debug and dropped.
type HTTPPublisher struct {
	url    string
	client *http.Client
	logger *utils.Logger
}

var _ Publisher = (*HTTPPublisher)(nil)

// NewHTTPPublisher creates a publisher targeting the collector URL.
func NewHTTPPublisher(url string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPublisher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: utils.NewLogger("telemetry"),
	}
}

func (p *HTTPPublisher) Publish(event Event) {
	go p.send(event)
}

func (p *HTTPPublisher) send(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Debug("Failed to marshal telemetry event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		p.logger.Debug("Failed to build telemetry request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Telemetry delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		p.logger.Debug("Telemetry collector rejected event", "status", resp.StatusCode)
	}
}
