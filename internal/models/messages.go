package models

import "time"

// ErrorKind identifies the class of a failed completion response.
type ErrorKind string

const (
	ErrKindInvalidInput        ErrorKind = "invalid_input"
	ErrKindConfiguration       ErrorKind = "configuration_error"
	ErrKindQuotaExceeded       ErrorKind = "quota_exceeded"
	ErrKindTimeout             ErrorKind = "timeout"
	ErrKindInvalidCredential   ErrorKind = "invalid_credential"
	ErrKindRateLimited         ErrorKind = "rate_limited"
	ErrKindProviderUnavailable ErrorKind = "provider_unavailable"
	ErrKindUnknown             ErrorKind = "unknown"
)

// CompletionRequest is the inbound request envelope. It exists only for the
// duration of one round trip and is never persisted.
type CompletionRequest struct {
	RequestID   string    `json:"requestId"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// CompletionResponse is the response envelope. It is constructed exclusively
// by the request broker and is never partially filled: either OK is true and
// Result/LatencyMS/DailyUsage/DailyLimit are set, or OK is false and
// ErrorKind/Message are set.
type CompletionResponse struct {
	OK         bool      `json:"ok"`
	Result     string    `json:"result,omitempty"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
	Message    string    `json:"message,omitempty"`
	LatencyMS  int64     `json:"latencyMs"`
	DailyUsage int       `json:"dailyUsage,omitempty"`
	DailyLimit int       `json:"dailyLimit,omitempty"`
}
