package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIModel          = "gpt-3.5-turbo"
	defaultTimeout       = 25 * time.Second
)

// systemPromptTemplate is the fixed translate-and-explain instruction. The
// single substitution is the caller's target language.
const systemPromptTemplate = `You are a helpful translation and explanation assistant. When given text, you should:
1. Translate it to %[1]s if it's not already in %[1]s
2. Provide a clear explanation of what the text means, including context and nuance
3. If there are idioms or cultural references, explain them
4. Keep your response concise and well-formatted.

Format your response as:
**Translation:**
[translated text]

**Explanation:**
[explanation of meaning and context]`

// OpenAIGateway implements Gateway against the OpenAI chat completions API.
type OpenAIGateway struct {
	client  *http.Client
	baseURL string
	model   string
	timeout time.Duration
}

var _ Gateway = (*OpenAIGateway)(nil)

// OpenAIConfig holds optional overrides for the gateway.
type OpenAIConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAIGateway creates a gateway with its own HTTP client. The client
// carries no transport-level timeout; the per-call context deadline is the
// single cancellation authority.
func NewOpenAIGateway(cfg OpenAIConfig) *OpenAIGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &OpenAIGateway{
		client:  client,
		baseURL: baseURL,
		model:   model,
		timeout: timeout,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs one completion call. The timeout cancels the underlying
// request, so a slow provider resolves to ErrTimeout rather than leaving a
// dangling connection.
func (g *OpenAIGateway) Complete(ctx context.Context, apiKey string, p Prompt) (*Completion, error) {
	start := time.Now()

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, p.TargetLanguage)},
			{Role: "user", Content: fmt.Sprintf("Please translate and explain this text: %q", p.Text)},
		},
		MaxTokens:   p.Tier.MaxTokens(),
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	url := g.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if resp.StatusCode != http.StatusOK {
		message := "provider request failed"
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return nil, classifyStatus(resp.StatusCode, message)
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "response contained no choices"}
	}

	return &Completion{
		Result:          parsed.Choices[0].Message.Content,
		ProviderLatency: latency,
	}, nil
}

// Close releases idle connections.
func (g *OpenAIGateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
