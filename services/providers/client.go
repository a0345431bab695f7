package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/ai-gateway/services/gateway"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
)

// Config describes one upstream provider endpoint. Every supported vendor
// exposes an OpenAI-compatible chat completions surface.
type Config struct {
	Name       string
	BaseURL    string
	APIKey     string
	OrgID      string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// APIError is a non-2xx answer from an upstream provider
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

// Retryable reports whether the request may be retried against the same
// endpoint.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to one provider's chat completions endpoint
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a provider client. Zero timeout, retries and delay
// select the defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat completion request. Transient failures (network
// errors and 5xx/429 answers) are retried with a linear backoff.
func (c *Client) Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.CompletionResult, error) {
	body := chatRequest{
		Model:    req.Backend,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}
	// Zero is a valid sampling temperature, so it is always sent.
	body.Temperature = &req.Temperature

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling completion request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
			}
			c.logger.Debug("retrying completion request",
				zap.String("provider", c.cfg.Name),
				zap.Int("attempt", attempt))
		}

		result, err := c.do(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, payload []byte) (*gateway.CompletionResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.OrgID != "" {
		httpReq.Header.Set("OpenAI-Organization", c.cfg.OrgID)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, &APIError{
			Provider:   c.cfg.Name,
			StatusCode: resp.StatusCode,
			Type:       "empty_response",
			Message:    "response contained no choices",
		}
	}

	return &gateway.CompletionResult{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func (c *Client) apiError(statusCode int, body []byte) error {
	apiErr := &APIError{Provider: c.cfg.Name, StatusCode: statusCode}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		apiErr.Type = "unknown_error"
		apiErr.Message = string(body)
		return apiErr
	}
	apiErr.Type = parsed.Error.Type
	apiErr.Message = parsed.Error.Message
	return apiErr
}
