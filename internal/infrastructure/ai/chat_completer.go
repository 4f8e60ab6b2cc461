// Package ai calls an OpenAI-compatible chat completions endpoint for
// field mapping suggestions.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/config"
	"github.com/erp/listingsync/internal/infrastructure/logger"
	"github.com/erp/listingsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 20 * time.Second
	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
	maxResponseSize    = 1 << 20
	maxErrorDetail     = 200
)

var (
	// ErrNotConfigured is returned by NewChatCompleter without an endpoint
	ErrNotConfigured = errors.New("ai: endpoint is not configured")
	// ErrEmptyCompletion is returned when the model answers with no choices
	ErrEmptyCompletion = errors.New("ai: empty completion")
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatCompleter implements integration.TextCompleter over a chat completions API
type ChatCompleter struct {
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a ChatCompleter
type Option func(*ChatCompleter)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *ChatCompleter) {
		c.httpClient = client
	}
}

// WithMaxTokens bounds the completion length
func WithMaxTokens(n int) Option {
	return func(c *ChatCompleter) {
		c.maxTokens = n
	}
}

// NewChatCompleter creates a completer from the ai config section
func NewChatCompleter(cfg config.AIConfig, log *zap.Logger, opts ...Option) (*ChatCompleter, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	c := &ChatCompleter{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      model,
		maxTokens:  defaultMaxTokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("ai"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends prompt as a single user message and returns the first answer
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (answer string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ai.complete",
		telemetry.WithAttribute("ai.model", c.model),
		telemetry.WithAttribute("ai.prompt_length", len(prompt)),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetOK(span)
		}
		span.End()
	}()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("ai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("ai: read response: %w", err)
	}
	logger.WithTraceContext(ctx, c.logger).Debug("AI completion",
		zap.String("model", c.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: HTTP %d: %s", resp.StatusCode, truncate(string(data), maxErrorDetail))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("ai: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("ai: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	answer = strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ integration.TextCompleter = (*ChatCompleter)(nil)
