package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

// OpenRouter chat-completion defaults.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel   = "openai/gpt-oss-120b"

	defaultTimeout  = 20 * time.Second
	maxResponseBody = 10 << 20
)

// ErrMissingAPIKey indicates the service is deployed without a provider
// credential. It is a configuration failure, distinct from upstream ones.
var ErrMissingAPIKey = errors.New("openrouter api key is not configured")

// ErrEmptyResponse indicates the provider replied without extractable
// message content.
var ErrEmptyResponse = errors.New("openrouter returned no message content")

// UpstreamError reports a non-success status from the provider.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openrouter request failed with status %d", e.Status)
}

// GatewayConfig carries provider settings resolved at startup.
type GatewayConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Gateway posts chat conversations to the OpenRouter completion endpoint.
// It performs no retries; retry policy, if any, belongs to the caller.
type Gateway struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGateway creates a gateway with default endpoint and timeout. An empty
// model selects the default.
func NewGateway(apiKey, model string) *Gateway {
	return NewGatewayWithConfig(GatewayConfig{APIKey: apiKey, Model: model})
}

// NewGatewayWithConfig creates a gateway with explicit settings.
func NewGatewayWithConfig(cfg GatewayConfig) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Gateway{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model          string               `json:"model"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat responseFormat       `json:"response_format"`
	Messages       []domain.ChatMessage `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Send posts the conversation with temperature 0, requesting JSON-object
// formatted output, and returns the raw message content of the first choice.
func (g *Gateway) Send(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if g.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	payload := chatRequest{
		Model:          g.model,
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
		Messages:       messages,
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal openrouter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build openrouter request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &UpstreamError{Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read openrouter response: %w", err)
	}

	var parsed chatResponse
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		return "", ErrEmptyResponse
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}
