// Package anthropic answers questions with Claude models over the
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/plancite/internal/adapters/driven/llm/llmhttp"
	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

var _ driven.LLMService = (*LLMService)(nil)

// ProviderName tags errors from this adapter.
const ProviderName = "anthropic"

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultMaxTokens = 1024

	apiVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic chat service.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// MaxRetries bounds retries of overloaded or rate-limited calls.
	MaxRetries uint64
	Backoff    time.Duration
}

// LLMService talks to /v1/messages.
type LLMService struct {
	client *llmhttp.Client
	model  string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewLLMService creates the adapter. An API key is required.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = llmhttp.DefaultMaxRetries
	}

	return &LLMService{
		client: llmhttp.New(llmhttp.Config{
			Provider: ProviderName,
			BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
			Header: http.Header{
				"X-Api-Key":         []string{cfg.APIKey},
				"Anthropic-Version": []string{apiVersion},
			},
			Timeout:    cfg.Timeout,
			MaxRetries: retries,
			Backoff:    cfg.Backoff,
			DecodeErr:  decodeError,
		}),
		model: cfg.Model,
	}, nil
}

// Chat lifts system turns into the top-level system field and folds
// adjacent turns of the same role, since the API requires alternation.
// JSON mode prefills the reply with "{" and restores it on return.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	var system []string
	var turns []message
	for _, m := range messages {
		if m.Role == driven.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		turns = append(turns, message{Role: m.Role, Content: m.Content})
	}

	prefill := ""
	if opts.JSON {
		prefill = "{"
		turns = append(turns, message{Role: driven.RoleAssistant, Content: prefill})
	}

	req := messagesRequest{
		Model:     s.model,
		System:    strings.Join(system, "\n\n"),
		Messages:  turns,
		MaxTokens: opts.MaxTokens,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}

	var resp messagesResponse
	if err := s.client.PostJSON(ctx, "/v1/messages", req, &resp); err != nil {
		return "", err
	}
	logger.Debug("anthropic: %s used %d input, %d output tokens", s.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	if resp.StopReason == "max_tokens" {
		logger.Warn("anthropic: reply truncated at %d tokens", req.MaxTokens)
	}

	var b strings.Builder
	b.WriteString(prefill)
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == len(prefill) {
		return "", &domain.LLMProviderError{Provider: ProviderName, Err: errors.New("reply has no text content")}
	}
	return b.String(), nil
}

func decodeError(body []byte) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Type + ": " + e.Error.Message
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which validates the key without inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.client.Get(ctx, "/v1/models")
}

func (s *LLMService) Close() error { return nil }
