// Package openai answers questions with chat completion models. Any
// OpenAI-compatible gateway works by overriding BaseURL.
package openai

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
const ProviderName = "openai"

const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultLLMModel = "gpt-4o-mini"
)

// LLMConfig holds configuration for the OpenAI chat service.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// MaxRetries bounds retries of rate-limited or failed calls.
	MaxRetries uint64
	Backoff    time.Duration
}

// LLMService talks to /chat/completions.
type LLMService struct {
	client *llmhttp.Client
	model  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Format      *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewLLMService creates the adapter. An API key is required.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = llmhttp.DefaultMaxRetries
	}

	return &LLMService{
		client: llmhttp.New(llmhttp.Config{
			Provider:   ProviderName,
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			Header:     http.Header{"Authorization": []string{"Bearer " + cfg.APIKey}},
			Timeout:    cfg.Timeout,
			MaxRetries: retries,
			Backoff:    cfg.Backoff,
			DecodeErr:  decodeError,
		}),
		model: cfg.Model,
	}, nil
}

// Chat sends the conversation as-is. JSON mode uses response_format,
// which requires the word "JSON" somewhere in the prompt; the answer
// prompt satisfies that.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := completionRequest{
		Model:     s.model,
		Messages:  make([]chatMessage, len(messages)),
		MaxTokens: opts.MaxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	if opts.JSON {
		req.Format = &responseFormat{Type: "json_object"}
	}

	var resp completionResponse
	if err := s.client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &domain.LLMProviderError{Provider: ProviderName, Err: errors.New("reply has no choices")}
	}
	logger.Debug("openai: %s used %d prompt, %d completion tokens", s.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		logger.Warn("openai: reply truncated at %d tokens", opts.MaxTokens)
	}
	return choice.Message.Content, nil
}

func decodeError(body []byte) string {
	var e struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == nil {
		return ""
	}
	return e.Error.Message
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which validates the key without inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.client.Get(ctx, "/models")
}

func (s *LLMService) Close() error { return nil }
