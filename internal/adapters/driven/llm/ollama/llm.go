// Package ollama answers questions with a local model served by Ollama.
package ollama

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/custodia-labs/plancite/internal/adapters/driven/llm/llmhttp"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

var _ driven.LLMService = (*LLMService)(nil)

// ProviderName tags errors from this adapter.
const ProviderName = "ollama"

const (
	DefaultBaseURL  = "http://localhost:11434"
	DefaultLLMModel = "llama3.2"

	// Local models load on first use, so allow longer than the cloud default.
	DefaultLLMTimeout = 300 * time.Second
)

// LLMConfig holds configuration for the Ollama chat service.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// MaxRetries is zero by default: a local server that fails once
	// usually fails again.
	MaxRetries uint64
}

// LLMService talks to /api/chat with streaming disabled.
type LLMService struct {
	client *llmhttp.Client
	model  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type modelOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *modelOptions `json:"options,omitempty"`
}

type chatResponse struct {
	Message         chatMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// NewLLMService creates the adapter.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		client: llmhttp.New(llmhttp.Config{
			Provider:   ProviderName,
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			DecodeErr:  decodeError,
		}),
		model: cfg.Model,
	}
}

// Chat sends one non-streaming request. JSON mode sets format=json,
// which constrains decoding to valid JSON.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := chatRequest{
		Model:    s.model,
		Messages: make([]chatMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if opts.JSON {
		req.Format = "json"
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		req.Options = &modelOptions{NumPredict: opts.MaxTokens, Temperature: opts.Temperature}
	}

	var resp chatResponse
	if err := s.client.PostJSON(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	logger.Debug("ollama: %s evaluated %d prompt, %d reply tokens", s.model, resp.PromptEvalCount, resp.EvalCount)
	if resp.DoneReason == "length" {
		logger.Warn("ollama: reply truncated at %d tokens", opts.MaxTokens)
	}
	return resp.Message.Content, nil
}

func decodeError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists local models, which needs no inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.client.Get(ctx, "/api/tags")
}

func (s *LLMService) Close() error { return nil }
