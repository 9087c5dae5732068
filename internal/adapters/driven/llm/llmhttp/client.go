// Package llmhttp is the JSON transport shared by the chat adapters.
//
// Every failure comes back as *domain.LLMProviderError. Transport errors,
// 408, 429 and 5xx replies are retried with exponential backoff before
// the error is returned.
package llmhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/logger"
)

// Defaults for Config.
const (
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 2
	DefaultBackoff    = 500 * time.Millisecond

	// maxErrorBody caps how much of an unparsed error reply is kept.
	maxErrorBody = 256
)

// ErrorDecoder pulls the provider's message out of an error reply.
// It returns "" when the body is not in the provider's error shape.
type ErrorDecoder func(body []byte) string

// Config configures a Client.
type Config struct {
	Provider   string
	BaseURL    string
	Header     http.Header
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration
	DecodeErr  ErrorDecoder
}

// Client posts JSON to one provider.
type Client struct {
	http       *http.Client
	provider   string
	baseURL    string
	header     http.Header
	maxRetries uint64
	backoff    time.Duration
	decodeErr  ErrorDecoder
}

// New creates a client. Zero values in cfg take the package defaults.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	header := cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		provider:   cfg.Provider,
		baseURL:    cfg.BaseURL,
		header:     header,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		decodeErr:  cfg.DecodeErr,
	}
}

// PostJSON sends body to path and decodes a 200 reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.post(ctx, path, payload, out)
		var pe *domain.LLMProviderError
		if errors.As(err, &pe) && pe.Retryable {
			logger.Debug("%s: attempt %d failed: %v", c.provider, attempt, err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	req.Header = c.header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.LLMProviderError{Provider: c.provider, Retryable: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.LLMProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.LLMProviderError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Retryable:  domain.IsRetryableStatus(resp.StatusCode),
			Err:        errors.New(c.message(raw)),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.LLMProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Get issues a GET and reports any non-200 status as an error. The chat
// adapters use it for Ping.
func (c *Client) Get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	req.Header = c.header.Clone()
	req.Header.Del("Content-Type")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.LLMProviderError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &domain.LLMProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Err: errors.New(c.message(raw))}
	}
	return nil
}

func (c *Client) message(raw []byte) string {
	if c.decodeErr != nil {
		if msg := c.decodeErr(raw); msg != "" {
			return msg
		}
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return string(bytes.TrimSpace(raw))
}
