// Package httpocr calls a layout-aware OCR service over HTTP.
//
// The service receives a single-page PDF as the request body of
// POST {base}/v1/ocr and answers with the raster it read and the blocks
// it found, in raster pixels:
//
//	{"width": 2550, "height": 3300, "origin": "top-left",
//	 "blocks": [{"text": "...", "category": "title",
//	             "bbox": [x0, y0, x1, y1], "confidence": 0.97}]}
//
// GET {base}/healthz answers 200 when the service is ready.
package httpocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

var _ driven.OCREngine = (*Client)(nil)

// DefaultTimeout bounds one page's recognition.
const DefaultTimeout = 120 * time.Second

// Config holds the OCR client configuration.
type Config struct {
	// BaseURL is the service root (required).
	BaseURL string

	// Timeout bounds one request.
	Timeout time.Duration
}

// Client implements driven.OCREngine.
type Client struct {
	client  *http.Client
	baseURL string
}

type ocrResponse struct {
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Origin string     `json:"origin"`
	Blocks []ocrBlock `json:"blocks"`
	Error  string     `json:"error,omitempty"`
}

type ocrBlock struct {
	Text       string    `json:"text"`
	Category   string    `json:"category"`
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
}

// New creates an OCR client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, domain.ErrOCRUnavailable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
	}, nil
}

// Recognize implements driven.OCREngine.
func (c *Client) Recognize(ctx context.Context, pagePDF []byte) (*driven.OCRPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(pagePDF))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOCRUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out ocrResponse
	decodeErr := json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if decodeErr != nil || msg == "" {
			msg = string(body)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d: %s", domain.ErrOCRUnavailable, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("ocr service error (status %d): %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return out.toPage()
}

func (r ocrResponse) toPage() (*driven.OCRPage, error) {
	origin := driven.OriginTopLeft
	switch driven.RasterOrigin(r.Origin) {
	case "", driven.OriginTopLeft:
	case driven.OriginBottomLeft:
		origin = driven.OriginBottomLeft
	default:
		return nil, fmt.Errorf("ocr service returned unknown origin %q", r.Origin)
	}

	page := &driven.OCRPage{
		Raster: domain.PixelSize{Width: r.Width, Height: r.Height},
		Origin: origin,
		Blocks: make([]driven.OCRBlock, 0, len(r.Blocks)),
	}
	for i, b := range r.Blocks {
		box, err := domain.BoundingBoxFromSlice(b.BBox)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		page.Blocks = append(page.Blocks, driven.OCRBlock{
			Text:       b.Text,
			Category:   b.Category,
			BBox:       box,
			Confidence: b.Confidence,
		})
	}
	return page, nil
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("ocr: failed to create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOCRUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", domain.ErrOCRUnavailable, resp.StatusCode)
	}
	return nil
}
