// Package embedding wraps the external embedding service behind an Encoder
// interface. The service is an opaque text -> fixed-length vector function;
// its model version is part of run provenance.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
)

// Encoder turns a batch of texts into fixed-length dense vectors.
// Implementations must be deterministic for a given model version.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	ModelVersion() string
}

// Config holds embedding client configuration.
type Config struct {
	URL         string
	Model       string
	BatchSize   int
	MaxAttempts int
	Timeout     time.Duration
}

// Client calls the embedding HTTP service. Calls are batched to amortize
// request overhead and retried a bounded number of times with backoff; if
// retries are exhausted the error names the service so a failed run is
// clearly attributed rather than silently carrying zero-vectors.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     ectologger.Logger

	// One Client is shared by every concurrent run.
	mu           sync.RWMutex
	modelVersion string
}

// NewClient creates a new embedding client.
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type encodeRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type encodeResponse struct {
	Vectors      [][]float32 `json:"vectors"`
	ModelVersion string      `json:"model_version"`
}

// Encode embeds texts in batches, preserving input order.
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.encodeBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// ModelVersion returns the version reported by the most recent successful
// call, falling back to the configured model name before the first call.
func (c *Client) ModelVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.modelVersion != "" {
		return c.modelVersion
	}
	return c.cfg.Model
}

func (c *Client) encodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	// Fibonacci backoff between attempts.
	a, b := 1, 1
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.post(ctx, texts)
		if err == nil {
			if len(resp.Vectors) != len(texts) {
				return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(resp.Vectors), len(texts))
			}
			c.mu.Lock()
			c.modelVersion = resp.ModelVersion
			c.mu.Unlock()
			return resp.Vectors, nil
		}
		lastErr = err
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"attempt": attempt,
			"batch":   len(texts),
		}).Warn("Embedding request failed")

		if attempt == c.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	return nil, fmt.Errorf("embedding service unavailable after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, texts []string) (*encodeResponse, error) {
	body, err := json.Marshal(encodeRequest{Model: c.cfg.Model, Texts: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(payload))
	}

	var out encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	return &out, nil
}
