package wms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/sync"
)

// maxResponseSize is the maximum allowed response size from the WMS API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// defaultMaxRetries bounds transport-level retries for transient failures
const defaultMaxRetries = 3

// ClientConfig holds WMS API connection settings
type ClientConfig struct {
	BaseURL      string
	Token        string
	CustomerCode string
	WmsCode      string
	Timeout      time.Duration
	MaxRetries   int
}

// Validate checks that the required connection settings are present
func (c *ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: wms base url is required", sync.ErrConfiguration)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: wms api token is required", sync.ErrConfiguration)
	}
	return nil
}

// Client is the authenticated, rate-limited HTTP transport to the WMS API
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a WMS API client gated by the given rate limiter
func NewClient(cfg ClientConfig, limiter *RateLimiter, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// Request performs one API call with rate limiting and bounded retries for
// transient failures. The returned body is the raw response JSON.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		result, err := c.attempt(ctx, method, path, payload, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !sync.IsRetryable(err) || attempt == c.cfg.MaxRetries {
			break
		}

		// 429 backoff is recorded in the shared status and honored by the
		// next Acquire; 5xx and network errors wait here
		if !errors.Is(err, sync.ErrRateLimited) {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
				return nil, fmt.Errorf("%w: %v", sync.ErrNetwork, sleepErr)
			}
		}
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, attempt int) (json.RawMessage, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if c.cfg.CustomerCode != "" {
		req.Header.Set("X-Customer-Code", c.cfg.CustomerCode)
	}
	if c.cfg.WmsCode != "" {
		req.Header.Set("X-Wms-Code", c.cfg.WmsCode)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logRequest(method, path, attempt, duration, 0, err)
		return nil, fmt.Errorf("%w: %v", sync.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logRequest(method, path, attempt, duration, resp.StatusCode, err)
		return nil, fmt.Errorf("%w: read response: %v", sync.ErrNetwork, err)
	}

	c.limiter.RecordHeaders(ctx,
		resp.Header.Get("X-RateLimit-Remaining"),
		resp.Header.Get("X-RateLimit-Reset"))

	outcome := c.classify(ctx, resp, respBody, attempt)
	c.logRequest(method, path, attempt, duration, resp.StatusCode, outcome)
	if outcome != nil {
		return nil, outcome
	}
	return respBody, nil
}

// classify maps a response to the transport error taxonomy
func (c *Client) classify(ctx context.Context, resp *http.Response, body []byte, attempt int) error {
	switch {
	case resp.StatusCode < 400:
		return nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", sync.ErrAuth, resp.StatusCode)

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		backoff := c.limiter.RecordBackoff(ctx, retryAfter, attempt)
		return fmt.Errorf("%w: HTTP 429, backing off %s", sync.ErrRateLimited, backoff)

	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", sync.ErrServer, resp.StatusCode)

	default:
		return fmt.Errorf("%w: HTTP %d: %s", sync.ErrClient, resp.StatusCode, extractErrorMessage(body))
	}
}

func (c *Client) logRequest(method, path string, attempt int, duration time.Duration, status int, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("endpoint", path),
		zap.Int("attempt", attempt),
		zap.Duration("duration", duration),
		zap.Int("status", status),
	}
	if err != nil {
		c.logger.Warn("wms request failed", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Debug("wms request", fields...)
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// extractErrorMessage pulls a human-readable message out of the common WMS
// error body shapes: message, error, detail, or errors[]
func extractErrorMessage(body []byte) string {
	var envelope struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Detail  string          `json:"detail"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return truncate(string(body), 200)
	}

	switch {
	case envelope.Message != "":
		return envelope.Message
	case envelope.Error != "":
		return envelope.Error
	case envelope.Detail != "":
		return envelope.Detail
	}

	if len(envelope.Errors) > 0 {
		var list []string
		if err := json.Unmarshal(envelope.Errors, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
		var objects []map[string]any
		if err := json.Unmarshal(envelope.Errors, &objects); err == nil && len(objects) > 0 {
			parts := make([]string, 0, len(objects))
			for _, obj := range objects {
				for _, key := range []string{"message", "error", "detail"} {
					if s, ok := obj[key].(string); ok && s != "" {
						parts = append(parts, s)
						break
					}
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		return truncate(string(envelope.Errors), 200)
	}

	return truncate(string(body), 200)
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
