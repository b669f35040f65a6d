// Package flomo posts rendered digests to a flomo-compatible webhook.
package flomo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/strzhao/ai-news/internal/domain"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/retry"
)

// ErrNotConfigured is returned when the webhook URL is missing.
var ErrNotConfigured = errors.New("flomo: missing API URL")

// errTemporary wraps status codes worth retrying.
type errTemporary struct {
	status int
	body   string
}

func (e *errTemporary) Error() string {
	return fmt.Sprintf("flomo: temporary error (%d): %s", e.status, e.body)
}

// Config holds the webhook settings. The field names let the same client
// target flomo or any similar memo webhook.
type Config struct {
	APIURL       string
	APIToken     string
	TokenHeader  string
	TokenPrefix  string
	ContentField string
	DedupeField  string
	Timeout      time.Duration
	MaxRetries   int
}

// Client sends digest memos with retries on transient failures.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logger.Logger
	retryBase  time.Duration
}

// NewClient creates a Client. Defaults: Authorization/Bearer auth, "content"
// body field, 20s timeout, 3 attempts.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, ErrNotConfigured
	}
	if cfg.TokenHeader == "" {
		cfg.TokenHeader = "Authorization"
	}
	if cfg.TokenPrefix == "" {
		cfg.TokenPrefix = "Bearer"
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "content"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
		retryBase:  time.Second,
	}, nil
}

// Send posts the payload, retrying 408/429/5xx responses and transport
// errors with doubling backoff starting at one second.
func (c *Client) Send(ctx context.Context, payload domain.FlomoPayload) error {
	body := map[string]string{c.cfg.ContentField: payload.Content}
	if c.cfg.DedupeField != "" {
		body[c.cfg.DedupeField] = payload.DedupeKey
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("flomo: encode payload: %w", err)
	}

	attempt := 0
	return retry.Do(ctx, retry.Config{
		MaxAttempts:  c.cfg.MaxRetries,
		InitialDelay: c.retryBase,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		IsRetryable: func(err error) bool {
			var tmp *errTemporary
			return errors.As(err, &tmp) || !isStatusError(err)
		},
	}, func() error {
		attempt++
		err := c.post(ctx, encoded)
		if err != nil {
			c.log.Warn("flomo sync attempt failed",
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", c.cfg.MaxRetries),
				logger.Error(err))
		}
		return err
	})
}

type errStatus struct {
	status int
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("flomo: unexpected status %d", e.status)
}

func isStatusError(err error) bool {
	var s *errStatus
	return errors.As(err, &s)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("flomo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set(c.cfg.TokenHeader, c.cfg.TokenPrefix+" "+c.cfg.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("flomo: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &errTemporary{status: resp.StatusCode, body: string(snippet)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errStatus{status: resp.StatusCode}
	}

	c.log.Info("flomo sync success", logger.Int("status", resp.StatusCode))
	return nil
}
