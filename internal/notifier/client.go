package notifier

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
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/domain"
	"go.uber.org/zap"
)

// Path is the ERP endpoint that creates system notifications
const Path = "/notifications/system_create/"

const (
	ServiceTokenHeader   = "X-Service-Token"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// StatusError is returned for a non-2xx ERP response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("erp responded %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry may succeed. 4xx responses are permanent.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsTemporary classifies a Notify error. Network failures are temporary.
func IsTemporary(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return err != nil && !errors.Is(err, context.Canceled)
}

// Client posts notifications to the ERP
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewClient creates a notifier. With no base URL or token every Notify is a no-op.
func NewClient(cfg *config.ERPConfig, logger *zap.Logger) *Client {
	timeout := cfg.TimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := cfg.RetryBaseDuration()
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		token:       cfg.ServiceToken,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: attempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// Enabled reports whether notifications are sent at all
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.token != ""
}

// Notify delivers one notification, retrying temporary failures with
// exponential backoff. The idempotency key lets the ERP drop replays.
func (c *Client) Notify(ctx context.Context, n domain.Notification, idempotencyKey string) error {
	if !c.Enabled() {
		c.logger.Debug("erp notifier disabled, dropping notification",
			zap.String("idempotency_key", idempotencyKey))
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewExponential(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.post(ctx, body, idempotencyKey)
		if err == nil {
			return nil
		}
		c.logger.Warn("erp notification attempt failed",
			zap.Int("attempt", attempt),
			zap.String("idempotency_key", idempotencyKey),
			zap.Error(err),
		)
		if IsTemporary(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Info("erp notification sent",
		zap.Int64("user_id", n.UserID),
		zap.String("notification_type", n.NotificationType),
		zap.String("idempotency_key", idempotencyKey),
		zap.Int("attempts", attempt),
	)
	return nil
}

func (c *Client) post(ctx context.Context, body []byte, idempotencyKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ServiceTokenHeader, c.token)
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
}
