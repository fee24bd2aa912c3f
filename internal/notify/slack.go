package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrDeliveryFailed marks a non-2xx webhook response.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// Defaults for Slack delivery.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 2
	maxErrorBody      = 512
)

// SlackOptions configures a Slack notifier.
type SlackOptions struct {
	WebhookURL string
	Timeout    time.Duration // per attempt
	MaxRetries uint64        // retries after the first attempt
	Client     *http.Client
}

// Slack posts {"text": ...} messages to an incoming webhook.
type Slack struct {
	url        string
	timeout    time.Duration
	maxRetries uint64
	client     *http.Client
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewSlack returns a Slack notifier. An empty webhook URL disables delivery.
func NewSlack(opts SlackOptions, logger *slog.Logger) *Slack {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = NewHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{
		url:        opts.WebhookURL,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		client:     opts.Client,
		logger:     logger.With("component", "notify.slack"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
}

// Enabled reports whether a webhook URL is configured.
func (s *Slack) Enabled() bool {
	return s.url != ""
}

// Send delivers text and reports confirmed delivery. Errors are logged, never returned.
func (s *Slack) Send(ctx context.Context, text string) bool {
	if err := s.Post(ctx, text); err != nil {
		s.logger.Error("slack send failed", "error", err)
		return false
	}
	return true
}

// Post delivers text, retrying transport errors and 5xx responses.
func (s *Slack) Post(ctx context.Context, text string) error {
	if !s.Enabled() {
		return fmt.Errorf("%w: webhook url not configured", ErrDeliveryFailed)
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
	return backoff.Retry(func() error {
		return s.attempt(ctx, payload)
	}, policy)
}

func (s *Slack) attempt(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Shortify-Analytics/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err = fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, bytes.TrimSpace(body))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return err
	}
	return backoff.Permanent(err)
}
