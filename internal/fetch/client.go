// Package fetch provides the retrying JSON GET client shared by both venue
// adapters.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options parameterise the fetch client.
type Options struct {
	Timeout        time.Duration // per-attempt request timeout
	MaxRetries     int           // total attempts, not extra retries
	BackoffBase    time.Duration // linear backoff step between attempts
	RequestsPerSec int
	UserAgent      string
}

// Client issues JSON GET requests with rate limiting and linear-backoff
// retries. Any transport error, timeout, or non-2xx status counts as a
// transient failure.
type Client struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New constructs a fetch client.
func New(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 1500 * time.Millisecond
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "candlediff/1.0"
	}

	return &Client{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
		logger:  logger.With().Str("component", "fetch").Logger(),
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(string(e.Body))
	if msg == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, msg)
}

// Error is the terminal failure for one fetch call: every attempt failed and
// the last underlying cause is preserved.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("fetch %s: %s", e.URL, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// linearBackOff waits base, 2*base, 3*base, ... between attempts.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }

// GetJSON issues a GET with query parameters and returns the decoded JSON
// value (object, array, or scalar; numbers as json.Number). Transient
// failures are retried up to MaxRetries total attempts with linearly
// increasing backoff; exhaustion yields *Error wrapping the last cause.
// Context cancellation aborts immediately.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values) (any, error) {
	var payload any
	attempt := 0

	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		v, err := c.getOnce(ctx, rawURL, params)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		payload = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().
			Int("attempt", attempt).
			Int("max_retries", c.opts.MaxRetries).
			Str("url", rawURL).
			Dur("wait", wait).
			Err(err).
			Msg("retrying fetch")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: c.opts.BackoffBase}, uint64(c.opts.MaxRetries-1)),
		ctx,
	)

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	return payload, nil
}

func (c *Client) getOnce(ctx context.Context, rawURL string, params url.Values) (any, error) {
	endpoint := rawURL
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}
