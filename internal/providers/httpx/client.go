/**
 * @description
 * Resilient HTTP client shared by all marketplace adapters.
 * Wraps each outbound call with request pacing, bearer-token lifecycle, a hard
 * timeout, and typed retry behavior:
 *   - AuthError: refresh token once, retry once, then surface
 *   - RateLimitError: sleep the provider-specified duration, bounded retries
 *   - TransientServerError (incl. timeouts): exponential backoff, bounded retries
 *   - ValidationError / NotFoundError: surfaced immediately, never retried
 *
 * @dependencies
 * - golang.org/x/time/rate: per-provider request pacing
 * - internal/backoff: shared retry schedule
 * - internal/providers: error taxonomy
 */

package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/providers"
	"golang.org/x/time/rate"
)

// RequestBuilder constructs a fresh request for each attempt. The client adds
// the Authorization header afterwards, so builders should not set it.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Client executes provider requests with auth and resilience policy applied
type Client struct {
	Provider   string
	HTTPClient *http.Client
	Tokens     TokenSource
	Limiter    *rate.Limiter
	Retry      backoff.Policy

	// sleep is swappable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures a Client
type Options struct {
	Provider string
	Timeout  time.Duration
	Tokens   TokenSource
	// RequestsPerSecond of zero disables pacing
	RequestsPerSecond float64
	Retry             backoff.Policy
}

// NewClient builds a resilient client for one provider
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = backoff.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	}

	return &Client{
		Provider:   opts.Provider,
		HTTPClient: &http.Client{Timeout: timeout},
		Tokens:     opts.Tokens,
		Limiter:    limiter,
		Retry:      retry,
		sleep:      sleepCtx,
	}
}

// DoJSON executes the request with full resilience policy and decodes the 2xx
// response body into out (skipped when out is nil).
func (c *Client) DoJSON(ctx context.Context, build RequestBuilder, out interface{}) error {
	body, err := c.do(ctx, build)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s response decode: %w", c.Provider, err)
	}
	return nil
}

// do runs the retry loop. Auth refresh happens at most once per call chain.
func (c *Client) do(ctx context.Context, build RequestBuilder) ([]byte, error) {
	refreshed := false

	for attempt := 1; ; attempt++ {
		body, err := c.attempt(ctx, build)
		if err == nil {
			return body, nil
		}

		var authErr *providers.AuthError
		if errors.As(err, &authErr) {
			if refreshed || c.Tokens == nil {
				return nil, err
			}
			refreshed = true
			if _, refreshErr := c.Tokens.ForceRefresh(ctx); refreshErr != nil {
				return nil, &providers.AuthError{Provider: c.Provider, Message: refreshErr.Error()}
			}
			// Auth retry does not consume a backoff attempt
			attempt--
			continue
		}

		var rateErr *providers.RateLimitError
		if errors.As(err, &rateErr) {
			if c.Retry.Exhausted(attempt) {
				return nil, err
			}
			if sleepErr := c.sleep(ctx, rateErr.RetryAfter); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		var transientErr *providers.TransientServerError
		if errors.As(err, &transientErr) {
			if c.Retry.Exhausted(attempt) {
				return nil, err
			}
			if sleepErr := c.sleep(ctx, c.Retry.Delay(attempt)); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		// ValidationError, NotFoundError, context cancellation, decode failures
		return nil, err
	}
}

// attempt executes one request and classifies the outcome
func (c *Client) attempt(ctx context.Context, build RequestBuilder) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := build(ctx)
	if err != nil {
		return nil, err
	}

	if c.Tokens != nil {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return nil, &providers.AuthError{Provider: c.Provider, Message: err.Error()}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Client-side timeouts and connection failures are transient
		return nil, &providers.TransientServerError{Provider: c.Provider, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.TransientServerError{Provider: c.Provider, Message: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, c.classify(resp, body)
}

// classify maps a non-2xx response onto the shared error taxonomy
func (c *Client) classify(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &providers.AuthError{Provider: c.Provider, Message: truncateBody(body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &providers.RateLimitError{Provider: c.Provider, RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusNotFound:
		return &providers.NotFoundError{Provider: c.Provider, Key: resp.Request.URL.Path}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &providers.ValidationError{Provider: c.Provider, Details: truncateBody(body)}
	default:
		return &providers.TransientServerError{Provider: c.Provider, StatusCode: resp.StatusCode, Message: truncateBody(body)}
	}
}

// retryAfter parses the Retry-After header, defaulting to 5s when absent
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 5 * time.Second
}

func truncateBody(body []byte) string {
	const max = 300
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
