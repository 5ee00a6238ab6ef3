package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/providers"
)

func testClient(t *testing.T, tokens TokenSource) *Client {
	t.Helper()
	c := NewClient(Options{
		Provider: "testprov",
		Timeout:  2 * time.Second,
		Tokens:   tokens,
		Retry:    backoff.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond},
	})
	// keep tests fast regardless of Retry-After values
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func getBuilder(url string) RequestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	if err := testClient(t, nil).DoJSON(context.Background(), getBuilder(srv.URL), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.OK {
		t.Fatal("expected decoded response")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetriesTransientWithBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if err := testClient(t, nil).DoJSON(context.Background(), getBuilder(srv.URL), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestTransientExhaustsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(t, nil).DoJSON(context.Background(), getBuilder(srv.URL), nil)
	var transient *providers.TransientServerError
	if !errors.As(err, &transient) {
		t.Fatalf("expected TransientServerError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls (max attempts), got %d", calls)
	}
}

type countingTokens struct {
	refreshes int32
}

func (c *countingTokens) Token(ctx context.Context) (string, error) {
	return "token-a", nil
}

func (c *countingTokens) ForceRefresh(ctx context.Context) (string, error) {
	atomic.AddInt32(&c.refreshes, 1)
	return "token-b", nil
}

func TestAuthRefreshExactlyOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	if err := testClient(t, tokens).DoJSON(context.Background(), getBuilder(srv.URL), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&tokens.refreshes) != 1 {
		t.Fatalf("expected exactly 1 refresh, got %d", tokens.refreshes)
	}
}

func TestSecondAuthFailureSurfaces(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	err := testClient(t, tokens).DoJSON(context.Background(), getBuilder(srv.URL), nil)
	var authErr *providers.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	// One refresh, two total requests: never loops
	if atomic.LoadInt32(&tokens.refreshes) != 1 {
		t.Fatalf("expected exactly 1 refresh, got %d", tokens.refreshes)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestValidationErrorNeverRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := testClient(t, nil).DoJSON(context.Background(), getBuilder(srv.URL), nil)
	if !providers.IsPermanent(err) {
		t.Fatalf("expected permanent ValidationError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestNotFoundSurfacesImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := testClient(t, nil).DoJSON(context.Background(), getBuilder(srv.URL), nil)
	if !providers.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Options{
		Provider: "testprov",
		Timeout:  20 * time.Millisecond,
		Retry:    backoff.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	err := c.DoJSON(context.Background(), getBuilder(srv.URL), nil)
	var transient *providers.TransientServerError
	if !errors.As(err, &transient) {
		t.Fatalf("expected timeout to classify as TransientServerError, got %v", err)
	}
}

func TestRetryAfterParsing(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	if got := retryAfter(resp); got != 7*time.Second {
		t.Fatalf("expected 7s, got %v", got)
	}

	resp.Header.Del("Retry-After")
	if got := retryAfter(resp); got != 5*time.Second {
		t.Fatalf("expected 5s default, got %v", got)
	}
}
