/**
 * @description
 * Access-token lifecycle for provider API clients.
 * Supports static bearer tokens (Alias) and OAuth2 refresh/client-credential
 * flows (StockX, eBay) with proactive refresh inside an expiry safety margin.
 *
 * @dependencies
 * - standard "net/http", "net/url", "encoding/json", "sync"
 */

package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RefreshMargin is how close to expiry a token may get before it is refreshed
// ahead of a request.
const RefreshMargin = 5 * time.Minute

// TokenSource supplies a bearer token for outbound requests
type TokenSource interface {
	// Token returns a currently valid access token, refreshing if needed
	Token(ctx context.Context) (string, error)
	// ForceRefresh discards the cached token and fetches a new one.
	// Called once per request chain after an auth rejection.
	ForceRefresh(ctx context.Context) (string, error)
}

// StaticTokenSource wraps a long-lived API token that cannot be refreshed
type StaticTokenSource string

// Token returns the wrapped token
func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// ForceRefresh returns the same token; a second auth rejection will surface
func (s StaticTokenSource) ForceRefresh(ctx context.Context) (string, error) {
	return string(s), nil
}

// OAuthConfig configures an OAuth2 token endpoint
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// RefreshToken switches the grant to refresh_token; empty means
	// client_credentials.
	RefreshToken string
	Scope        string
}

// OAuthTokenSource caches an access token and refreshes it near expiry
type OAuthTokenSource struct {
	config     OAuthConfig
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewOAuthTokenSource creates a token source against the given endpoint
func NewOAuthTokenSource(config OAuthConfig) *OAuthTokenSource {
	return &OAuthTokenSource{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Token returns the cached token, refreshing if it expires within the margin
func (t *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accessToken != "" && time.Until(t.expiresAt) > RefreshMargin {
		return t.accessToken, nil
	}
	return t.refreshLocked(ctx)
}

// ForceRefresh discards the cache and fetches a fresh token
func (t *OAuthTokenSource) ForceRefresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.accessToken = ""
	return t.refreshLocked(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// refreshLocked performs the token exchange. Must be called with mutex held.
func (t *OAuthTokenSource) refreshLocked(ctx context.Context) (string, error) {
	data := url.Values{}
	if t.config.RefreshToken != "" {
		data.Set("grant_type", "refresh_token")
		data.Set("refresh_token", t.config.RefreshToken)
	} else {
		data.Set("grant_type", "client_credentials")
	}
	if t.config.Scope != "" {
		data.Set("scope", t.config.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(t.config.ClientID, t.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	t.accessToken = token.AccessToken
	t.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return t.accessToken, nil
}
