/**
 * @description
 * StockX marketplace adapter.
 * Translates style ids into StockX product/variant keys and normalizes market
 * data into the common snapshot shape. StockX already reports major currency
 * units, so normalization here is string-decimal parsing, not unit conversion.
 *
 * @dependencies
 * - internal/providers: common contract and error taxonomy
 * - internal/providers/httpx: resilient HTTP client with OAuth refresh
 * - internal/config
 *
 * @notes
 * - Requires both a bearer token (OAuth refresh flow) and the x-api-key header.
 * - A variant with no asks, bids, or sales returns (nil, nil): many sizes simply
 *   have no market and that is not an error.
 */

package stockx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/providers"
	"github.com/solestack-project/backend/internal/providers/httpx"
)

const providerName = "stockx"

// Client is the StockX adapter
type Client struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
}

// NewClient builds the adapter from application config
func NewClient(cfg *config.Config) *Client {
	tokens := httpx.NewOAuthTokenSource(httpx.OAuthConfig{
		TokenURL:     "https://accounts.stockx.com/oauth/token",
		ClientID:     cfg.Providers.StockXClientID,
		ClientSecret: cfg.Providers.StockXClientSecret,
		RefreshToken: cfg.Providers.StockXRefreshToken,
	})

	return &Client{
		baseURL: cfg.Providers.StockXURL,
		apiKey:  cfg.Providers.StockXAPIKey,
		http: httpx.NewClient(httpx.Options{
			Provider:          providerName,
			Timeout:           cfg.Sync.RequestTimeout,
			Tokens:            tokens,
			RequestsPerSecond: cfg.Providers.StockXRPS,
		}),
	}
}

// Name returns the provider key
func (c *Client) Name() string {
	return providerName
}

func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// SearchCatalog finds StockX products for a style code or free-text query
func (c *Client) SearchCatalog(ctx context.Context, query string, limit int) ([]providers.CatalogResult, error) {
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("pageSize", strconv.Itoa(limit))

	var resp searchResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, "/catalog/search", q)
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]providers.CatalogResult, 0, len(resp.Products))
	for _, p := range resp.Products {
		results = append(results, providers.CatalogResult{
			ExternalID: p.ProductID,
			Name:       p.Title,
			Brand:      p.Brand,
			SKU:        p.StyleID,
			ImageURL:   p.Media.ImageURL,
		})
	}
	return results, nil
}

// FetchVariants lists the sizes StockX sells for a product
func (c *Client) FetchVariants(ctx context.Context, externalProductID string) ([]providers.VariantInfo, error) {
	if externalProductID == "" {
		return nil, &providers.ValidationError{Provider: providerName, Details: "product id is required"}
	}

	var resp []productVariant
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, fmt.Sprintf("/catalog/products/%s/variants", externalProductID), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}

	variants := make([]providers.VariantInfo, 0, len(resp))
	for _, v := range resp {
		variants = append(variants, providers.VariantInfo{
			ExternalVariantID: v.VariantID,
			Size:              v.VariantValue,
			SizeSystem:        sizeSystemFromChart(v.SizeChart.DefaultConversion.Type),
		})
	}
	return variants, nil
}

// FetchMarketData returns the normalized market state for one variant
func (c *Client) FetchMarketData(ctx context.Context, externalProductID, externalVariantID, currency string) (*providers.VariantMarketSnapshot, error) {
	if externalProductID == "" || externalVariantID == "" {
		return nil, &providers.ValidationError{Provider: providerName, Details: "product and variant ids are required"}
	}

	q := url.Values{}
	q.Set("currencyCode", currency)

	var resp marketData
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		path := fmt.Sprintf("/catalog/products/%s/variants/%s/market-data", externalProductID, externalVariantID)
		return c.newRequest(ctx, path, q)
	}, &resp)
	if err != nil {
		if providers.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	snapshot := &providers.VariantMarketSnapshot{
		ExternalProductID: externalProductID,
		ExternalVariantID: externalVariantID,
		Currency:          resp.CurrencyCode,
		LowestAsk:         parseAmount(resp.LowestAskAmount),
		HighestBid:        parseAmount(resp.HighestBidAmount),
		LastSalePrice:     parseAmount(resp.LastSaleAmount),
		SalesLast72h:      resp.SalesLast72Hours,
		SalesLast7d:       resp.SalesLastWeek,
		SalesLast30d:      resp.SalesLastMonth,
		ObservedAt:        time.Now().UTC(),
	}
	if snapshot.Currency == "" {
		snapshot.Currency = currency
	}

	if snapshot.Empty() {
		return nil, nil
	}
	return snapshot, nil
}

// parseAmount converts StockX's decimal string amounts ("150", "150.00") into
// major units. Empty strings mean no market on that side.
func parseAmount(raw string) *float64 {
	if raw == "" || raw == "0" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

func sizeSystemFromChart(chartType string) string {
	switch {
	case len(chartType) >= 2 && chartType[:2] == "us":
		return "US"
	case len(chartType) >= 2 && chartType[:2] == "uk":
		return "UK"
	case len(chartType) >= 2 && chartType[:2] == "eu":
		return "EU"
	case len(chartType) >= 2 && chartType[:2] == "jp":
		return "JP"
	default:
		return "US"
	}
}
