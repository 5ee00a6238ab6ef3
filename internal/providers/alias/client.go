/**
 * @description
 * Alias (GOAT) marketplace adapter.
 * Translates catalog ids into Alias keys and normalizes pricing insights into
 * the common snapshot shape. Alias prices are integer cents on the wire and
 * MUST be divided by 100 exactly once, here.
 *
 * @dependencies
 * - internal/providers: common contract and error taxonomy
 * - internal/providers/httpx: resilient HTTP client
 * - internal/config
 */

package alias

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

const providerName = "alias"

// Client is the Alias adapter
type Client struct {
	baseURL string
	http    *httpx.Client
}

// NewClient builds the adapter from application config.
// Alias uses a long-lived personal token, so the token source is static.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.Providers.AliasURL,
		http: httpx.NewClient(httpx.Options{
			Provider:          providerName,
			Timeout:           cfg.Sync.RequestTimeout,
			Tokens:            httpx.StaticTokenSource(cfg.Providers.AliasToken),
			RequestsPerSecond: cfg.Providers.AliasRPS,
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
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// SearchCatalog finds Alias catalog items for a style code or query
func (c *Client) SearchCatalog(ctx context.Context, query string, limit int) ([]providers.CatalogResult, error) {
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))

	var resp catalogSearchResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, "/catalog/search", q)
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]providers.CatalogResult, 0, len(resp.CatalogItems))
	for _, item := range resp.CatalogItems {
		results = append(results, providers.CatalogResult{
			ExternalID: item.CatalogID,
			Name:       item.Name,
			Brand:      item.BrandName,
			SKU:        item.SKU,
			ImageURL:   item.ImageURL,
		})
	}
	return results, nil
}

// FetchVariants lists the size/region availability of a catalog item
func (c *Client) FetchVariants(ctx context.Context, externalProductID string) ([]providers.VariantInfo, error) {
	if externalProductID == "" {
		return nil, &providers.ValidationError{Provider: providerName, Details: "catalog id is required"}
	}

	var resp availabilityResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, fmt.Sprintf("/catalog/%s/availability", externalProductID), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}

	variants := make([]providers.VariantInfo, 0, len(resp.Availability))
	for _, a := range resp.Availability {
		variants = append(variants, providers.VariantInfo{
			// Alias keys market lookups by catalog id + size, not a separate variant id
			ExternalVariantID: fmt.Sprintf("%s:%s", a.CatalogID, formatSize(a.Size)),
			Size:              formatSize(a.Size),
			SizeSystem:        normalizeSizeUnit(a.SizeUnit),
			Region:            strconv.Itoa(a.RegionID),
			Consignment:       a.Consigned,
		})
	}
	return variants, nil
}

// FetchMarketData returns normalized pricing insights for one size
func (c *Client) FetchMarketData(ctx context.Context, externalProductID, externalVariantID, currency string) (*providers.VariantMarketSnapshot, error) {
	if externalProductID == "" {
		return nil, &providers.ValidationError{Provider: providerName, Details: "catalog id is required"}
	}

	q := url.Values{}
	q.Set("currency", currency)
	if _, size, ok := splitVariantKey(externalVariantID); ok {
		q.Set("size", size)
	}

	var resp pricingInsightsResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, fmt.Sprintf("/pricing_insights/%s", externalProductID), q)
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
		Currency:          resp.Currency,
		LowestAsk:         centsToMajor(resp.LowestPriceCents),
		HighestBid:        centsToMajor(resp.HighestOfferCents),
		LastSalePrice:     centsToMajor(resp.LastSoldPriceCents),
		SalesLast72h:      resp.SalesLast72Hours,
		SalesLast7d:       resp.SalesLast7Days,
		SalesLast30d:      resp.SalesLast30Days,
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

// centsToMajor converts integer cents into major units. Zero means no market.
func centsToMajor(cents int64) *float64 {
	if cents <= 0 {
		return nil
	}
	v := float64(cents) / 100.0
	return &v
}

func formatSize(size float64) string {
	return strconv.FormatFloat(size, 'f', -1, 64)
}

func splitVariantKey(key string) (catalogID, size string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

func normalizeSizeUnit(unit string) string {
	switch unit {
	case "us":
		return "US"
	case "uk":
		return "UK"
	case "eu":
		return "EU"
	case "jp":
		return "JP"
	default:
		return "US"
	}
}
