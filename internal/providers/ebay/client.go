/**
 * @description
 * eBay marketplace adapter.
 * Implements the common market-data contract from Browse API listings and
 * Marketplace Insights sold-item data, and additionally exposes raw sale
 * records for the sales aggregator.
 *
 * @dependencies
 * - internal/providers: common contract and error taxonomy
 * - internal/providers/httpx: resilient HTTP client with client-credentials OAuth
 * - internal/config
 *
 * @notes
 * - eBay prices arrive as decimal strings. Sales keep integer cents (the raw_sales
 *   convention); snapshot fields are converted to major units.
 * - Size extraction prefers the structured "US Shoe Size" aspect (confidence 1.0)
 *   and falls back to title parsing (confidence 0.6). The inclusion predicate
 *   only ever trusts confidence 1.0.
 */

package ebay

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/providers"
	"github.com/solestack-project/backend/internal/providers/httpx"
)

const providerName = "ebay"

// SaleRecord is one sold listing observed on eBay, prices in integer cents
type SaleRecord struct {
	ItemID                string
	MarketplaceID         string
	Title                 string
	Size                  string
	SizeSystem            string
	SizeConfidence        float64
	PriceCents            int64
	Currency              string
	Condition             string
	AuthenticityGuarantee bool
	SoldAt                time.Time
}

// Client is the eBay adapter
type Client struct {
	baseURL       string
	marketplaceID string
	http          *httpx.Client
}

// NewClient builds the adapter from application config
func NewClient(cfg *config.Config) *Client {
	tokens := httpx.NewOAuthTokenSource(httpx.OAuthConfig{
		TokenURL:     cfg.Providers.EbayURL + "/identity/v1/oauth2/token",
		ClientID:     cfg.Providers.EbayClientID,
		ClientSecret: cfg.Providers.EbayClientSecret,
		Scope:        "https://api.ebay.com/oauth/api_scope",
	})

	return &Client{
		baseURL:       cfg.Providers.EbayURL,
		marketplaceID: "EBAY_US",
		http: httpx.NewClient(httpx.Options{
			Provider:          providerName,
			Timeout:           cfg.Sync.RequestTimeout,
			Tokens:            tokens,
			RequestsPerSecond: cfg.Providers.EbayRPS,
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
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplaceID)
	return req, nil
}

// SearchCatalog finds products by query, collapsing listings onto their EPID
func (c *Client) SearchCatalog(ctx context.Context, query string, limit int) ([]providers.CatalogResult, error) {
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit * 3)) // collapse duplicates onto EPIDs

	var resp browseSearchResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, "/buy/browse/v1/item_summary/search", q)
	}, &resp)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var results []providers.CatalogResult
	for _, item := range resp.ItemSummaries {
		if item.EPID == "" || seen[item.EPID] {
			continue
		}
		seen[item.EPID] = true
		results = append(results, providers.CatalogResult{
			ExternalID: item.EPID,
			Name:       item.Title,
			SKU:        query,
			ImageURL:   item.Image.ImageURL,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// FetchVariants derives the traded sizes for a product from recent sold items
func (c *Client) FetchVariants(ctx context.Context, externalProductID string) ([]providers.VariantInfo, error) {
	if externalProductID == "" {
		return nil, &providers.ValidationError{Provider: providerName, Details: "epid is required"}
	}

	sales, err := c.fetchItemSales(ctx, url.Values{"epid": {externalProductID}, "limit": {"200"}})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var variants []providers.VariantInfo
	for _, sale := range sales {
		size, _, confidence := extractSize(sale)
		if size == "" || confidence < 1.0 || seen[size] {
			continue
		}
		seen[size] = true
		variants = append(variants, providers.VariantInfo{
			ExternalVariantID: size,
			Size:              size,
			SizeSystem:        "US",
			Region:            c.marketplaceID,
		})
	}
	return variants, nil
}

// FetchMarketData combines active-listing asks with sold-item history.
// externalVariantID is the size for eBay.
func (c *Client) FetchMarketData(ctx context.Context, externalProductID, externalVariantID, currency string) (*providers.VariantMarketSnapshot, error) {
	if externalProductID == "" {
		return nil, &providers.ValidationError{Provider: providerName, Details: "epid is required"}
	}

	lowestAsk, err := c.lowestActiveAsk(ctx, externalProductID, externalVariantID, currency)
	if err != nil && !providers.IsNotFound(err) {
		return nil, err
	}

	sales, err := c.fetchItemSales(ctx, url.Values{"epid": {externalProductID}, "limit": {"200"}})
	if err != nil && !providers.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	var lastSale *float64
	var lastSaleAt time.Time
	var count72h, count7d, count30d int
	for _, sale := range sales {
		size, _, _ := extractSize(sale)
		if externalVariantID != "" && size != externalVariantID {
			continue
		}
		cents, cur := parseMoneyCents(sale.LastSoldPrice)
		if cents <= 0 || (currency != "" && cur != currency) {
			continue
		}
		soldAt, err := time.Parse(time.RFC3339, sale.LastSoldDate)
		if err != nil {
			continue
		}
		age := now.Sub(soldAt)
		if age <= 72*time.Hour {
			count72h++
		}
		if age <= 7*24*time.Hour {
			count7d++
		}
		if age <= 30*24*time.Hour {
			count30d++
		}
		if soldAt.After(lastSaleAt) {
			lastSaleAt = soldAt
			major := float64(cents) / 100.0
			lastSale = &major
		}
	}

	snapshot := &providers.VariantMarketSnapshot{
		ExternalProductID: externalProductID,
		ExternalVariantID: externalVariantID,
		Size:              externalVariantID,
		Region:            c.marketplaceID,
		Currency:          currency,
		LowestAsk:         lowestAsk,
		LastSalePrice:     lastSale,
		SalesLast72h:      count72h,
		SalesLast7d:       count7d,
		SalesLast30d:      count30d,
		ObservedAt:        now,
	}
	if snapshot.Empty() {
		return nil, nil
	}
	return snapshot, nil
}

// FetchRecentSales returns raw sold-item records for the sales aggregator
func (c *Client) FetchRecentSales(ctx context.Context, sku string, limit int) ([]SaleRecord, error) {
	if sku == "" {
		return nil, &providers.ValidationError{Provider: providerName, Details: "sku is required"}
	}
	if limit <= 0 {
		limit = 200
	}

	sales, err := c.fetchItemSales(ctx, url.Values{"q": {sku}, "limit": {strconv.Itoa(limit)}})
	if err != nil {
		if providers.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	records := make([]SaleRecord, 0, len(sales))
	for _, sale := range sales {
		cents, currency := parseMoneyCents(sale.LastSoldPrice)
		if cents <= 0 {
			continue
		}
		soldAt, err := time.Parse(time.RFC3339, sale.LastSoldDate)
		if err != nil {
			continue
		}
		size, system, confidence := extractSize(sale)
		records = append(records, SaleRecord{
			ItemID:                sale.ItemID,
			MarketplaceID:         c.marketplaceID,
			Title:                 sale.Title,
			Size:                  size,
			SizeSystem:            system,
			SizeConfidence:        confidence,
			PriceCents:            cents,
			Currency:              currency,
			Condition:             normalizeCondition(sale.ConditionID, sale.Condition),
			AuthenticityGuarantee: hasAuthenticityGuarantee(sale.QualifiedPrograms),
			SoldAt:                soldAt,
		})
	}
	return records, nil
}

func (c *Client) fetchItemSales(ctx context.Context, q url.Values) ([]itemSale, error) {
	var resp insightsResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, "/buy/marketplace_insights/v1_beta/item_sales/search", q)
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.ItemSales, nil
}

func (c *Client) lowestActiveAsk(ctx context.Context, epid, size, currency string) (*float64, error) {
	q := url.Values{}
	q.Set("epid", epid)
	q.Set("filter", "conditions:{NEW}")
	q.Set("limit", "100")
	if size != "" {
		q.Set("aspect_filter", fmt.Sprintf("categoryId:15709,US Shoe Size:{%s}", size))
	}

	var resp browseSearchResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, "/buy/browse/v1/item_summary/search", q)
	}, &resp)
	if err != nil {
		return nil, err
	}

	lowest := math.MaxFloat64
	for _, item := range resp.ItemSummaries {
		if currency != "" && item.Price.Currency != currency {
			continue
		}
		v, err := strconv.ParseFloat(item.Price.Value, 64)
		if err != nil || v <= 0 {
			continue
		}
		if v < lowest {
			lowest = v
		}
	}
	if lowest == math.MaxFloat64 {
		return nil, nil
	}
	return &lowest, nil
}

// parseMoneyCents converts a decimal money string into integer cents
func parseMoneyCents(m moneyValue) (int64, string) {
	if m.Value == "" {
		return 0, m.Currency
	}
	v, err := strconv.ParseFloat(m.Value, 64)
	if err != nil {
		return 0, m.Currency
	}
	return int64(math.Round(v * 100)), m.Currency
}

var titleSizePattern = regexp.MustCompile(`(?i)\bsize\s+(\d{1,2}(?:\.5)?)\b`)

// extractSize pulls the size from structured aspects when available, otherwise
// from the listing title. Only the structured path earns confidence 1.0.
func extractSize(sale itemSale) (size, system string, confidence float64) {
	for _, aspect := range sale.ItemAspects {
		if strings.EqualFold(aspect.Name, "US Shoe Size") && aspect.Value != "" {
			return aspect.Value, "US", 1.0
		}
	}
	if match := titleSizePattern.FindStringSubmatch(sale.Title); match != nil {
		return match[1], "US", 0.6
	}
	return "", "", 0
}

func normalizeCondition(conditionID, condition string) string {
	// eBay condition id 1000 is "New"; anything else is treated cautiously
	if conditionID == "1000" || strings.EqualFold(condition, "new") {
		return "NEW"
	}
	if strings.Contains(strings.ToLower(condition), "used") || strings.Contains(strings.ToLower(condition), "pre-owned") {
		return "USED"
	}
	return "OTHER"
}

func hasAuthenticityGuarantee(programs []string) bool {
	for _, p := range programs {
		if p == "AUTHENTICITY_GUARANTEE" {
			return true
		}
	}
	return false
}
