/**
 * @description
 * Common contract every marketplace adapter implements, plus the normalized
 * snapshot shape adapters produce. Raw provider JSON never escapes an adapter;
 * by the time data reaches the worker it is in this shape with monetary fields
 * in major currency units.
 *
 * @dependencies
 * - standard "context", "time"
 */

package providers

import (
	"context"
	"time"
)

// CatalogResult is one hit from a provider catalog search
type CatalogResult struct {
	ExternalID string
	Name       string
	Brand      string
	SKU        string
	ImageURL   string
}

// VariantInfo describes one provider-side size/region unit of a product
type VariantInfo struct {
	ExternalVariantID string
	Size              string
	SizeSystem        string
	Region            string
	Consignment       bool
}

// VariantMarketSnapshot is the normalized market observation for one variant.
// All prices are MAJOR currency units regardless of the provider's native
// convention.
type VariantMarketSnapshot struct {
	ExternalProductID string
	ExternalVariantID string
	Size              string
	Region            string
	Currency          string

	LowestAsk     *float64
	HighestBid    *float64
	LastSalePrice *float64

	SalesLast72h int
	SalesLast7d  int
	SalesLast30d int

	ObservedAt time.Time
}

// MaxPlausibleMajorUnits flags values that suggest a cents/major-units mix-up.
// Nothing in this category trades six figures a pair.
const MaxPlausibleMajorUnits = 100000.0

// Plausible reports whether every monetary field is within a sane major-unit
// range. A false result almost always means an adapter forgot to divide a
// cents value.
func (s *VariantMarketSnapshot) Plausible() bool {
	for _, v := range []*float64{s.LowestAsk, s.HighestBid, s.LastSalePrice} {
		if v != nil && (*v < 0 || *v > MaxPlausibleMajorUnits) {
			return false
		}
	}
	return true
}

// Empty reports whether the snapshot carries no market data at all
// (a size with zero activity).
func (s *VariantMarketSnapshot) Empty() bool {
	return s.LowestAsk == nil && s.HighestBid == nil && s.LastSalePrice == nil
}

// MarketDataProvider is the capability each marketplace adapter implements.
// Adapters are pure translators: network in, normalized structs out, no
// persistence.
type MarketDataProvider interface {
	// Name returns the provider key ("stockx", "alias", "ebay")
	Name() string

	// SearchCatalog finds products matching a free-text query or style code
	SearchCatalog(ctx context.Context, query string, limit int) ([]CatalogResult, error)

	// FetchVariants lists the size/region units of a product
	FetchVariants(ctx context.Context, externalProductID string) ([]VariantInfo, error)

	// FetchMarketData returns the current market state for one variant.
	// A nil snapshot with nil error means the variant has no market activity.
	FetchMarketData(ctx context.Context, externalProductID, externalVariantID, currency string) (*VariantMarketSnapshot, error)
}

// Registry maps provider keys to adapters
type Registry map[string]MarketDataProvider
