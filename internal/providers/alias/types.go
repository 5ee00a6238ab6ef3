/**
 * @description
 * Wire types for the Alias (GOAT) selling API.
 * Alias reports every price in integer cents; conversion to major units happens
 * in this package and nowhere else.
 */

package alias

// catalogSearchResponse wraps GET /catalog/search
type catalogSearchResponse struct {
	CatalogItems []catalogItem `json:"catalog_items"`
}

type catalogItem struct {
	CatalogID string `json:"catalog_id"`
	Name      string `json:"name"`
	BrandName string `json:"brand_name"`
	SKU       string `json:"sku"`
	ImageURL  string `json:"main_picture_url"`
}

// availabilityResponse wraps GET /catalog/{id}/availability
type availabilityResponse struct {
	Availability []sizeAvailability `json:"availability"`
}

type sizeAvailability struct {
	CatalogID        string  `json:"catalog_id"`
	Size             float64 `json:"size"`
	SizeUnit         string  `json:"size_unit"` // "us", "eu", ...
	RegionID         int     `json:"region_id"`
	Consigned        bool    `json:"consigned"`
	ProductCondition string  `json:"product_condition"`
}

// pricingInsightsResponse wraps GET /pricing_insights/{id}.
// All *_cents fields are integer minor units.
type pricingInsightsResponse struct {
	CatalogID          string `json:"catalog_id"`
	Currency           string `json:"currency"`
	LowestPriceCents   int64  `json:"lowest_price_cents"`
	HighestOfferCents  int64  `json:"highest_offer_cents"`
	LastSoldPriceCents int64  `json:"last_sold_price_cents"`
	SalesLast72Hours   int    `json:"sales_last_72_hours"`
	SalesLast7Days     int    `json:"sales_last_7_days"`
	SalesLast30Days    int    `json:"sales_last_30_days"`
}
