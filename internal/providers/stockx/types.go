/**
 * @description
 * Wire types for the StockX public catalog API (v2).
 * These shapes never leave this package; everything is converted to the common
 * providers types at the boundary.
 */

package stockx

// searchResponse wraps GET /catalog/search
type searchResponse struct {
	Count    int             `json:"count"`
	Products []searchProduct `json:"products"`
}

type searchProduct struct {
	ProductID  string            `json:"productId"`
	Title      string            `json:"title"`
	Brand      string            `json:"brand"`
	StyleID    string            `json:"styleId"`
	Attributes productAttributes `json:"productAttributes"`
	Media      productMedia      `json:"media"`
}

type productAttributes struct {
	Colorway string `json:"colorway"`
	Gender   string `json:"gender"`
}

type productMedia struct {
	ImageURL string `json:"imageUrl"`
}

// productVariant is one size from GET /catalog/products/{id}/variants
type productVariant struct {
	VariantID    string `json:"variantId"`
	VariantName  string `json:"variantName"`
	VariantValue string `json:"variantValue"` // size, e.g. "9.5"
	SizeChart    struct {
		DefaultConversion struct {
			Size string `json:"size"`
			Type string `json:"type"` // "us m", "uk", "eu", ...
		} `json:"defaultConversion"`
	} `json:"sizeChart"`
}

// marketData wraps GET /catalog/products/{id}/variants/{vid}/market-data.
// StockX reports decimal major-unit amounts as strings; absent markets come
// back as empty strings rather than missing keys.
type marketData struct {
	ProductID        string `json:"productId"`
	VariantID        string `json:"variantId"`
	CurrencyCode     string `json:"currencyCode"`
	LowestAskAmount  string `json:"lowestAskAmount"`
	HighestBidAmount string `json:"highestBidAmount"`
	LastSaleAmount   string `json:"lastSaleAmount"`
	SalesLast72Hours int    `json:"salesLast72Hours"`
	SalesLastWeek    int    `json:"salesLastWeek"`
	SalesLastMonth   int    `json:"salesLastMonth"`
}
