/**
 * @description
 * Wire types for the eBay Browse/Marketplace Insights APIs.
 * eBay reports prices as decimal strings with a separate currency field; parsing
 * into cents (for sales) and major units (for snapshots) happens in this package.
 */

package ebay

// browseSearchResponse wraps GET /buy/browse/v1/item_summary/search
type browseSearchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	ItemID    string     `json:"itemId"`
	Title     string     `json:"title"`
	EPID      string     `json:"epid"`
	Price     moneyValue `json:"price"`
	Condition string     `json:"condition"`
	Image     struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
}

type moneyValue struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// insightsResponse wraps GET /buy/marketplace_insights/v1_beta/item_sales/search
type insightsResponse struct {
	Total     int        `json:"total"`
	ItemSales []itemSale `json:"itemSales"`
}

type itemSale struct {
	ItemID            string       `json:"itemId"`
	Title             string       `json:"title"`
	EPID              string       `json:"epid"`
	Condition         string       `json:"condition"`
	ConditionID       string       `json:"conditionId"`
	LastSoldDate      string       `json:"lastSoldDate"`
	LastSoldPrice     moneyValue   `json:"lastSoldPrice"`
	QualifiedPrograms []string     `json:"qualifiedPrograms"`
	ItemAspects       []itemAspect `json:"localizedAspects"`
}

type itemAspect struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
