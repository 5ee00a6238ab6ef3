/**
 * @description
 * Market snapshot database models.
 * 'market_snapshots' is an append-only log of point-in-time price observations.
 * 'latest_market' is a read-optimized projection holding the most recent
 * observation per (style, variant, provider, region, currency).
 * 'snapshot_daily' holds downsampled daily aggregates produced by the retention job.
 *
 * @dependencies
 * - gorm.io/gorm
 *
 * @notes
 * - All monetary columns here are MAJOR currency units. Provider adapters convert
 *   native conventions (cents, minor-unit strings) before anything is persisted.
 *   FX conversion happens only on the read path, from the fx_rates table.
 */

package models

import "time"

// Freshness labels for the latest view, derived from snapshot age
const (
	FreshnessFresh = "fresh" // < 6h old
	FreshnessAging = "aging" // 6h - 24h
	FreshnessStale = "stale" // > 24h
)

// MarketSnapshot is one immutable timestamped market observation for a variant
type MarketSnapshot struct {
	ID        uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	StyleID   string   `gorm:"column:style_id;index:idx_snapshots_key,priority:1;not null" json:"style_id"`
	VariantID uint64   `gorm:"column:variant_id;index:idx_snapshots_key,priority:2" json:"variant_id"`
	Provider  Provider `gorm:"column:provider;type:varchar(16);index:idx_snapshots_key,priority:3;not null" json:"provider"`
	Region    string   `gorm:"column:region;type:varchar(16);default:''" json:"region"`
	Currency  string   `gorm:"column:currency;type:varchar(3);not null" json:"currency"`

	LowestAsk     *float64 `gorm:"column:lowest_ask;type:decimal(12,2)" json:"lowest_ask"`
	HighestBid    *float64 `gorm:"column:highest_bid;type:decimal(12,2)" json:"highest_bid"`
	LastSalePrice *float64 `gorm:"column:last_sale_price;type:decimal(12,2)" json:"last_sale_price"`

	SalesLast72h int `gorm:"column:sales_last_72h" json:"sales_last_72h"`
	SalesLast7d  int `gorm:"column:sales_last_7d" json:"sales_last_7d"`
	SalesLast30d int `gorm:"column:sales_last_30d" json:"sales_last_30d"`

	Volatility *float64 `gorm:"column:volatility;type:decimal(8,5)" json:"volatility"`
	Liquidity  *float64 `gorm:"column:liquidity;type:decimal(8,5)" json:"liquidity"`

	ObservedAt time.Time `gorm:"column:observed_at;index;not null" json:"observed_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by MarketSnapshot to `market_snapshots`
func (MarketSnapshot) TableName() string {
	return "market_snapshots"
}

// LatestMarket is the most recent observation per key, maintained by upsert.
// The row with the highest observed_at wins regardless of insertion order.
type LatestMarket struct {
	StyleID   string   `gorm:"primaryKey;column:style_id" json:"style_id"`
	VariantID uint64   `gorm:"primaryKey;column:variant_id;autoIncrement:false" json:"variant_id"`
	Provider  Provider `gorm:"primaryKey;column:provider;type:varchar(16)" json:"provider"`
	Region    string   `gorm:"primaryKey;column:region;type:varchar(16);default:''" json:"region"`
	Currency  string   `gorm:"primaryKey;column:currency;type:varchar(3)" json:"currency"`

	LowestAsk     *float64 `gorm:"column:lowest_ask;type:decimal(12,2)" json:"lowest_ask"`
	HighestBid    *float64 `gorm:"column:highest_bid;type:decimal(12,2)" json:"highest_bid"`
	LastSalePrice *float64 `gorm:"column:last_sale_price;type:decimal(12,2)" json:"last_sale_price"`

	SalesLast72h int `gorm:"column:sales_last_72h" json:"sales_last_72h"`
	SalesLast7d  int `gorm:"column:sales_last_7d" json:"sales_last_7d"`
	SalesLast30d int `gorm:"column:sales_last_30d" json:"sales_last_30d"`

	ObservedAt time.Time `gorm:"column:observed_at;index" json:"observed_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Derived at read time, not stored
	Freshness string `gorm:"-" json:"freshness,omitempty"`
}

// TableName overrides the table name used by LatestMarket to `latest_market`
func (LatestMarket) TableName() string {
	return "latest_market"
}

// FreshnessLabel buckets a snapshot age into fresh/aging/stale
func FreshnessLabel(observedAt, now time.Time) string {
	age := now.Sub(observedAt)
	switch {
	case age < 6*time.Hour:
		return FreshnessFresh
	case age < 24*time.Hour:
		return FreshnessAging
	default:
		return FreshnessStale
	}
}

// SnapshotDaily is one downsampled day of observations per key
type SnapshotDaily struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Day       time.Time `gorm:"column:day;type:date;uniqueIndex:idx_snapshot_daily_key,priority:1;not null" json:"day"`
	StyleID   string    `gorm:"column:style_id;uniqueIndex:idx_snapshot_daily_key,priority:2;not null" json:"style_id"`
	VariantID uint64    `gorm:"column:variant_id;uniqueIndex:idx_snapshot_daily_key,priority:3" json:"variant_id"`
	Provider  Provider  `gorm:"column:provider;type:varchar(16);uniqueIndex:idx_snapshot_daily_key,priority:4;not null" json:"provider"`
	Region    string    `gorm:"column:region;type:varchar(16);uniqueIndex:idx_snapshot_daily_key,priority:5;default:''" json:"region"`
	Currency  string    `gorm:"column:currency;type:varchar(3);uniqueIndex:idx_snapshot_daily_key,priority:6;not null" json:"currency"`

	MinLowestAsk  *float64 `gorm:"column:min_lowest_ask;type:decimal(12,2)" json:"min_lowest_ask"`
	MaxLowestAsk  *float64 `gorm:"column:max_lowest_ask;type:decimal(12,2)" json:"max_lowest_ask"`
	AvgLowestAsk  *float64 `gorm:"column:avg_lowest_ask;type:decimal(12,2)" json:"avg_lowest_ask"`
	AvgHighestBid *float64 `gorm:"column:avg_highest_bid;type:decimal(12,2)" json:"avg_highest_bid"`
	LastSalePrice *float64 `gorm:"column:last_sale_price;type:decimal(12,2)" json:"last_sale_price"`
	Observations  int      `gorm:"column:observations" json:"observations"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by SnapshotDaily to `snapshot_daily`
func (SnapshotDaily) TableName() string {
	return "snapshot_daily"
}

// FxRate holds one conversion rate from a currency into USD-equivalent terms.
// Read-time conversion only; stored prices are never rewritten.
type FxRate struct {
	Currency  string    `gorm:"primaryKey;column:currency;type:varchar(3)" json:"currency"`
	RateToUSD float64   `gorm:"column:rate_to_usd;type:decimal(14,8);not null" json:"rate_to_usd"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by FxRate to `fx_rates`
func (FxRate) TableName() string {
	return "fx_rates"
}

// Convert translates an amount between currencies using USD cross rates.
// Returns the input unchanged when either rate is unknown.
func Convert(amount float64, from, to string, rates map[string]float64) float64 {
	if from == to {
		return amount
	}
	fromRate, okFrom := rates[from]
	toRate, okTo := rates[to]
	if !okFrom || !okTo || toRate == 0 {
		return amount
	}
	return amount * fromRate / toRate
}
