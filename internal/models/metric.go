/**
 * @description
 * Computed sale metric database model.
 * Maps to the 'sale_metrics' table in PostgreSQL. Fully derived from raw_sales
 * and recomputable at any time; upserts are keyed by (sku, size, currency,
 * marketplace).
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import "time"

// SaleMetric holds rolling-window statistics for one (sku, size, currency, marketplace)
type SaleMetric struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU         string `gorm:"column:sku;uniqueIndex:idx_sale_metrics_key,priority:1;not null" json:"sku"`
	Size        string `gorm:"column:size;type:varchar(16);uniqueIndex:idx_sale_metrics_key,priority:2;not null" json:"size"`
	Currency    string `gorm:"column:currency;type:varchar(3);uniqueIndex:idx_sale_metrics_key,priority:3;not null" json:"currency"`
	Marketplace string `gorm:"column:marketplace;uniqueIndex:idx_sale_metrics_key,priority:4;not null" json:"marketplace"`

	MedianCents72h *int64 `gorm:"column:median_cents_72h" json:"median_cents_72h"`
	MedianCents7d  *int64 `gorm:"column:median_cents_7d" json:"median_cents_7d"`
	MedianCents30d *int64 `gorm:"column:median_cents_30d" json:"median_cents_30d"`
	MedianCents90d *int64 `gorm:"column:median_cents_90d" json:"median_cents_90d"`

	Samples72h int `gorm:"column:samples_72h" json:"samples_72h"`
	Samples7d  int `gorm:"column:samples_7d" json:"samples_7d"`
	Samples30d int `gorm:"column:samples_30d" json:"samples_30d"`
	Samples90d int `gorm:"column:samples_90d" json:"samples_90d"`

	MinCents90d *int64 `gorm:"column:min_cents_90d" json:"min_cents_90d"`
	MaxCents90d *int64 `gorm:"column:max_cents_90d" json:"max_cents_90d"`

	// Coefficient of variation of 90d included prices
	Volatility   float64 `gorm:"column:volatility;type:decimal(8,5)" json:"volatility"`
	OutlierRatio float64 `gorm:"column:outlier_ratio;type:decimal(5,4)" json:"outlier_ratio"`
	Confidence   float64 `gorm:"column:confidence;type:decimal(5,4)" json:"confidence"`
	Liquidity    float64 `gorm:"column:liquidity;type:decimal(8,5)" json:"liquidity"`

	ComputedAt time.Time `gorm:"column:computed_at" json:"computed_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by SaleMetric to `sale_metrics`
func (SaleMetric) TableName() string {
	return "sale_metrics"
}
