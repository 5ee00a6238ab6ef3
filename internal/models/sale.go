/**
 * @description
 * Raw sale transaction database model (eBay sold listings).
 * Maps to the 'raw_sales' table in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 *
 * @notes
 * - Prices here are INTEGER MINOR currency units (cents), matching how the
 *   marketplace reports them. Snapshots elsewhere use major units; never mix.
 * - included_in_metrics is computed exactly once by EvaluateInclusion and stored,
 *   so every downstream consumer sees the identical rule.
 */

package models

import "time"

// SaleCondition codes as reported by the marketplace
type SaleCondition string

const (
	ConditionNew   SaleCondition = "NEW"
	ConditionUsed  SaleCondition = "USED"
	ConditionOther SaleCondition = "OTHER"
)

// RawSale is one individual externally observed sale
type RawSale struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID        string `gorm:"column:item_id;uniqueIndex:idx_raw_sales_item;not null" json:"item_id"`
	MarketplaceID string `gorm:"column:marketplace_id;uniqueIndex:idx_raw_sales_item;default:''" json:"marketplace_id"`
	SKU           string `gorm:"column:sku;index:idx_raw_sales_sku" json:"sku"`

	Size           *string     `gorm:"column:size;type:varchar(16)" json:"size"`
	SizeSystem     *SizeSystem `gorm:"column:size_system;type:varchar(4)" json:"size_system"`
	// 1.0 means the size came from a structured item aspect; lower values mean it
	// was parsed out of the listing title.
	SizeConfidence float64     `gorm:"column:size_confidence;type:decimal(3,2);default:0" json:"size_confidence"`

	PriceCents int64  `gorm:"column:price_cents;not null" json:"price_cents"`
	Currency   string `gorm:"column:currency;type:varchar(3);not null" json:"currency"`

	Condition             SaleCondition `gorm:"column:condition;type:varchar(8)" json:"condition"`
	AuthenticityGuarantee bool          `gorm:"column:authenticity_guarantee;default:false" json:"authenticity_guarantee"`

	IsOutlier       bool    `gorm:"column:is_outlier;default:false" json:"is_outlier"`
	OutlierReason   *string `gorm:"column:outlier_reason" json:"outlier_reason"`
	ExclusionReason *string `gorm:"column:exclusion_reason" json:"exclusion_reason"`

	IncludedInMetrics bool `gorm:"column:included_in_metrics;index" json:"included_in_metrics"`

	SoldAt    time.Time `gorm:"column:sold_at;index;not null" json:"sold_at"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by RawSale to `raw_sales`
func (RawSale) TableName() string {
	return "raw_sales"
}

// EvaluateInclusion applies the fixed trustworthiness predicate. Only new,
// authenticity-guaranteed sales with a structured-field size and no outlier or
// exclusion flag ever count toward price statistics.
func (s *RawSale) EvaluateInclusion() bool {
	return s.Condition == ConditionNew &&
		s.AuthenticityGuarantee &&
		s.Size != nil && *s.Size != "" &&
		s.SizeSystem != nil && *s.SizeSystem != "" &&
		s.SizeConfidence == 1.0 &&
		!s.IsOutlier &&
		s.ExclusionReason == nil
}
