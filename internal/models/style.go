/**
 * @description
 * Style (catalog entry) database model.
 * Maps to the 'styles' table in PostgreSQL. One row per product
 * (brand + model + colorway) identified by a style code such as "DD1391-100".
 *
 * @dependencies
 * - gorm.io/gorm
 *
 * @notes
 * - External provider ids are nullable until the first successful sync fills them.
 * - The sync path only ever fills NULL columns; user-entered values are never
 *   overwritten by background jobs.
 */

package models

import (
	"strings"
	"time"
)

// Provider identifies an external marketplace
type Provider string

const (
	ProviderStockX Provider = "stockx"
	ProviderAlias  Provider = "alias"
	ProviderEbay   Provider = "ebay"
)

// AllProviders lists every marketplace the pipeline can sync against
var AllProviders = []Provider{ProviderStockX, ProviderAlias, ProviderEbay}

// SyncTier controls how often a style is refreshed by the scheduler
type SyncTier string

const (
	TierHot    SyncTier = "hot"    // refresh when older than 1h
	TierWarm   SyncTier = "warm"   // refresh when older than 6h
	TierCold   SyncTier = "cold"   // refresh when older than 24h
	TierFrozen SyncTier = "frozen" // on-demand only
)

// Style represents one product definition in the catalog
type Style struct {
	StyleID     string     `gorm:"primaryKey;column:style_id" json:"style_id"`
	Brand       *string    `gorm:"column:brand" json:"brand"`
	Name        *string    `gorm:"column:name" json:"name"`
	Colorway    *string    `gorm:"column:colorway" json:"colorway"`
	Category    *string    `gorm:"column:category" json:"category"`
	ImageURL    *string    `gorm:"column:image_url" json:"image_url"`
	RetailPrice *float64   `gorm:"column:retail_price;type:decimal(12,2)" json:"retail_price"`
	ReleaseDate *time.Time `gorm:"column:release_date" json:"release_date"`

	// Provider mappings, null until first synced
	StockXProductID *string `gorm:"column:stockx_product_id" json:"stockx_product_id"`
	AliasCatalogID  *string `gorm:"column:alias_catalog_id" json:"alias_catalog_id"`
	EbayEPID        *string `gorm:"column:ebay_epid" json:"ebay_epid"`

	Tier         SyncTier   `gorm:"column:tier;type:varchar(8);default:'warm';index:idx_styles_tier_synced" json:"tier"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at;index:idx_styles_tier_synced" json:"last_synced_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Style to `styles`
func (Style) TableName() string {
	return "styles"
}

// ExternalID returns the provider-specific product id mapped for this style, if any
func (s *Style) ExternalID(p Provider) *string {
	switch p {
	case ProviderStockX:
		return s.StockXProductID
	case ProviderAlias:
		return s.AliasCatalogID
	case ProviderEbay:
		return s.EbayEPID
	}
	return nil
}

// MappedProviders returns the providers this style has an external id for
func (s *Style) MappedProviders() []Provider {
	var out []Provider
	for _, p := range AllProviders {
		if id := s.ExternalID(p); id != nil && *id != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeStyleID canonicalizes a style code for use as a primary key
func NormalizeStyleID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// MaxStaleness returns how old a style's data may get before the scheduler
// considers it due. The second return is false for tiers that are never
// scheduled automatically.
func (t SyncTier) MaxStaleness() (time.Duration, bool) {
	switch t {
	case TierHot:
		return time.Hour, true
	case TierWarm:
		return 6 * time.Hour, true
	case TierCold:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}
