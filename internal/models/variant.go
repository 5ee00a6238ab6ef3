/**
 * @description
 * Variant database model.
 * Maps to the 'variants' table in PostgreSQL. One row per sellable
 * size/region combination of a style, scoped to a single provider.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import "time"

// SizeSystem identifies the sizing convention a size value is expressed in
type SizeSystem string

const (
	SizeSystemUS SizeSystem = "US"
	SizeSystemUK SizeSystem = "UK"
	SizeSystemEU SizeSystem = "EU"
	SizeSystemJP SizeSystem = "JP"
)

// Variant represents one size/region unit of a style on a specific provider.
// A (style_id, provider, size, region) tuple is unique.
type Variant struct {
	ID                uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StyleID           string     `gorm:"column:style_id;uniqueIndex:idx_variants_key,priority:1;not null" json:"style_id"`
	Provider          Provider   `gorm:"column:provider;type:varchar(16);uniqueIndex:idx_variants_key,priority:2;not null" json:"provider"`
	Size              string     `gorm:"column:size;type:varchar(16);uniqueIndex:idx_variants_key,priority:3;not null" json:"size"`
	Region            string     `gorm:"column:region;type:varchar(16);uniqueIndex:idx_variants_key,priority:4;default:''" json:"region"`
	SizeSystem        SizeSystem `gorm:"column:size_system;type:varchar(4)" json:"size_system"`
	Consignment       bool       `gorm:"column:consignment;default:false" json:"consignment"`
	ExternalVariantID string     `gorm:"column:external_variant_id" json:"external_variant_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Variant to `variants`
func (Variant) TableName() string {
	return "variants"
}
