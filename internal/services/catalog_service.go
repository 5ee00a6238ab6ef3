/**
 * @description
 * Service layer for the product catalog.
 * Owns styles and variants: null-fill upserts, provider mappings, and the
 * bulk import path used by operational scripts.
 *
 * @dependencies
 * - backend/internal/models
 * - gorm.io/gorm
 * - github.com/jackc/pgconn
 *
 * @notes
 * - Catalog writes never overwrite a non-null column. Manual edits and earlier
 *   provider data always win over whatever a later sync reports.
 * - Bulk upserts retry on Postgres deadlock (40P01) and serialization (40001)
 *   errors because concurrent workers touch overlapping style rows.
 */

package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solestack-project/backend/internal/models"
)

type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// StyleByID loads one catalog entry; returns (nil, nil) when the style is unknown
func (s *CatalogService) StyleByID(ctx context.Context, styleID string) (*models.Style, error) {
	var style models.Style
	err := s.DB.WithContext(ctx).First(&style, "style_id = ?", models.NormalizeStyleID(styleID)).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &style, nil
}

// DueStyles lists styles in a tier whose last sync predates the cutoff,
// oldest first. Never-synced styles sort ahead of everything.
func (s *CatalogService) DueStyles(ctx context.Context, tier models.SyncTier, before time.Time, limit int) ([]models.Style, error) {
	var styles []models.Style
	err := s.DB.WithContext(ctx).
		Where("tier = ?", tier).
		Where("last_synced_at IS NULL OR last_synced_at < ?", before).
		Order("last_synced_at ASC NULLS FIRST").
		Limit(limit).
		Find(&styles).Error
	return styles, err
}

// FillStyleFields sets only currently-NULL catalog columns from the given values
func (s *CatalogService) FillStyleFields(ctx context.Context, styleID string, fields models.Style) error {
	updates := map[string]interface{}{}
	if fields.Brand != nil {
		updates["brand"] = gorm.Expr("COALESCE(brand, ?)", *fields.Brand)
	}
	if fields.Name != nil {
		updates["name"] = gorm.Expr("COALESCE(name, ?)", *fields.Name)
	}
	if fields.Colorway != nil {
		updates["colorway"] = gorm.Expr("COALESCE(colorway, ?)", *fields.Colorway)
	}
	if fields.Category != nil {
		updates["category"] = gorm.Expr("COALESCE(category, ?)", *fields.Category)
	}
	if fields.ImageURL != nil {
		updates["image_url"] = gorm.Expr("COALESCE(image_url, ?)", *fields.ImageURL)
	}
	if fields.RetailPrice != nil {
		updates["retail_price"] = gorm.Expr("COALESCE(retail_price, ?)", *fields.RetailPrice)
	}
	if fields.ReleaseDate != nil {
		updates["release_date"] = gorm.Expr("COALESCE(release_date, ?)", *fields.ReleaseDate)
	}
	if len(updates) == 0 {
		return nil
	}

	return s.DB.WithContext(ctx).
		Model(&models.Style{}).
		Where("style_id = ?", styleID).
		Updates(updates).Error
}

// SetProviderMapping records an external product id for a style if none is set yet
func (s *CatalogService) SetProviderMapping(ctx context.Context, styleID string, provider models.Provider, externalID string) error {
	var column string
	switch provider {
	case models.ProviderStockX:
		column = "stockx_product_id"
	case models.ProviderAlias:
		column = "alias_catalog_id"
	case models.ProviderEbay:
		column = "ebay_epid"
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}

	return s.DB.WithContext(ctx).
		Model(&models.Style{}).
		Where("style_id = ?", styleID).
		Update(column, gorm.Expr("COALESCE("+column+", ?)", externalID)).Error
}

// UpsertVariant creates or refreshes a variant row and returns its id
func (s *CatalogService) UpsertVariant(ctx context.Context, variant *models.Variant) (uint64, error) {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "style_id"}, {Name: "provider"}, {Name: "size"}, {Name: "region"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"size_system",
			"consignment",
			"external_variant_id",
			"updated_at",
		}),
	}).Create(variant).Error
	if err != nil {
		return 0, err
	}

	if variant.ID != 0 {
		return variant.ID, nil
	}

	// Conflict path: GORM does not backfill the id, look it up
	var existing models.Variant
	err = s.DB.WithContext(ctx).
		Where("style_id = ? AND provider = ? AND size = ? AND region = ?",
			variant.StyleID, variant.Provider, variant.Size, variant.Region).
		First(&existing).Error
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// MarkStyleSynced stamps last_synced_at after a successful sync
func (s *CatalogService) MarkStyleSynced(ctx context.Context, styleID string, at time.Time) error {
	return s.DB.WithContext(ctx).
		Model(&models.Style{}).
		Where("style_id = ?", styleID).
		Update("last_synced_at", at).Error
}

// SetTier moves a style to a different refresh tier
func (s *CatalogService) SetTier(ctx context.Context, styleID string, tier models.SyncTier) error {
	result := s.DB.WithContext(ctx).
		Model(&models.Style{}).
		Where("style_id = ?", models.NormalizeStyleID(styleID)).
		Update("tier", tier)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("style %s not found", styleID)
	}
	return nil
}

// BulkUpsertStyles imports styles in batches, filling only columns that are
// still NULL on existing rows. Used by the bulk import script.
func (s *CatalogService) BulkUpsertStyles(ctx context.Context, styles []models.Style) error {
	if len(styles) == 0 {
		return nil
	}
	for i := range styles {
		styles[i].StyleID = models.NormalizeStyleID(styles[i].StyleID)
	}

	const maxRetries = 5
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "style_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"brand":        gorm.Expr("COALESCE(styles.brand, excluded.brand)"),
				"name":         gorm.Expr("COALESCE(styles.name, excluded.name)"),
				"colorway":     gorm.Expr("COALESCE(styles.colorway, excluded.colorway)"),
				"category":     gorm.Expr("COALESCE(styles.category, excluded.category)"),
				"image_url":    gorm.Expr("COALESCE(styles.image_url, excluded.image_url)"),
				"retail_price": gorm.Expr("COALESCE(styles.retail_price, excluded.retail_price)"),
				"release_date": gorm.Expr("COALESCE(styles.release_date, excluded.release_date)"),
			}),
		}).CreateInBatches(styles, 100).Error
		if err == nil {
			break
		}

		if pgErr, ok := err.(*pgconn.PgError); ok && (pgErr.Code == "40P01" || pgErr.Code == "40001") {
			backoff := time.Duration(attempt*100+rand.Intn(100)) * time.Millisecond
			time.Sleep(backoff)
			continue
		}
		break
	}
	if err != nil {
		return fmt.Errorf("failed to upsert styles: %w", err)
	}
	return nil
}
