/**
 * @description
 * Service layer for raw sales.
 * Ingests individual sold listings from the eBay adapter, applies the inclusion
 * predicate exactly once at write time, and runs the IQR outlier backfill that
 * flags implausible prices after enough comparable sales exist.
 *
 * @dependencies
 * - backend/internal/models
 * - backend/internal/providers/ebay
 * - gorm.io/gorm
 *
 * @notes
 * - (item_id, marketplace_id) is the dedup key; re-ingesting the same sold
 *   listing is a no-op and never resets operator flags on the existing row.
 * - The outlier pass re-evaluates inclusion on every row it touches, so a
 *   newly flagged sale immediately drops out of metrics.
 */

package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/providers/ebay"
)

// Sales with fewer comparables than this are never outlier-flagged; quartiles
// on tiny samples are noise.
const outlierMinSamples = 8

const outlierIQRMultiplier = 1.5

type SalesService struct {
	DB *gorm.DB
}

func NewSalesService(db *gorm.DB) *SalesService {
	return &SalesService{DB: db}
}

// IngestSales stores sold listings for a style. Returns how many rows were new.
func (s *SalesService) IngestSales(ctx context.Context, styleID string, records []ebay.SaleRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	styleID = models.NormalizeStyleID(styleID)

	rows := make([]models.RawSale, 0, len(records))
	for _, rec := range records {
		if rec.ItemID == "" || rec.PriceCents <= 0 || rec.SoldAt.IsZero() {
			continue
		}
		row := models.RawSale{
			ItemID:                rec.ItemID,
			MarketplaceID:         rec.MarketplaceID,
			SKU:                   styleID,
			SizeConfidence:        rec.SizeConfidence,
			PriceCents:            rec.PriceCents,
			Currency:              rec.Currency,
			Condition:             models.SaleCondition(rec.Condition),
			AuthenticityGuarantee: rec.AuthenticityGuarantee,
			SoldAt:                rec.SoldAt.UTC(),
		}
		if rec.Size != "" {
			size := rec.Size
			row.Size = &size
			system := models.SizeSystem(rec.SizeSystem)
			if rec.SizeSystem != "" {
				row.SizeSystem = &system
			}
		}
		row.IncludedInMetrics = row.EvaluateInclusion()
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}, {Name: "marketplace_id"}},
		DoNothing: true,
	}).CreateInBatches(rows, 200)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert raw sales: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// BackfillOutliers runs the IQR fence over recent sales of one style and
// updates outlier flags both ways: prices back inside the fence are unflagged.
// Operator-set exclusion reasons are never touched.
func (s *SalesService) BackfillOutliers(ctx context.Context, styleID string, window time.Duration) (int, error) {
	styleID = models.NormalizeStyleID(styleID)
	cutoff := time.Now().UTC().Add(-window)

	var sales []models.RawSale
	err := s.DB.WithContext(ctx).
		Where("sku = ? AND sold_at >= ?", styleID, cutoff).
		Order("price_cents ASC").
		Find(&sales).Error
	if err != nil {
		return 0, err
	}
	if len(sales) < outlierMinSamples {
		return 0, nil
	}

	// Fence from all comparable sales, flagged ones included, so a single bad
	// price cannot shift the fence by excluding itself
	prices := make([]int64, len(sales))
	for i, sale := range sales {
		prices[i] = sale.PriceCents
	}
	low, high := iqrFence(prices)

	changed := 0
	for i := range sales {
		sale := &sales[i]
		isOutlier := sale.PriceCents < low || sale.PriceCents > high
		if isOutlier == sale.IsOutlier {
			continue
		}

		sale.IsOutlier = isOutlier
		if isOutlier {
			reason := fmt.Sprintf("price %d outside IQR fence [%d, %d]", sale.PriceCents, low, high)
			sale.OutlierReason = &reason
		} else {
			sale.OutlierReason = nil
		}
		sale.IncludedInMetrics = sale.EvaluateInclusion()

		err := s.DB.WithContext(ctx).Model(sale).Select(
			"is_outlier", "outlier_reason", "included_in_metrics",
		).Updates(map[string]interface{}{
			"is_outlier":          sale.IsOutlier,
			"outlier_reason":      sale.OutlierReason,
			"included_in_metrics": sale.IncludedInMetrics,
		}).Error
		if err != nil {
			return changed, fmt.Errorf("updating outlier flag on sale %d: %w", sale.ID, err)
		}
		changed++
	}

	if changed > 0 {
		logger.Info("🔎 Outlier backfill for %s: %d of %d sales changed state", styleID, changed, len(sales))
	}
	return changed, nil
}

// iqrFence computes [Q1 - k*IQR, Q3 + k*IQR] over sorted cent prices
func iqrFence(sorted []int64) (low, high int64) {
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	fence := outlierIQRMultiplier * iqr
	return int64(q1 - fence), int64(q3 + fence)
}

// quantile interpolates linearly between the two nearest ranks
func quantile(sorted []int64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return float64(sorted[0])
	}
	if !sort.SliceIsSorted(sorted, func(i, j int) bool { return sorted[i] < sorted[j] }) {
		tmp := make([]int64, len(sorted))
		copy(tmp, sorted)
		sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
		sorted = tmp
	}

	pos := q * float64(len(sorted)-1)
	lower := int(pos)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	frac := pos - float64(lower)
	return float64(sorted[lower])*(1-frac) + float64(sorted[upper])*frac
}
