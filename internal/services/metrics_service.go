/**
 * @description
 * Sale metrics computation.
 * Aggregates included raw sales into rolling-window statistics per
 * (sku, size, currency, marketplace): medians, extremes, volatility,
 * outlier ratio, a 0..1 confidence score, and a liquidity index.
 *
 * @dependencies
 * - backend/internal/models
 * - gorm.io/gorm
 *
 * @notes
 * - Metrics are fully derived: recomputing from raw_sales at any time yields
 *   the same rows, so this job is safe to rerun after any backfill.
 * - Only included_in_metrics sales feed medians and volatility; the outlier
 *   ratio is computed over ALL comparable sales so it reflects data quality.
 */

package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/models"
)

// confidenceSampleTarget is the included-sale count at which the sample factor
// of the confidence score saturates at 1.
const confidenceSampleTarget = 25

type MetricsService struct {
	DB *gorm.DB
}

func NewMetricsService(db *gorm.DB) *MetricsService {
	return &MetricsService{DB: db}
}

// RecomputeForStyle rebuilds all metric rows for one style from its raw sales.
// Returns the number of metric keys written.
func (m *MetricsService) RecomputeForStyle(ctx context.Context, styleID string) (int, error) {
	styleID = models.NormalizeStyleID(styleID)
	now := time.Now().UTC()

	var sales []models.RawSale
	err := m.DB.WithContext(ctx).
		Where("sku = ? AND sold_at >= ?", styleID, now.Add(-90*24*time.Hour)).
		Find(&sales).Error
	if err != nil {
		return 0, fmt.Errorf("loading sales for %s: %w", styleID, err)
	}
	if len(sales) == 0 {
		return 0, nil
	}

	type metricKey struct {
		size, currency, marketplace string
	}
	groups := make(map[metricKey][]models.RawSale)
	for _, sale := range sales {
		if sale.Size == nil || *sale.Size == "" {
			continue
		}
		key := metricKey{size: *sale.Size, currency: sale.Currency, marketplace: sale.MarketplaceID}
		groups[key] = append(groups[key], sale)
	}

	written := 0
	for key, group := range groups {
		metric := computeMetric(styleID, key.size, key.currency, key.marketplace, group, now)
		err := m.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "sku"}, {Name: "size"}, {Name: "currency"}, {Name: "marketplace"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"median_cents_72h", "median_cents_7d", "median_cents_30d", "median_cents_90d",
				"samples_72h", "samples_7d", "samples_30d", "samples_90d",
				"min_cents_90d", "max_cents_90d",
				"volatility", "outlier_ratio", "confidence", "liquidity",
				"computed_at", "updated_at",
			}),
		}).Create(&metric).Error
		if err != nil {
			return written, fmt.Errorf("upserting metric for %s size %s: %w", styleID, key.size, err)
		}
		written++
	}

	logger.Info("📊 Recomputed %d metric rows for %s from %d sales", written, styleID, len(sales))
	return written, nil
}

// computeMetric derives one metric row from the sales sharing its key
func computeMetric(sku, size, currency, marketplace string, sales []models.RawSale, now time.Time) models.SaleMetric {
	metric := models.SaleMetric{
		SKU:         sku,
		Size:        size,
		Currency:    currency,
		Marketplace: marketplace,
		ComputedAt:  now,
	}

	var included []models.RawSale
	outliers := 0
	for _, sale := range sales {
		if sale.IsOutlier {
			outliers++
		}
		if sale.IncludedInMetrics {
			included = append(included, sale)
		}
	}

	windows := []struct {
		age     time.Duration
		median  **int64
		samples *int
	}{
		{72 * time.Hour, &metric.MedianCents72h, &metric.Samples72h},
		{7 * 24 * time.Hour, &metric.MedianCents7d, &metric.Samples7d},
		{30 * 24 * time.Hour, &metric.MedianCents30d, &metric.Samples30d},
		{90 * 24 * time.Hour, &metric.MedianCents90d, &metric.Samples90d},
	}
	for _, w := range windows {
		cutoff := now.Add(-w.age)
		var prices []int64
		for _, sale := range included {
			if !sale.SoldAt.Before(cutoff) {
				prices = append(prices, sale.PriceCents)
			}
		}
		*w.samples = len(prices)
		if len(prices) > 0 {
			med := medianCents(prices)
			*w.median = &med
		}
	}

	var prices90 []int64
	for _, sale := range included {
		prices90 = append(prices90, sale.PriceCents)
	}
	if len(prices90) > 0 {
		sort.Slice(prices90, func(i, j int) bool { return prices90[i] < prices90[j] })
		minP, maxP := prices90[0], prices90[len(prices90)-1]
		metric.MinCents90d = &minP
		metric.MaxCents90d = &maxP
		metric.Volatility = coefficientOfVariation(prices90)
	}

	metric.OutlierRatio = float64(outliers) / float64(len(sales))
	metric.Confidence = confidenceScore(included, metric.OutlierRatio, now)
	metric.Liquidity = liquidityIndex(metric.Samples30d)

	return metric
}

// medianCents returns the median of cent prices, averaging the middle pair for
// even counts with the half-cent rounded up
func medianCents(prices []int64) int64 {
	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid] + 1) / 2
}

// coefficientOfVariation is stddev/mean over cent prices; 0 for fewer than two
// samples or a zero mean
func coefficientOfVariation(prices []int64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var sum float64
	for _, p := range prices {
		sum += float64(p)
	}
	mean := sum / float64(len(prices))
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, p := range prices {
		d := float64(p) - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(prices))) / mean
}

// confidenceScore blends sample depth, recency, and data cleanliness into 0..1.
// Zero included sales always score 0; heavy outlier share always lowers it.
func confidenceScore(included []models.RawSale, outlierRatio float64, now time.Time) float64 {
	if len(included) == 0 {
		return 0
	}

	sampleFactor := math.Min(1, float64(len(included))/float64(confidenceSampleTarget))

	// Recency: share of included sales inside the last 30 days
	cutoff := now.Add(-30 * 24 * time.Hour)
	recent := 0
	for _, sale := range included {
		if !sale.SoldAt.Before(cutoff) {
			recent++
		}
	}
	recencyWeight := float64(recent) / float64(len(included))

	score := sampleFactor * recencyWeight * (1 - outlierRatio)
	if score < 0 {
		return 0
	}
	return score
}

// liquidityIndex is a log-scaled 0..1 measure of 30d sales velocity
func liquidityIndex(samples30d int) float64 {
	if samples30d <= 0 {
		return 0
	}
	// log10(1+n)/2 saturates at 1 around 99 sales per month
	v := math.Log10(1+float64(samples30d)) / 2
	if v > 1 {
		return 1
	}
	return v
}

// MetricsForStyle reads back the computed rows for one style
func (m *MetricsService) MetricsForStyle(ctx context.Context, styleID string) ([]models.SaleMetric, error) {
	var metrics []models.SaleMetric
	err := m.DB.WithContext(ctx).
		Where("sku = ?", models.NormalizeStyleID(styleID)).
		Order("size, currency, marketplace").
		Find(&metrics).Error
	return metrics, err
}
