/**
 * @description
 * Service layer for market snapshots.
 * Appends immutable observations, maintains the latest-per-key projection,
 * caches hot reads in Redis, and publishes updates for the SSE stream.
 *
 * @dependencies
 * - backend/internal/models
 * - gorm.io/gorm
 * - github.com/redis/go-redis/v9
 *
 * @notes
 * - The latest_market upsert only applies when the incoming observed_at is
 *   newer than the stored one, so out-of-order snapshot arrival can never
 *   regress the latest view.
 * - FX conversion happens exclusively on the read path. Stored amounts stay
 *   in the currency the provider quoted.
 */

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solestack-project/backend/internal/models"
)

const (
	SnapshotUpdateChannel = "market:snapshot_updates"

	latestCacheTTL = 5 * time.Minute

	fxCacheKey = "fx:rates"
	fxCacheTTL = time.Hour
)

type SnapshotService struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewSnapshotService(db *gorm.DB, rdb *redis.Client) *SnapshotService {
	return &SnapshotService{DB: db, Redis: rdb}
}

// RecordSnapshot appends one observation and refreshes the latest view
func (s *SnapshotService) RecordSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snap).Error; err != nil {
			return fmt.Errorf("appending snapshot: %w", err)
		}

		latest := models.LatestMarket{
			StyleID:       snap.StyleID,
			VariantID:     snap.VariantID,
			Provider:      snap.Provider,
			Region:        snap.Region,
			Currency:      snap.Currency,
			LowestAsk:     snap.LowestAsk,
			HighestBid:    snap.HighestBid,
			LastSalePrice: snap.LastSalePrice,
			SalesLast72h:  snap.SalesLast72h,
			SalesLast7d:   snap.SalesLast7d,
			SalesLast30d:  snap.SalesLast30d,
			ObservedAt:    snap.ObservedAt,
		}
		// Newest observed_at wins; a late-arriving older snapshot is a no-op here
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "style_id"}, {Name: "variant_id"}, {Name: "provider"},
				{Name: "region"}, {Name: "currency"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"lowest_ask":      gorm.Expr("excluded.lowest_ask"),
				"highest_bid":     gorm.Expr("excluded.highest_bid"),
				"last_sale_price": gorm.Expr("excluded.last_sale_price"),
				"sales_last_72h":  gorm.Expr("excluded.sales_last_72h"),
				"sales_last_7d":   gorm.Expr("excluded.sales_last_7d"),
				"sales_last_30d":  gorm.Expr("excluded.sales_last_30d"),
				"observed_at":     gorm.Expr("excluded.observed_at"),
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("latest_market.observed_at < excluded.observed_at"),
			}},
		}).Create(&latest).Error
	})
	if err != nil {
		return err
	}

	s.invalidateLatestCache(ctx, snap.StyleID)
	s.publishUpdate(ctx, snap)
	return nil
}

// publishUpdate notifies stream subscribers that a style's market moved
func (s *SnapshotService) publishUpdate(ctx context.Context, snap *models.MarketSnapshot) {
	if s.Redis == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"style_id":    snap.StyleID,
		"provider":    snap.Provider,
		"region":      snap.Region,
		"currency":    snap.Currency,
		"lowest_ask":  snap.LowestAsk,
		"highest_bid": snap.HighestBid,
		"observed_at": snap.ObservedAt,
	})
	if err != nil {
		return
	}
	if err := s.Redis.Publish(ctx, SnapshotUpdateChannel, payload).Err(); err != nil {
		log.Printf("Failed to publish snapshot update: %v", err)
	}
}

func latestCacheKey(styleID, currency string) string {
	return fmt.Sprintf("latest:%s:%s", styleID, currency)
}

func (s *SnapshotService) invalidateLatestCache(ctx context.Context, styleID string) {
	if s.Redis == nil {
		return
	}
	iter := s.Redis.Scan(ctx, 0, latestCacheKey(styleID, "*"), 20).Iterator()
	for iter.Next(ctx) {
		if err := s.Redis.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("Failed to invalidate latest cache: %v", err)
		}
	}
}

// LatestForStyle returns the latest view for one style, preferring Cache -> DB.
// When currency is non-empty amounts are converted via fx_rates and the
// response currency is rewritten; freshness labels are derived at read time.
func (s *SnapshotService) LatestForStyle(ctx context.Context, styleID, currency string) ([]models.LatestMarket, error) {
	styleID = models.NormalizeStyleID(styleID)

	// 1. Try Redis
	if s.Redis != nil {
		val, err := s.Redis.Get(ctx, latestCacheKey(styleID, currency)).Result()
		if err == nil {
			var rows []models.LatestMarket
			if err := json.Unmarshal([]byte(val), &rows); err == nil {
				s.labelFreshness(rows)
				return rows, nil
			}
			// If unmarshal fails, fall through to DB
		}
	}

	// 2. Fallback to DB
	var rows []models.LatestMarket
	if err := s.DB.WithContext(ctx).
		Where("style_id = ?", styleID).
		Order("provider, region, variant_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	if currency != "" {
		rates, err := s.fxRates(ctx)
		if err != nil {
			log.Printf("FX rates unavailable, returning native currencies: %v", err)
		} else {
			for i := range rows {
				convertLatestRow(&rows[i], currency, rates)
			}
		}
	}

	s.labelFreshness(rows)

	if s.Redis != nil && len(rows) > 0 {
		if data, err := json.Marshal(rows); err == nil {
			if err := s.Redis.Set(ctx, latestCacheKey(styleID, currency), data, latestCacheTTL).Err(); err != nil {
				log.Printf("Failed to set latest cache: %v", err)
			}
		}
	}
	return rows, nil
}

func (s *SnapshotService) labelFreshness(rows []models.LatestMarket) {
	now := time.Now().UTC()
	for i := range rows {
		rows[i].Freshness = models.FreshnessLabel(rows[i].ObservedAt, now)
	}
}

func convertLatestRow(row *models.LatestMarket, currency string, rates map[string]float64) {
	if row.Currency == currency {
		return
	}
	if _, ok := rates[row.Currency]; !ok {
		return
	}
	if _, ok := rates[currency]; !ok {
		return
	}
	convert := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := models.Convert(*p, row.Currency, currency, rates)
		return &v
	}
	row.LowestAsk = convert(row.LowestAsk)
	row.HighestBid = convert(row.HighestBid)
	row.LastSalePrice = convert(row.LastSalePrice)
	row.Currency = currency
}

// fxRates loads the USD-cross rate table, cached in Redis for an hour
func (s *SnapshotService) fxRates(ctx context.Context) (map[string]float64, error) {
	if s.Redis != nil {
		val, err := s.Redis.Get(ctx, fxCacheKey).Result()
		if err == nil {
			var rates map[string]float64
			if err := json.Unmarshal([]byte(val), &rates); err == nil {
				return rates, nil
			}
		}
	}

	var rows []models.FxRate
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	rates := make(map[string]float64, len(rows)+1)
	rates["USD"] = 1.0
	for _, r := range rows {
		rates[r.Currency] = r.RateToUSD
	}

	if s.Redis != nil {
		if data, err := json.Marshal(rates); err == nil {
			if err := s.Redis.Set(ctx, fxCacheKey, data, fxCacheTTL).Err(); err != nil {
				log.Printf("Failed to cache fx rates: %v", err)
			}
		}
	}
	return rates, nil
}

// SyncStore combines catalog and snapshot persistence into the single store
// the worker consumes.
type SyncStore struct {
	*CatalogService
	*SnapshotService
}

func NewSyncStore(db *gorm.DB, rdb *redis.Client) *SyncStore {
	return &SyncStore{
		CatalogService:  NewCatalogService(db),
		SnapshotService: NewSnapshotService(db, rdb),
	}
}
