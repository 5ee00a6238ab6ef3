/**
 * @description
 * End-to-end sales pipeline for one style: fetch recent eBay sold listings,
 * store them with inclusion flags, re-run the outlier fence, and recompute
 * sale metrics. Runs piggybacked on eBay sync jobs.
 *
 * @dependencies
 * - backend/internal/providers/ebay
 * - backend/internal/services: sales + metrics services
 */

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/providers/ebay"
)

const salesFetchLimit = 200

type SalesPipeline struct {
	Ebay    *ebay.Client
	Sales   *SalesService
	Metrics *MetricsService
}

func NewSalesPipeline(client *ebay.Client, sales *SalesService, metrics *MetricsService) *SalesPipeline {
	return &SalesPipeline{Ebay: client, Sales: sales, Metrics: metrics}
}

// SyncSales runs the full ingest-flag-recompute chain for one style
func (p *SalesPipeline) SyncSales(ctx context.Context, styleID string) error {
	records, err := p.Ebay.FetchRecentSales(ctx, styleID, salesFetchLimit)
	if err != nil {
		return fmt.Errorf("fetching sold listings: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	inserted, err := p.Sales.IngestSales(ctx, styleID, records)
	if err != nil {
		return fmt.Errorf("ingesting sales: %w", err)
	}

	if _, err := p.Sales.BackfillOutliers(ctx, styleID, 90*24*time.Hour); err != nil {
		return fmt.Errorf("outlier backfill: %w", err)
	}

	if _, err := p.Metrics.RecomputeForStyle(ctx, styleID); err != nil {
		return fmt.Errorf("recomputing metrics: %w", err)
	}

	if inserted > 0 {
		logger.Info("🧾 Ingested %d new sales for %s", inserted, styleID)
	}
	return nil
}
