/**
 * @description
 * Retention and downsampling job.
 * Rolls completed days of snapshots into snapshot_daily aggregates, then prunes
 * aged raw data: market snapshots past the hot window and raw sales past the
 * metrics horizon.
 *
 * @dependencies
 * - backend/internal/models
 * - gorm.io/gorm
 *
 * @notes
 * - Each step runs independently. A failing rollup never blocks pruning and
 *   vice versa; the report carries per-step errors alongside row counts.
 * - Rollup runs before pruning so no observation is ever dropped without being
 *   represented in a daily aggregate first.
 */

package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/models"
)

const (
	SnapshotRetention = 30 * 24 * time.Hour
	RawSaleRetention  = 90 * 24 * time.Hour
	JobRetention      = 7 * 24 * time.Hour
)

type RetentionService struct {
	DB *gorm.DB
}

func NewRetentionService(db *gorm.DB) *RetentionService {
	return &RetentionService{DB: db}
}

// RetentionReport summarizes one retention run
type RetentionReport struct {
	DaysRolledUp    int64     `json:"days_rolled_up"`
	SnapshotsPruned int64     `json:"snapshots_pruned"`
	SalesPruned     int64     `json:"sales_pruned"`
	JobsPruned      int64     `json:"jobs_pruned"`
	Errors          []string  `json:"errors,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// retentionStep is one isolated unit of a run: a failing step records its
// error and the run moves on
type retentionStep struct {
	name  string
	run   func(context.Context) (int64, error)
	tally func(*RetentionReport, int64)
}

// steps returns the run order. Rollup must come first so no observation is
// pruned before it is represented in a daily aggregate.
func (r *RetentionService) steps() []retentionStep {
	return []retentionStep{
		{"rollup", r.RollupDaily, func(rep *RetentionReport, n int64) { rep.DaysRolledUp = n }},
		{"prune snapshots", r.PruneSnapshots, func(rep *RetentionReport, n int64) { rep.SnapshotsPruned = n }},
		{"prune sales", r.PruneSales, func(rep *RetentionReport, n int64) { rep.SalesPruned = n }},
		{"prune jobs", r.PruneJobs, func(rep *RetentionReport, n int64) { rep.JobsPruned = n }},
	}
}

// Run executes rollup then pruning. It always returns a report; the error is
// non-nil only when every step failed.
func (r *RetentionService) Run(ctx context.Context) (RetentionReport, error) {
	return runRetention(ctx, r.steps())
}

func runRetention(ctx context.Context, steps []retentionStep) (RetentionReport, error) {
	report := RetentionReport{StartedAt: time.Now().UTC()}
	failures := 0

	for _, step := range steps {
		n, err := step.run(ctx)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", step.name, err))
			failures++
			continue
		}
		step.tally(&report, n)
	}

	report.FinishedAt = time.Now().UTC()
	logger.Info("🧹 Retention run: %d day-keys rolled up, %d snapshots / %d sales / %d jobs pruned, %d errors",
		report.DaysRolledUp, report.SnapshotsPruned, report.SalesPruned, report.JobsPruned, len(report.Errors))

	if failures == len(steps) && failures > 0 {
		return report, fmt.Errorf("all retention steps failed: %v", report.Errors)
	}
	return report, nil
}

// RollupDaily aggregates completed UTC days of snapshots into snapshot_daily.
// Re-running over the same days refreshes the aggregates in place.
func (r *RetentionService) RollupDaily(ctx context.Context) (int64, error) {
	// Only completed days: everything before today's UTC midnight
	result := r.DB.WithContext(ctx).Exec(`
		INSERT INTO snapshot_daily
			(day, style_id, variant_id, provider, region, currency,
			 min_lowest_ask, max_lowest_ask, avg_lowest_ask, avg_highest_bid,
			 last_sale_price, observations, created_at)
		SELECT
			date_trunc('day', observed_at)::date AS day,
			style_id, variant_id, provider, region, currency,
			MIN(lowest_ask), MAX(lowest_ask), AVG(lowest_ask), AVG(highest_bid),
			(ARRAY_AGG(last_sale_price ORDER BY observed_at DESC))[1],
			COUNT(*), NOW()
		FROM market_snapshots
		WHERE observed_at < date_trunc('day', NOW() AT TIME ZONE 'utc')
		GROUP BY 1, style_id, variant_id, provider, region, currency
		ON CONFLICT (day, style_id, variant_id, provider, region, currency)
		DO UPDATE SET
			min_lowest_ask = excluded.min_lowest_ask,
			max_lowest_ask = excluded.max_lowest_ask,
			avg_lowest_ask = excluded.avg_lowest_ask,
			avg_highest_bid = excluded.avg_highest_bid,
			last_sale_price = excluded.last_sale_price,
			observations = excluded.observations
	`)
	return result.RowsAffected, result.Error
}

// PruneSnapshots deletes append-log rows older than the snapshot window.
// The latest_market projection is untouched; a frozen style keeps its last
// known prices indefinitely.
func (r *RetentionService) PruneSnapshots(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-SnapshotRetention)
	result := r.DB.WithContext(ctx).
		Where("observed_at < ?", cutoff).
		Delete(&models.MarketSnapshot{})
	return result.RowsAffected, result.Error
}

// PruneSales deletes raw sales older than the metrics horizon. Computed
// sale_metrics rows survive; they are the durable record of that history.
func (r *RetentionService) PruneSales(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-RawSaleRetention)
	result := r.DB.WithContext(ctx).
		Where("sold_at < ?", cutoff).
		Delete(&models.RawSale{})
	return result.RowsAffected, result.Error
}

// PruneJobs deletes terminal queue rows old enough to be uninteresting
func (r *RetentionService) PruneJobs(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-JobRetention)
	result := r.DB.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed}, cutoff).
		Delete(&models.SyncJob{})
	return result.RowsAffected, result.Error
}
