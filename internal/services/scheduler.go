/**
 * @description
 * Tiered refresh scheduler.
 * Periodically selects styles whose data has gone stale for their tier and
 * enqueues one sync job per mapped provider. Enqueueing is idempotent, so a
 * scheduler tick overlapping a slow worker never duplicates work.
 *
 * @dependencies
 * - backend/internal/models
 * - gorm.io/gorm
 *
 * @notes
 * - Never-synced styles (last_synced_at IS NULL) are always due and sort first.
 * - Frozen styles are skipped entirely; they only sync via the on-demand API.
 * - The per-tick batch is bounded so a huge backlog degrades gradually instead
 *   of flooding the queue.
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

// Enqueuer is the queue capability the scheduler needs
type Enqueuer interface {
	Enqueue(ctx context.Context, styleID string, provider models.Provider) (bool, error)
}

// StyleSource is the catalog capability the scheduler needs
type StyleSource interface {
	DueStyles(ctx context.Context, tier models.SyncTier, before time.Time, limit int) ([]models.Style, error)
	StyleByID(ctx context.Context, styleID string) (*models.Style, error)
}

type SchedulerService struct {
	Styles StyleSource
	Queue  Enqueuer
	// BatchSize bounds how many styles one tick may enqueue per tier
	BatchSize int
}

func NewSchedulerService(db *gorm.DB, q Enqueuer, batchSize int) *SchedulerService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SchedulerService{Styles: NewCatalogService(db), Queue: q, BatchSize: batchSize}
}

// EnqueueDue selects stale styles for one tier and enqueues sync jobs for each
// of their mapped providers. Returns the number of jobs actually enqueued.
func (s *SchedulerService) EnqueueDue(ctx context.Context, tier models.SyncTier, now time.Time) (int, error) {
	staleness, schedulable := tier.MaxStaleness()
	if !schedulable {
		return 0, nil
	}

	styles, err := s.Styles.DueStyles(ctx, tier, now.Add(-staleness), s.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("selecting due %s styles: %w", tier, err)
	}

	enqueued := 0
	for _, style := range styles {
		for _, provider := range style.MappedProviders() {
			created, err := s.Queue.Enqueue(ctx, style.StyleID, provider)
			if err != nil {
				logger.Error("failed to enqueue %s/%s: %v", style.StyleID, provider, err)
				continue
			}
			if created {
				enqueued++
			}
		}
	}

	if enqueued > 0 {
		logger.Info("⏱️ Scheduler tier=%s: %d styles due, %d jobs enqueued", tier, len(styles), enqueued)
	}
	return enqueued, nil
}

// EnqueueStyle enqueues an on-demand sync for one style across all of its
// mapped providers, regardless of tier. Used by the on-demand API route.
func (s *SchedulerService) EnqueueStyle(ctx context.Context, styleID string) (int, error) {
	style, err := s.Styles.StyleByID(ctx, styleID)
	if err != nil {
		return 0, err
	}
	if style == nil {
		return 0, fmt.Errorf("style %s not found", styleID)
	}

	providers := style.MappedProviders()
	if len(providers) == 0 {
		// Unmapped style: send it to every provider so the worker can establish
		// mappings via catalog search
		providers = models.AllProviders
	}

	enqueued := 0
	for _, provider := range providers {
		created, err := s.Queue.Enqueue(ctx, style.StyleID, provider)
		if err != nil {
			return enqueued, err
		}
		if created {
			enqueued++
		}
	}
	return enqueued, nil
}
