/**
 * @description
 * Sync worker: claims batches of jobs from the durable queue, runs the matching
 * marketplace adapter, persists normalized snapshots, and records the outcome
 * on each job. One job's failure — including a panic — never aborts the batch
 * or the process.
 *
 * @dependencies
 * - internal/providers: adapter contract and error taxonomy
 * - internal/models
 * - internal/logger
 *
 * @notes
 * - Run modes: one-shot batch (ProcessBatch), drain (loop until the queue stays
 *   empty), continuous (loop forever with an idle sleep).
 * - Individual job failures are normal operation; only startup problems are
 *   fatal to the caller.
 * - After a successful fetch the worker backfills catalog fields that are NULL.
 *   It never overwrites a non-null value: manual edits always win.
 */

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/providers"
)

// JobQueue is the slice of queue behavior the worker needs
type JobQueue interface {
	Claim(ctx context.Context, limit int, provider models.Provider) ([]models.SyncJob, error)
	MarkSuccess(ctx context.Context, jobID uuid.UUID) error
	MarkFailed(ctx context.Context, job *models.SyncJob, jobErr error, permanent bool) error
}

// Store is the persistence capability the worker consumes
type Store interface {
	// StyleByID loads a catalog entry; returns nil when unknown
	StyleByID(ctx context.Context, styleID string) (*models.Style, error)
	// FillStyleFields sets only currently-NULL columns from the given values
	FillStyleFields(ctx context.Context, styleID string, fields models.Style) error
	// SetProviderMapping records an external product id if not already set
	SetProviderMapping(ctx context.Context, styleID string, provider models.Provider, externalID string) error
	// UpsertVariant creates or refreshes a variant row and returns its id
	UpsertVariant(ctx context.Context, variant *models.Variant) (uint64, error)
	// RecordSnapshot appends the observation and refreshes the latest view
	RecordSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error
	// MarkStyleSynced stamps last_synced_at
	MarkStyleSynced(ctx context.Context, styleID string, at time.Time) error
}

// SalesIngestor pulls raw sold listings for a style during a sync. Only the
// eBay pipeline provides one; other providers have no per-sale feed.
type SalesIngestor interface {
	SyncSales(ctx context.Context, styleID string) error
}

// BatchResult summarizes one processed batch
type BatchResult struct {
	Claimed   int
	Succeeded int
	Failed    int
}

// Worker processes sync jobs against a set of provider adapters
type Worker struct {
	Queue     JobQueue
	Store     Store
	Providers providers.Registry
	// Currency requested from providers, e.g. "USD"
	Currency  string
	IdleSleep time.Duration
	// Sales, when set, runs after a successful eBay market sync
	Sales SalesIngestor
}

// New builds a worker
func New(queue JobQueue, store Store, registry providers.Registry, currency string, idleSleep time.Duration) *Worker {
	if currency == "" {
		currency = "USD"
	}
	if idleSleep <= 0 {
		idleSleep = 10 * time.Second
	}
	return &Worker{
		Queue:     queue,
		Store:     store,
		Providers: registry,
		Currency:  currency,
		IdleSleep: idleSleep,
	}
}

// ProcessBatch claims and processes up to limit jobs once (one-shot mode)
func (w *Worker) ProcessBatch(ctx context.Context, limit int, provider models.Provider) (BatchResult, error) {
	var result BatchResult

	jobs, err := w.Queue.Claim(ctx, limit, provider)
	if err != nil {
		return result, fmt.Errorf("claim failed: %w", err)
	}
	result.Claimed = len(jobs)

	for i := range jobs {
		job := jobs[i]
		if err := w.processJob(ctx, &job); err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	return result, nil
}

// Drain processes batches until the queue stays empty for emptyThreshold
// consecutive claims, then returns the totals.
func (w *Worker) Drain(ctx context.Context, limit int, provider models.Provider, emptyThreshold int) (BatchResult, error) {
	if emptyThreshold <= 0 {
		emptyThreshold = 2
	}

	var total BatchResult
	empties := 0
	for empties < emptyThreshold {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		batch, err := w.ProcessBatch(ctx, limit, provider)
		if err != nil {
			return total, err
		}
		total.Claimed += batch.Claimed
		total.Succeeded += batch.Succeeded
		total.Failed += batch.Failed

		if batch.Claimed == 0 {
			empties++
		} else {
			empties = 0
		}
	}
	return total, nil
}

// Run processes batches forever, sleeping when the queue is empty (continuous
// mode). Returns only when the context is cancelled.
func (w *Worker) Run(ctx context.Context, limit int, provider models.Provider) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch, err := w.ProcessBatch(ctx, limit, provider)
		if err != nil {
			// Claim errors are environmental (db down); log and back off
			logger.Error("worker batch error: %v", err)
			if sleepErr := sleepCtx(ctx, w.IdleSleep); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if batch.Failed > 0 {
			logger.Info("batch done: %d claimed, %d ok, %d failed", batch.Claimed, batch.Succeeded, batch.Failed)
		}

		if batch.Claimed == 0 {
			if err := sleepCtx(ctx, w.IdleSleep); err != nil {
				return err
			}
		}
	}
}

// processJob runs one job end to end and records the outcome. The returned
// error is informational only; it has already been persisted on the job row.
func (w *Worker) processJob(ctx context.Context, job *models.SyncJob) (jobErr error) {
	defer func() {
		if r := recover(); r != nil {
			jobErr = fmt.Errorf("panic: %v", r)
			logger.Error("job %s panicked: %v", job.ID, r)
			if markErr := w.Queue.MarkFailed(ctx, job, jobErr, false); markErr != nil {
				logger.Error("failed to record panic on job %s: %v", job.ID, markErr)
			}
		}
	}()

	err := w.syncStyle(ctx, job)
	if err == nil {
		if markErr := w.Queue.MarkSuccess(ctx, job.ID); markErr != nil {
			logger.Error("failed to mark job %s complete: %v", job.ID, markErr)
		}
		return nil
	}

	permanent := providers.IsPermanent(err) || isMappingError(err)
	if markErr := w.Queue.MarkFailed(ctx, job, err, permanent); markErr != nil {
		logger.Error("failed to mark job %s failed: %v", job.ID, markErr)
	}
	return err
}

// mappingError marks failures where a required external id cannot be obtained
// by retrying
type mappingError struct {
	msg string
}

func (e *mappingError) Error() string { return e.msg }

func isMappingError(err error) bool {
	_, ok := err.(*mappingError)
	return ok
}

// syncStyle fetches and persists market data for one (style, provider) pair
func (w *Worker) syncStyle(ctx context.Context, job *models.SyncJob) error {
	adapter, ok := w.Providers[string(job.Provider)]
	if !ok {
		return &mappingError{msg: fmt.Sprintf("no adapter registered for provider %q", job.Provider)}
	}

	style, err := w.Store.StyleByID(ctx, job.StyleID)
	if err != nil {
		return fmt.Errorf("loading style %s: %w", job.StyleID, err)
	}
	if style == nil {
		return &mappingError{msg: fmt.Sprintf("style %s does not exist in catalog", job.StyleID)}
	}

	externalID, err := w.resolveExternalID(ctx, adapter, style, job.Provider)
	if err != nil {
		return err
	}

	variants, err := adapter.FetchVariants(ctx, externalID)
	if err != nil {
		if providers.IsNotFound(err) {
			// Mapped product vanished provider-side; nothing to retry
			return &mappingError{msg: fmt.Sprintf("provider %s no longer knows product %s", job.Provider, externalID)}
		}
		return fmt.Errorf("fetching variants: %w", err)
	}

	now := time.Now().UTC()
	var snapshots int
	for _, v := range variants {
		variantID, err := w.Store.UpsertVariant(ctx, &models.Variant{
			StyleID:           style.StyleID,
			Provider:          job.Provider,
			Size:              v.Size,
			Region:            v.Region,
			SizeSystem:        models.SizeSystem(v.SizeSystem),
			Consignment:       v.Consignment,
			ExternalVariantID: v.ExternalVariantID,
		})
		if err != nil {
			return fmt.Errorf("upserting variant %s: %w", v.ExternalVariantID, err)
		}

		snap, err := adapter.FetchMarketData(ctx, externalID, v.ExternalVariantID, w.Currency)
		if err != nil {
			if providers.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("fetching market data for size %s: %w", v.Size, err)
		}
		if snap == nil {
			// No market activity for this size; expected and silent
			continue
		}
		if !snap.Plausible() {
			logger.Error("implausible snapshot for %s/%s size %s: skipping (unit mix-up?)", style.StyleID, job.Provider, v.Size)
			continue
		}

		if err := w.Store.RecordSnapshot(ctx, &models.MarketSnapshot{
			StyleID:       style.StyleID,
			VariantID:     variantID,
			Provider:      job.Provider,
			Region:        v.Region,
			Currency:      snap.Currency,
			LowestAsk:     snap.LowestAsk,
			HighestBid:    snap.HighestBid,
			LastSalePrice: snap.LastSalePrice,
			SalesLast72h:  snap.SalesLast72h,
			SalesLast7d:   snap.SalesLast7d,
			SalesLast30d:  snap.SalesLast30d,
			ObservedAt:    snap.ObservedAt,
		}); err != nil {
			return fmt.Errorf("recording snapshot: %w", err)
		}
		snapshots++
	}

	// Raw sale ingestion rides along on eBay jobs. A failure here is logged,
	// not retried: the snapshot data above is already durable and the next
	// scheduled sync re-pulls the same sold-listing window.
	if job.Provider == models.ProviderEbay && w.Sales != nil {
		if err := w.Sales.SyncSales(ctx, style.StyleID); err != nil {
			logger.Error("sales ingestion failed for %s: %v", style.StyleID, err)
		}
	}

	if err := w.Store.MarkStyleSynced(ctx, style.StyleID, now); err != nil {
		logger.Error("failed to stamp last_synced_at on %s: %v", style.StyleID, err)
	}
	return nil
}

// resolveExternalID returns the provider product id for a style, running a
// catalog search once to establish a missing mapping. A style the provider
// cannot match at all is a permanent failure.
func (w *Worker) resolveExternalID(ctx context.Context, adapter providers.MarketDataProvider, style *models.Style, provider models.Provider) (string, error) {
	if id := style.ExternalID(provider); id != nil && *id != "" {
		return *id, nil
	}

	results, err := adapter.SearchCatalog(ctx, style.StyleID, 1)
	if err != nil {
		if providers.IsNotFound(err) {
			return "", &mappingError{msg: fmt.Sprintf("provider %s has no product for style %s", provider, style.StyleID)}
		}
		return "", fmt.Errorf("catalog search: %w", err)
	}
	if len(results) == 0 {
		return "", &mappingError{msg: fmt.Sprintf("provider %s has no product for style %s", provider, style.StyleID)}
	}

	match := results[0]
	if err := w.Store.SetProviderMapping(ctx, style.StyleID, provider, match.ExternalID); err != nil {
		return "", fmt.Errorf("saving provider mapping: %w", err)
	}

	// Opportunistic backfill of NULL catalog fields; non-null values are kept
	fill := models.Style{}
	if match.Name != "" {
		fill.Name = &match.Name
	}
	if match.Brand != "" {
		fill.Brand = &match.Brand
	}
	if match.ImageURL != "" {
		fill.ImageURL = &match.ImageURL
	}
	if err := w.Store.FillStyleFields(ctx, style.StyleID, fill); err != nil {
		logger.Error("failed to backfill style %s: %v", style.StyleID, err)
	}

	return match.ExternalID, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
