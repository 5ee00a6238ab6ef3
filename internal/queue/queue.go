/**
 * @description
 * Durable sync job queue backed by the sync_jobs table.
 * This is the single serialization point between concurrent worker processes:
 * claiming uses FOR UPDATE SKIP LOCKED so parallel workers pull disjoint
 * batches, and enqueue is idempotent per (style, provider) while a job for
 * that key is pending or processing.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 * - internal/backoff: retry scheduling shared with the HTTP client
 * - internal/models
 *
 * @notes
 * - Transient failures go back to 'pending' with exponential backoff; permanent
 *   failures short-circuit to 'failed' with the "permanent:" error prefix even
 *   when attempts remain.
 */

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/models"
	"gorm.io/gorm"
)

// Queue is the GORM-backed implementation of the job queue
type Queue struct {
	DB    *gorm.DB
	Retry backoff.Policy
}

// activeJobPredicate scopes the one-active-job-per-key rule to jobs that have
// not reached a terminal state. It must stay identical in the index and in the
// insert's conflict target, or the arbiter stops matching.
const activeJobPredicate = `status IN ('pending', 'processing')`

const activeJobIndexDDL = `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_jobs_active_key
	ON sync_jobs (style_id, provider)
	WHERE ` + activeJobPredicate

// NewQueue builds a queue with the given retry policy
func NewQueue(db *gorm.DB, retry backoff.Policy) *Queue {
	if retry.MaxAttempts == 0 {
		retry = backoff.Default()
	}
	if db != nil {
		// Concurrent enqueues of the same (style, provider) must collapse to
		// one row; a visibility check alone races under READ COMMITTED
		if err := db.Exec(activeJobIndexDDL).Error; err != nil {
			logger.Error("failed to ensure sync_jobs active-key index: %v", err)
		}
	}
	return &Queue{DB: db, Retry: retry}
}

// Enqueue inserts a pending job for (style, provider). Returns false when a
// pending or processing job for the same key already exists (no-op).
func (q *Queue) Enqueue(ctx context.Context, styleID string, provider models.Provider) (bool, error) {
	styleID = models.NormalizeStyleID(styleID)
	if styleID == "" {
		return false, fmt.Errorf("style id is required")
	}

	result := q.DB.WithContext(ctx).Exec(`
		INSERT INTO sync_jobs (id, style_id, provider, status, attempts, max_attempts, next_retry_at, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, NOW(), NOW(), NOW())
		ON CONFLICT (style_id, provider) WHERE `+activeJobPredicate+` DO NOTHING`,
		uuid.New(), styleID, provider, q.Retry.MaxAttempts,
	)
	if result.Error != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// EnqueueBestEffort enqueues without letting failure propagate to the caller.
// Used by flows (item creation) where a missed sync just means staler data.
func (q *Queue) EnqueueBestEffort(ctx context.Context, styleID string, provider models.Provider) {
	if _, err := q.Enqueue(ctx, styleID, provider); err != nil {
		logger.Error("best-effort enqueue failed for %s/%s: %v", styleID, provider, err)
	}
}

// Claim atomically moves up to limit eligible jobs to 'processing' and returns
// them, skipping rows locked by other in-flight claims. Safe under concurrent
// workers: no job is ever returned to two callers.
func (q *Queue) Claim(ctx context.Context, limit int, provider models.Provider) ([]models.SyncJob, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `
		UPDATE sync_jobs SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM sync_jobs
			WHERE status = 'pending' AND next_retry_at <= NOW()`
	args := []interface{}{}
	if provider != "" {
		query += ` AND provider = ?`
		args = append(args, provider)
	}
	query += `
			ORDER BY next_retry_at ASC, created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`
	args = append(args, limit)

	var jobs []models.SyncJob
	if err := q.DB.WithContext(ctx).Raw(query, args...).Scan(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	return jobs, nil
}

// MarkSuccess transitions processing -> completed and clears the error
func (q *Queue) MarkSuccess(ctx context.Context, jobID uuid.UUID) error {
	now := time.Now().UTC()
	return q.DB.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"last_error":   "",
			"completed_at": now,
		}).Error
}

// MarkFailed records a failure and routes the job to retry or terminal failure
func (q *Queue) MarkFailed(ctx context.Context, job *models.SyncJob, jobErr error, permanent bool) error {
	status, lastError, nextRetryAt := q.failureOutcome(job, jobErr, permanent, time.Now().UTC())

	updates := map[string]interface{}{
		"status":     status,
		"last_error": lastError,
	}
	if status == models.JobStatusPending {
		updates["next_retry_at"] = nextRetryAt
	}
	return q.DB.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ?", job.ID).
		Updates(updates).Error
}

// failureOutcome decides the state transition for a failed job. Pure so the
// state machine is testable without a database.
func (q *Queue) failureOutcome(job *models.SyncJob, jobErr error, permanent bool, now time.Time) (models.JobStatus, string, time.Time) {
	message := ""
	if jobErr != nil {
		message = jobErr.Error()
	}

	if permanent {
		return models.JobStatusFailed, models.TruncateError(models.PermanentErrorPrefix + message), time.Time{}
	}

	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.Retry.MaxAttempts
	}
	if job.Attempts >= maxAttempts {
		return models.JobStatusFailed, models.TruncateError(message), time.Time{}
	}

	// 1 min * 2^(attempts-1), capped; attempts was already incremented by Claim
	return models.JobStatusPending, models.TruncateError(message), now.Add(q.Retry.Delay(job.Attempts))
}

// Stats reports queue depth by status for the health endpoint
func (q *Queue) Stats(ctx context.Context) (models.QueueStats, error) {
	var stats models.QueueStats
	rows := []struct {
		Status models.JobStatus
		Count  int64
	}{}
	err := q.DB.WithContext(ctx).Model(&models.SyncJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return stats, err
	}
	for _, row := range rows {
		switch row.Status {
		case models.JobStatusPending:
			stats.Pending = row.Count
		case models.JobStatusProcessing:
			stats.Processing = row.Count
		case models.JobStatusCompleted:
			stats.Completed = row.Count
		case models.JobStatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}

// ResetStuck returns 'processing' jobs older than the threshold to 'pending'.
// Covers workers that died mid-batch without failing their claims.
func (q *Queue) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := q.DB.WithContext(ctx).Model(&models.SyncJob{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        models.JobStatusPending,
			"next_retry_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// retryScope narrows failed jobs to a retry window. Split out so the
// permanent-error filter is testable without a database.
func (q *Queue) retryScope(ctx context.Context, since, until time.Time, includePermanent bool) *gorm.DB {
	scope := q.DB.WithContext(ctx).Model(&models.SyncJob{}).
		Where("status = ? AND updated_at BETWEEN ? AND ?", models.JobStatusFailed, since, until)
	if !includePermanent {
		scope = scope.Where("last_error NOT LIKE ?", models.PermanentErrorPrefix+"%")
	}
	return scope
}

// RetryFailed resets failed jobs in a window to pending with attempts zeroed.
// Permanent failures are skipped unless includePermanent is set.
func (q *Queue) RetryFailed(ctx context.Context, since, until time.Time, includePermanent bool) (int64, error) {
	result := q.retryScope(ctx, since, until, includePermanent).Updates(map[string]interface{}{
		"status":        models.JobStatusPending,
		"attempts":      0,
		"next_retry_at": time.Now().UTC(),
	})
	return result.RowsAffected, result.Error
}
