/**
 * @description
 * Operational job API handlers.
 * Exposes the queue to schedulers and operators: drain the backlog, inspect
 * queue depth, enqueue on-demand syncs, and trigger a retention run.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 * - backend/internal/worker
 *
 * @notes
 * - Queue stats are cached in Redis for a few seconds; dashboards poll this
 *   endpoint aggressively and the underlying GROUP BY is not free.
 * - All handlers here sit behind the job-secret middleware.
 */

package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/services"
	"github.com/solestack-project/backend/internal/worker"
)

const (
	queueStatsCacheKey = "queue:stats"
	queueStatsCacheTTL = 5 * time.Second
)

// JobDrainer runs the worker in drain mode
type JobDrainer interface {
	Drain(ctx context.Context, limit int, provider models.Provider, emptyThreshold int) (worker.BatchResult, error)
}

// QueueInspector reports queue depth by status
type QueueInspector interface {
	Stats(ctx context.Context) (models.QueueStats, error)
}

// StyleEnqueuer enqueues an on-demand sync for one style
type StyleEnqueuer interface {
	EnqueueStyle(ctx context.Context, styleID string) (int, error)
}

// RetentionRunner executes one retention/downsampling pass
type RetentionRunner interface {
	Run(ctx context.Context) (services.RetentionReport, error)
}

type JobsHandler struct {
	Worker    JobDrainer
	Queue     QueueInspector
	Scheduler StyleEnqueuer
	Retention RetentionRunner
	Redis     *redis.Client
	// BatchSize used per drain iteration
	BatchSize int
}

func NewJobsHandler(w JobDrainer, q QueueInspector, s StyleEnqueuer, r RetentionRunner, rdb *redis.Client, batchSize int) *JobsHandler {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &JobsHandler{Worker: w, Queue: q, Scheduler: s, Retention: r, Redis: rdb, BatchSize: batchSize}
}

// DrainQueue processes pending jobs until the queue stays empty
// POST /api/v1/jobs/drain
func (h *JobsHandler) DrainQueue(c *fiber.Ctx) error {
	provider := models.Provider(c.Query("provider"))
	limit := c.QueryInt("limit", h.BatchSize)
	if limit <= 0 {
		limit = h.BatchSize
	}

	result, err := h.Worker.Drain(c.Context(), limit, provider, 2)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to drain queue",
		})
	}
	return c.JSON(fiber.Map{
		"claimed":   result.Claimed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
}

// GetQueueStats returns queue depth by status
// GET /api/v1/jobs/stats
func (h *JobsHandler) GetQueueStats(c *fiber.Ctx) error {
	ctx := c.Context()

	// 1. Try Redis
	if h.Redis != nil {
		val, err := h.Redis.Get(ctx, queueStatsCacheKey).Result()
		if err == nil {
			var stats models.QueueStats
			if err := json.Unmarshal([]byte(val), &stats); err == nil {
				return c.JSON(stats)
			}
		}
	}

	// 2. Fallback to DB
	stats, err := h.Queue.Stats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch queue stats",
		})
	}

	if h.Redis != nil {
		if data, err := json.Marshal(stats); err == nil {
			_ = h.Redis.Set(ctx, queueStatsCacheKey, data, queueStatsCacheTTL).Err()
		}
	}
	return c.JSON(stats)
}

type enqueueRequest struct {
	StyleID string `json:"style_id"`
}

// EnqueueStyle requests an on-demand sync across all mapped providers
// POST /api/v1/jobs/enqueue
func (h *JobsHandler) EnqueueStyle(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil || req.StyleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "style_id is required",
		})
	}

	enqueued, err := h.Scheduler.EnqueueStyle(c.Context(), req.StyleID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"style_id": models.NormalizeStyleID(req.StyleID),
		"enqueued": enqueued,
	})
}

// RunRetention triggers rollup and pruning immediately
// POST /api/v1/jobs/retention
func (h *JobsHandler) RunRetention(c *fiber.Ctx) error {
	report, err := h.Retention.Run(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  "Retention run failed",
			"report": report,
		})
	}
	return c.JSON(report)
}
