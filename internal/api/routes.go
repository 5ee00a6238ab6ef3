/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 * - backend/internal/worker
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/solestack-project/backend/internal/api/handlers"
	"github.com/solestack-project/backend/internal/api/middleware"
	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/providers"
	"github.com/solestack-project/backend/internal/queue"
	"github.com/solestack-project/backend/internal/services"
	"github.com/solestack-project/backend/internal/worker"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, registry providers.Registry, cfg *config.Config) {
	// 1. Initialize Services
	jobQueue := queue.NewQueue(db, backoff.Policy{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BaseDelay:   cfg.Sync.BaseRetryDelay,
		MaxDelay:    cfg.Sync.MaxRetryDelay,
	})
	store := services.NewSyncStore(db, rdb)
	syncWorker := worker.New(jobQueue, store, registry, "USD", cfg.Sync.IdleSleep)
	if pipeline := services.BuildSalesPipeline(db, registry); pipeline != nil {
		syncWorker.Sales = pipeline
	}
	scheduler := services.NewSchedulerService(db, jobQueue, cfg.Sync.SchedulerBatch)
	retention := services.NewRetentionService(db)
	metrics := services.NewMetricsService(db)
	streamHub := services.NewSnapshotStreamHub(rdb, services.SnapshotUpdateChannel)

	// 2. Initialize Handlers
	jobsHandler := handlers.NewJobsHandler(syncWorker, jobQueue, scheduler, retention, rdb, cfg.Sync.WorkerBatch)
	marketHandler := handlers.NewMarketHandler(store.SnapshotService, metrics, streamHub)

	// 3. Define Routes
	apiGroup := app.Group("/api")
	v1 := apiGroup.Group("/v1")

	// Public Routes
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Market Routes (Public)
	market := v1.Group("/market")
	market.Get("/latest", marketHandler.GetLatest)
	market.Get("/metrics", marketHandler.GetMetrics)
	market.Get("/stream", marketHandler.StreamUpdates)

	// Job Routes (Protected by shared sync secret)
	jobs := v1.Group("/jobs", middleware.JobProtected(cfg))
	jobs.Post("/drain", jobsHandler.DrainQueue)
	jobs.Get("/stats", jobsHandler.GetQueueStats)
	jobs.Post("/enqueue", jobsHandler.EnqueueStyle)
	jobs.Post("/retention", jobsHandler.RunRetention)
}
