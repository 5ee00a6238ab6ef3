/**
 * @description
 * Worker Service Entry Point.
 * Responsible for background processing:
 * 1. Running the continuous sync worker loop against the job queue.
 * 2. Scheduling tier refreshes (hot/warm/cold) on cron ticks.
 * 3. Nightly retention: daily rollup and pruning of aged raw data.
 * 4. Periodically resetting jobs stuck in 'processing' by crashed workers.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/queue
 * - backend/internal/services
 * - backend/internal/worker
 * - github.com/robfig/cron/v3
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/db"
	"github.com/solestack-project/backend/internal/logger"
	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/queue"
	"github.com/solestack-project/backend/internal/services"
	"github.com/solestack-project/backend/internal/worker"
)

func main() {
	logger.Info("🔥 Starting SoleStack Worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Initialize Services
	jobQueue := queue.NewQueue(pgDB, backoff.Policy{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BaseDelay:   cfg.Sync.BaseRetryDelay,
		MaxDelay:    cfg.Sync.MaxRetryDelay,
	})
	store := services.NewSyncStore(pgDB, redisClient)
	registry := services.BuildRegistry(cfg)
	syncWorker := worker.New(jobQueue, store, registry, "USD", cfg.Sync.IdleSleep)
	if pipeline := services.BuildSalesPipeline(pgDB, registry); pipeline != nil {
		syncWorker.Sales = pipeline
	}
	scheduler := services.NewSchedulerService(pgDB, jobQueue, cfg.Sync.SchedulerBatch)
	retention := services.NewRetentionService(pgDB)

	// 4. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Continuous Worker Loop
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := syncWorker.Run(ctx, cfg.Sync.WorkerBatch, ""); err != nil && err != context.Canceled {
			logger.Error("❌ Worker loop stopped: %v", err)
		}
	}()

	// 6. Cron Schedules
	c := cron.New()

	tick := func(tier models.SyncTier) func() {
		return func() {
			if _, err := scheduler.EnqueueDue(ctx, tier, time.Now().UTC()); err != nil {
				logger.Error("Scheduler tick failed for tier %s: %v", tier, err)
			}
		}
	}
	// Hot styles hourly data, checked often so a due style never waits long
	c.AddFunc("*/5 * * * *", tick(models.TierHot))
	c.AddFunc("*/30 * * * *", tick(models.TierWarm))
	c.AddFunc("15 */4 * * *", tick(models.TierCold))

	// Reset jobs abandoned by crashed workers
	c.AddFunc("*/10 * * * *", func() {
		if n, err := jobQueue.ResetStuck(ctx, 15*time.Minute); err != nil {
			logger.Error("Failed to reset stuck jobs: %v", err)
		} else if n > 0 {
			logger.Info("♻️ Reset %d stuck jobs back to pending", n)
		}
	})

	// Nightly retention at 03:10 UTC
	c.AddFunc("10 3 * * *", func() {
		if _, err := retention.Run(ctx); err != nil {
			logger.Error("Retention run failed: %v", err)
		}
	})

	c.Start()
	logger.Info("✅ Worker loops and schedules running")

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	cronCtx := c.Stop()
	<-cronCtx.Done()

	select {
	case <-workerDone:
	case <-time.After(30 * time.Second):
		logger.Error("Worker loop did not stop in time, exiting anyway")
	}
	logger.Info("Worker exited.")
}
