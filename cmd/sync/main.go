package main

import (
	"context"
	"flag"
	"log"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/db"
	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/queue"
	"github.com/solestack-project/backend/internal/services"
	"github.com/solestack-project/backend/internal/worker"
)

// One-shot drain: process the pending backlog and exit. Useful for local runs
// and cron-style deployments without a long-lived worker.
func main() {
	provider := flag.String("provider", "", "only process jobs for this provider (stockx|alias|ebay)")
	batch := flag.Int("batch", 0, "jobs per claim; defaults to SYNC_WORKER_BATCH")
	flag.Parse()

	log.Println("🚀 Starting one-shot queue drain...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	// Real Redis is optional for a drain; fall back to in-memory so cache writes
	// and pub/sub publishes still have somewhere to go
	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		log.Printf("⚠️ Redis unavailable (%v), using in-memory instance", err)
		mr, merr := miniredis.Run()
		if merr != nil {
			log.Fatalf("failed to start in-memory redis: %v", merr)
		}
		defer mr.Close()
		redisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}

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

	limit := cfg.Sync.WorkerBatch
	if *batch > 0 {
		limit = *batch
	}

	result, err := syncWorker.Drain(context.Background(), limit, models.Provider(*provider), 2)
	if err != nil {
		log.Fatalf("drain failed: %v", err)
	}

	log.Printf("✅ Drain completed: %d claimed, %d succeeded, %d failed",
		result.Claimed, result.Succeeded, result.Failed)
}
