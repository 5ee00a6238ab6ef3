package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/db"
	"github.com/solestack-project/backend/internal/queue"
)

// Requeues failed jobs from a time window. Permanently failed jobs stay failed
// unless -include-permanent is passed (after fixing the underlying data).
func main() {
	since := flag.Duration("since", 24*time.Hour, "how far back to look for failed jobs")
	includePermanent := flag.Bool("include-permanent", false, "also retry jobs marked permanent")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	jobQueue := queue.NewQueue(pgDB, backoff.Policy{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BaseDelay:   cfg.Sync.BaseRetryDelay,
		MaxDelay:    cfg.Sync.MaxRetryDelay,
	})

	now := time.Now().UTC()
	n, err := jobQueue.RetryFailed(context.Background(), now.Add(-*since), now, *includePermanent)
	if err != nil {
		log.Fatalf("retry failed: %v", err)
	}

	if *includePermanent {
		log.Printf("✅ Requeued %d failed jobs (permanent included) from the last %s", n, *since)
	} else {
		log.Printf("✅ Requeued %d failed jobs from the last %s", n, *since)
	}
}
