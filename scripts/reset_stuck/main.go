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

// Returns jobs stuck in 'processing' (e.g. after a worker crash) to 'pending'.
func main() {
	olderThan := flag.Duration("older-than", 15*time.Minute, "minimum time a job must have been processing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	jobQueue := queue.NewQueue(pgDB, backoff.Default())

	n, err := jobQueue.ResetStuck(context.Background(), *olderThan)
	if err != nil {
		log.Fatalf("reset failed: %v", err)
	}
	log.Printf("✅ Reset %d stuck jobs back to pending (processing > %s)", n, *olderThan)
}
