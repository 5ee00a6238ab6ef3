package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/config"
	"github.com/solestack-project/backend/internal/db"
	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/queue"
	"github.com/solestack-project/backend/internal/services"
)

// Bulk import + enqueue: reads style codes (one per line, or a CSV with a
// style_id column first), ensures catalog rows exist, and enqueues sync jobs
// across all providers.
func main() {
	file := flag.String("file", "", "path to a file of style codes; '-' for stdin")
	tier := flag.String("tier", string(models.TierWarm), "tier assigned to newly created styles")
	enqueue := flag.Bool("enqueue", true, "enqueue sync jobs after importing")
	flag.Parse()

	if *file == "" {
		log.Fatal("usage: bulk_sync -file styles.txt [-tier warm] [-enqueue=false]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	styleIDs, err := readStyleIDs(*file)
	if err != nil {
		log.Fatalf("failed to read style list: %v", err)
	}
	if len(styleIDs) == 0 {
		log.Fatal("no style codes found in input")
	}
	log.Printf("📦 Importing %d styles (tier=%s)...", len(styleIDs), *tier)

	catalog := services.NewCatalogService(pgDB)
	styles := make([]models.Style, 0, len(styleIDs))
	for _, id := range styleIDs {
		styles = append(styles, models.Style{StyleID: id, Tier: models.SyncTier(*tier)})
	}

	ctx := context.Background()
	if err := catalog.BulkUpsertStyles(ctx, styles); err != nil {
		log.Fatalf("bulk upsert failed: %v", err)
	}
	log.Printf("✅ Catalog import done")

	if !*enqueue {
		return
	}

	// Freshly imported styles carry no provider mappings yet, so fan out to
	// every provider; the worker establishes mappings via catalog search. A
	// failed enqueue only means staler data until the next scheduler tick, so
	// it never fails the import.
	jobQueue := queue.NewQueue(pgDB, backoff.Default())
	for _, id := range styleIDs {
		for _, provider := range models.AllProviders {
			jobQueue.EnqueueBestEffort(ctx, id, provider)
		}
	}
	log.Printf("✅ Enqueued sync jobs for %d styles across %d providers", len(styleIDs), len(models.AllProviders))
}

func readStyleIDs(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	seen := map[string]bool{}
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Accept CSV lines; the style code is the first column
		if strings.Contains(line, ",") {
			fields, err := csv.NewReader(strings.NewReader(line)).Read()
			if err != nil || len(fields) == 0 {
				continue
			}
			line = fields[0]
		}
		id := models.NormalizeStyleID(line)
		if id == "" || id == "STYLE_ID" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return ids, nil
}
