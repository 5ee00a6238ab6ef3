package queue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/models"
)

func testQueue() *Queue {
	return &Queue{Retry: backoff.Policy{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Hour}}
}

// dryRunQueue builds SQL without a live connection so query shape is checkable
func dryRunQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=queue dbname=queue",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("failed to open dry-run session: %v", err)
	}
	return &Queue{DB: db, Retry: backoff.Default()}
}

func TestTransientFailureSchedulesRetry(t *testing.T) {
	q := testQueue()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	job := &models.SyncJob{Attempts: 1, MaxAttempts: 5}

	status, lastError, nextRetryAt := q.failureOutcome(job, errors.New("stockx server error (status 502)"), false, now)

	if status != models.JobStatusPending {
		t.Fatalf("expected pending, got %s", status)
	}
	if lastError != "stockx server error (status 502)" {
		t.Errorf("unexpected error message: %q", lastError)
	}
	if got := nextRetryAt.Sub(now); got != time.Minute {
		t.Errorf("first retry should wait 1m, got %v", got)
	}
}

func TestRetryDelayGrowsMonotonically(t *testing.T) {
	q := testQueue()
	now := time.Now().UTC()

	prev := time.Duration(0)
	for attempts := 1; attempts < 5; attempts++ {
		job := &models.SyncJob{Attempts: attempts, MaxAttempts: 5}
		_, _, nextRetryAt := q.failureOutcome(job, errors.New("boom"), false, now)
		delay := nextRetryAt.Sub(now)
		if delay < prev {
			t.Fatalf("delay shrank at attempt %d: %v < %v", attempts, delay, prev)
		}
		prev = delay
	}
}

func TestPermanentFailureShortCircuits(t *testing.T) {
	q := testQueue()
	job := &models.SyncJob{Attempts: 1, MaxAttempts: 5}

	status, lastError, _ := q.failureOutcome(job, errors.New("missing stockx product mapping"), true, time.Now().UTC())

	if status != models.JobStatusFailed {
		t.Fatalf("permanent failure must go straight to failed, got %s", status)
	}
	if !strings.HasPrefix(lastError, models.PermanentErrorPrefix) {
		t.Errorf("expected %q prefix, got %q", models.PermanentErrorPrefix, lastError)
	}
}

func TestExhaustedAttemptsFail(t *testing.T) {
	q := testQueue()
	job := &models.SyncJob{Attempts: 5, MaxAttempts: 5}

	status, lastError, _ := q.failureOutcome(job, errors.New("timeout"), false, time.Now().UTC())

	if status != models.JobStatusFailed {
		t.Fatalf("expected failed after exhausting attempts, got %s", status)
	}
	if strings.HasPrefix(lastError, models.PermanentErrorPrefix) {
		t.Error("exhausted transient failures must not carry the permanent prefix")
	}
}

func TestFailureErrorIsTruncated(t *testing.T) {
	q := testQueue()
	job := &models.SyncJob{Attempts: 5, MaxAttempts: 5}
	huge := strings.Repeat("x", 5000)

	_, lastError, _ := q.failureOutcome(job, errors.New(huge), false, time.Now().UTC())

	if len(lastError) != models.MaxErrorLength {
		t.Fatalf("expected error capped at %d chars, got %d", models.MaxErrorLength, len(lastError))
	}
}

func TestRetryFailedSkipsPermanentByDefault(t *testing.T) {
	q := dryRunQueue(t)
	until := time.Now().UTC()
	since := until.Add(-24 * time.Hour)

	stmt := q.retryScope(context.Background(), since, until, false).Find(&[]models.SyncJob{}).Statement
	if !strings.Contains(stmt.SQL.String(), "NOT LIKE") {
		t.Fatalf("default retry must filter permanent failures, got: %s", stmt.SQL.String())
	}
	found := false
	for _, v := range stmt.Vars {
		if v == models.PermanentErrorPrefix+"%" {
			found = true
		}
	}
	if !found {
		t.Errorf("filter must match the stored %q prefix, vars: %v", models.PermanentErrorPrefix, stmt.Vars)
	}
}

func TestRetryFailedIncludesPermanentOnRequest(t *testing.T) {
	q := dryRunQueue(t)
	until := time.Now().UTC()
	since := until.Add(-24 * time.Hour)

	stmt := q.retryScope(context.Background(), since, until, true).Find(&[]models.SyncJob{}).Statement
	if strings.Contains(stmt.SQL.String(), "NOT LIKE") {
		t.Fatalf("includePermanent must drop the prefix filter, got: %s", stmt.SQL.String())
	}
}

func TestEnqueueConflictTargetMatchesActiveIndex(t *testing.T) {
	// The arbiter only works if the index and the insert agree on key and
	// predicate; guard the DDL against drifting edits
	if !strings.Contains(activeJobIndexDDL, "UNIQUE INDEX") {
		t.Error("active-key index must be unique or concurrent enqueues race")
	}
	if !strings.Contains(activeJobIndexDDL, "(style_id, provider)") {
		t.Error("index key must be the enqueue conflict target (style_id, provider)")
	}
	if !strings.Contains(activeJobIndexDDL, activeJobPredicate) {
		t.Error("index predicate must match the insert's conflict predicate")
	}
}
