package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solestack-project/backend/internal/models"
)

type fakeStyleSource struct {
	due       []models.Style
	byID      map[string]*models.Style
	gotTier   models.SyncTier
	gotBefore time.Time
	gotLimit  int
	called    bool
}

func (f *fakeStyleSource) DueStyles(ctx context.Context, tier models.SyncTier, before time.Time, limit int) ([]models.Style, error) {
	f.called = true
	f.gotTier = tier
	f.gotBefore = before
	f.gotLimit = limit
	return f.due, nil
}

func (f *fakeStyleSource) StyleByID(ctx context.Context, styleID string) (*models.Style, error) {
	return f.byID[models.NormalizeStyleID(styleID)], nil
}

type recordingEnqueuer struct {
	keys   []string
	failOn string
	dupes  map[string]bool
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, styleID string, provider models.Provider) (bool, error) {
	key := styleID + "/" + string(provider)
	if key == r.failOn {
		return false, errors.New("connection refused")
	}
	r.keys = append(r.keys, key)
	if r.dupes[key] {
		return false, nil
	}
	return true, nil
}

func mappedStyle(id string, stockx, ebay string) models.Style {
	s := models.Style{StyleID: id}
	if stockx != "" {
		s.StockXProductID = &stockx
	}
	if ebay != "" {
		s.EbayEPID = &ebay
	}
	return s
}

func TestEnqueueDueFansOutPerMappedProvider(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeStyleSource{due: []models.Style{
		mappedStyle("DD1391-100", "sx-1", "epid-1"),
		mappedStyle("FD2596-107", "sx-2", ""),
	}}
	q := &recordingEnqueuer{}
	sched := &SchedulerService{Styles: src, Queue: q, BatchSize: 50}

	n, err := sched.EnqueueDue(context.Background(), models.TierHot, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 jobs (2 providers + 1), got %d", n)
	}
	if src.gotTier != models.TierHot || src.gotLimit != 50 {
		t.Errorf("selection not scoped to tier/batch: %s/%d", src.gotTier, src.gotLimit)
	}
	// Hot tier staleness is one hour
	if want := now.Add(-time.Hour); !src.gotBefore.Equal(want) {
		t.Errorf("cutoff %v, want %v", src.gotBefore, want)
	}
}

func TestEnqueueDueSkipsFrozenTier(t *testing.T) {
	src := &fakeStyleSource{due: []models.Style{mappedStyle("DD1391-100", "sx-1", "")}}
	sched := &SchedulerService{Styles: src, Queue: &recordingEnqueuer{}, BatchSize: 50}

	n, err := sched.EnqueueDue(context.Background(), models.TierFrozen, time.Now().UTC())
	if err != nil || n != 0 {
		t.Fatalf("frozen must never schedule: n=%d err=%v", n, err)
	}
	if src.called {
		t.Error("frozen tier must not even query the catalog")
	}
}

func TestEnqueueDueSurvivesSingleEnqueueFailure(t *testing.T) {
	src := &fakeStyleSource{due: []models.Style{
		mappedStyle("DD1391-100", "sx-1", ""),
		mappedStyle("FD2596-107", "sx-2", ""),
	}}
	q := &recordingEnqueuer{failOn: "DD1391-100/stockx"}
	sched := &SchedulerService{Styles: src, Queue: q, BatchSize: 50}

	n, err := sched.EnqueueDue(context.Background(), models.TierHot, time.Now().UTC())
	if err != nil {
		t.Fatalf("one failed enqueue must not fail the tick: %v", err)
	}
	if n != 1 {
		t.Errorf("surviving style must still be enqueued, got %d", n)
	}
}

func TestEnqueueDueCountsOnlyNewJobs(t *testing.T) {
	src := &fakeStyleSource{due: []models.Style{mappedStyle("DD1391-100", "sx-1", "epid-1")}}
	q := &recordingEnqueuer{dupes: map[string]bool{"DD1391-100/stockx": true}}
	sched := &SchedulerService{Styles: src, Queue: q, BatchSize: 50}

	n, err := sched.EnqueueDue(context.Background(), models.TierWarm, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("already-queued keys must not be counted, got %d", n)
	}
}

func TestEnqueueStyleFallsBackToAllProviders(t *testing.T) {
	unmapped := models.Style{StyleID: "CT8532-104"}
	src := &fakeStyleSource{byID: map[string]*models.Style{"CT8532-104": &unmapped}}
	q := &recordingEnqueuer{}
	sched := &SchedulerService{Styles: src, Queue: q, BatchSize: 50}

	n, err := sched.EnqueueStyle(context.Background(), "ct8532-104")
	if err != nil {
		t.Fatal(err)
	}
	if n != len(models.AllProviders) {
		t.Errorf("unmapped style must fan out to every provider, got %d", n)
	}
}

func TestEnqueueStyleRejectsUnknownStyle(t *testing.T) {
	sched := &SchedulerService{Styles: &fakeStyleSource{}, Queue: &recordingEnqueuer{}, BatchSize: 50}
	if _, err := sched.EnqueueStyle(context.Background(), "ZZ0000-000"); err == nil {
		t.Fatal("unknown style must be an error")
	}
}
