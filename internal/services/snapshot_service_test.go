package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/solestack-project/backend/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestConvertLatestRowRewritesCurrency(t *testing.T) {
	rates := map[string]float64{"USD": 1.0, "GBP": 1.25}
	row := models.LatestMarket{
		Currency:   "GBP",
		LowestAsk:  fptr(100),
		HighestBid: fptr(80),
	}
	convertLatestRow(&row, "USD", rates)

	if row.Currency != "USD" {
		t.Fatalf("currency not rewritten: %s", row.Currency)
	}
	if *row.LowestAsk != 125 || *row.HighestBid != 100 {
		t.Errorf("amounts not converted: ask=%v bid=%v", *row.LowestAsk, *row.HighestBid)
	}
	if row.LastSalePrice != nil {
		t.Error("nil prices must stay nil through conversion")
	}
}

func TestConvertLatestRowSkipsUnknownCurrency(t *testing.T) {
	rates := map[string]float64{"USD": 1.0}
	row := models.LatestMarket{Currency: "JPY", LowestAsk: fptr(15000)}
	convertLatestRow(&row, "USD", rates)

	if row.Currency != "JPY" || *row.LowestAsk != 15000 {
		t.Errorf("row with unmapped currency must be untouched: %+v", row)
	}
}

func TestLatestForStyleServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cached := []models.LatestMarket{{
		StyleID:    "DD1391-100",
		Provider:   models.ProviderStockX,
		Currency:   "USD",
		LowestAsk:  fptr(150),
		ObservedAt: time.Now().UTC().Add(-30 * time.Minute),
	}}
	data, err := json.Marshal(cached)
	if err != nil {
		t.Fatal(err)
	}
	if err := mr.Set(latestCacheKey("DD1391-100", "USD"), string(data)); err != nil {
		t.Fatal(err)
	}

	// DB is nil: a cache hit must never touch Postgres
	s := NewSnapshotService(nil, rdb)
	rows, err := s.LatestForStyle(context.Background(), "dd1391-100", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || *rows[0].LowestAsk != 150 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Freshness != models.FreshnessFresh {
		t.Errorf("recent observation must be labeled fresh, got %q", rows[0].Freshness)
	}
}

func TestPublishUpdateReachesSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sub := rdb.Subscribe(context.Background(), SnapshotUpdateChannel)
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	s := NewSnapshotService(nil, rdb)
	s.publishUpdate(context.Background(), &models.MarketSnapshot{
		StyleID:    "DD1391-100",
		Provider:   models.ProviderStockX,
		Currency:   "USD",
		LowestAsk:  fptr(150),
		ObservedAt: time.Now().UTC(),
	})

	select {
	case msg := <-sub.Channel():
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if payload["style_id"] != "DD1391-100" {
			t.Errorf("unexpected payload: %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot update")
	}
}
