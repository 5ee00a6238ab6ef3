package stockx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solestack-project/backend/internal/backoff"
	"github.com/solestack-project/backend/internal/providers"
	"github.com/solestack-project/backend/internal/providers/httpx"
)

func testAdapter(srvURL string) *Client {
	return &Client{
		baseURL: srvURL,
		apiKey:  "test-key",
		http: httpx.NewClient(httpx.Options{
			Provider: providerName,
			Timeout:  2 * time.Second,
			Tokens:   httpx.StaticTokenSource("test-token"),
			Retry:    backoff.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		}),
	}
}

func TestFetchMarketDataNormalizesAmounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{
			"productId": "prod-1",
			"variantId": "var-1",
			"currencyCode": "GBP",
			"lowestAskAmount": "150.00",
			"highestBidAmount": "120",
			"lastSaleAmount": "",
			"salesLast72Hours": 4,
			"salesLastWeek": 11,
			"salesLastMonth": 30
		}`))
	}))
	defer srv.Close()

	snap, err := testAdapter(srv.URL).FetchMarketData(context.Background(), "prod-1", "var-1", "GBP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.LowestAsk == nil || *snap.LowestAsk != 150.00 {
		t.Errorf("expected lowest ask 150.00, got %v", snap.LowestAsk)
	}
	if snap.HighestBid == nil || *snap.HighestBid != 120.0 {
		t.Errorf("expected highest bid 120, got %v", snap.HighestBid)
	}
	if snap.LastSalePrice != nil {
		t.Errorf("expected nil last sale, got %v", *snap.LastSalePrice)
	}
	if snap.Currency != "GBP" {
		t.Errorf("expected GBP, got %s", snap.Currency)
	}
	if snap.SalesLast7d != 11 {
		t.Errorf("expected 11 sales last week, got %d", snap.SalesLast7d)
	}
	if !snap.Plausible() {
		t.Error("snapshot should be within plausible major-unit range")
	}
}

func TestFetchMarketDataEmptyMarketIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"productId":"prod-1","variantId":"var-1","currencyCode":"USD","lowestAskAmount":"","highestBidAmount":"","lastSaleAmount":""}`))
	}))
	defer srv.Close()

	snap, err := testAdapter(srv.URL).FetchMarketData(context.Background(), "prod-1", "var-1", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatal("size with no market should yield nil snapshot, nil error")
	}
}

func TestFetchMarketDataNotFoundYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	snap, err := testAdapter(srv.URL).FetchMarketData(context.Background(), "prod-1", "var-1", "USD")
	if err != nil {
		t.Fatalf("expected 404 market data to be silent, got %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot")
	}
}

func TestFetchMarketDataRequiresIDs(t *testing.T) {
	_, err := testAdapter("http://unused").FetchMarketData(context.Background(), "", "", "USD")
	if !providers.IsPermanent(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSearchCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "DD1391-100" {
			t.Errorf("expected query DD1391-100, got %s", got)
		}
		w.Write([]byte(`{"count":1,"products":[{"productId":"prod-1","title":"Dunk Low Panda","brand":"Nike","styleId":"DD1391-100"}]}`))
	}))
	defer srv.Close()

	results, err := testAdapter(srv.URL).SearchCatalog(context.Background(), "DD1391-100", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ExternalID != "prod-1" || results[0].SKU != "DD1391-100" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestFetchVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"variantId":"var-1","variantValue":"9.5","sizeChart":{"defaultConversion":{"size":"9.5","type":"us m"}}}]`))
	}))
	defer srv.Close()

	variants, err := testAdapter(srv.URL).FetchVariants(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(variants) != 1 || variants[0].Size != "9.5" || variants[0].SizeSystem != "US" {
		t.Fatalf("unexpected variants: %+v", variants)
	}
}
