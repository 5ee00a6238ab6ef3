package handlers

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/services"
)

type fakeLatest struct {
	rows        []models.LatestMarket
	gotStyleID  string
	gotCurrency string
}

func (f *fakeLatest) LatestForStyle(ctx context.Context, styleID, currency string) ([]models.LatestMarket, error) {
	f.gotStyleID = styleID
	f.gotCurrency = currency
	return f.rows, nil
}

type fakeMetrics struct{ rows []models.SaleMetric }

func (f *fakeMetrics) MetricsForStyle(ctx context.Context, styleID string) ([]models.SaleMetric, error) {
	return f.rows, nil
}

func TestGetLatestRequiresStyleID(t *testing.T) {
	h := NewMarketHandler(&fakeLatest{}, &fakeMetrics{}, nil)
	app := fiber.New()
	app.Get("/api/v1/market/latest", h.GetLatest)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/market/latest", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing style_id must be rejected, got %d", resp.StatusCode)
	}
}

func TestGetLatestForwardsCurrency(t *testing.T) {
	latest := &fakeLatest{}
	h := NewMarketHandler(latest, &fakeMetrics{}, nil)
	app := fiber.New()
	app.Get("/api/v1/market/latest", h.GetLatest)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/market/latest?style_id=DD1391-100&currency=GBP", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if latest.gotStyleID != "DD1391-100" || latest.gotCurrency != "GBP" {
		t.Errorf("query params not forwarded: style=%q currency=%q", latest.gotStyleID, latest.gotCurrency)
	}
}

func TestStreamUpdates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	defer redisClient.Close()

	hub := services.NewSnapshotStreamHub(redisClient, services.SnapshotUpdateChannel)
	handler := NewMarketHandler(&fakeLatest{}, &fakeMetrics{}, hub)
	app := fiber.New()
	app.Get("/api/v1/market/stream", handler.StreamUpdates)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to open listener: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	defer app.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	payload := `{"style_id":"DD1391-100","provider":"stockx","lowest_ask":150}`
	go func() {
		// Let the SSE client and the hub subscription settle first
		for i := 0; i < 20; i++ {
			time.Sleep(50 * time.Millisecond)
			_ = redisClient.Publish(context.Background(), services.SnapshotUpdateChannel, payload).Err()
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+ln.Addr().String()+"/api/v1/market/stream", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to call SSE endpoint: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case <-timeout:
			t.Fatal("timed out waiting for SSE data")
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("failed to read SSE line: %v", err)
			}
			if strings.HasPrefix(line, "data:") {
				if !strings.Contains(line, `"DD1391-100"`) {
					t.Fatalf("unexpected SSE payload: %s", line)
				}
				return
			}
		}
	}
}
