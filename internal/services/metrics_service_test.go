package services

import (
	"math"
	"testing"
	"time"

	"github.com/solestack-project/backend/internal/models"
)

func sizeptr(s string) *string { return &s }

func includedSale(priceCents int64, soldAt time.Time) models.RawSale {
	system := models.SizeSystemUS
	return models.RawSale{
		SKU:                   "DD1391-100",
		Size:                  sizeptr("9.5"),
		SizeSystem:            &system,
		SizeConfidence:        1.0,
		PriceCents:            priceCents,
		Currency:              "USD",
		Condition:             models.ConditionNew,
		AuthenticityGuarantee: true,
		IncludedInMetrics:     true,
		SoldAt:                soldAt,
	}
}

func TestMedianCentsOddAndEven(t *testing.T) {
	if got := medianCents([]int64{30000, 10000, 20000}); got != 20000 {
		t.Errorf("odd count: got %d, want 20000", got)
	}
	if got := medianCents([]int64{150, 151}); got != 151 {
		t.Errorf("half-cent medians round up, got %d", got)
	}
	if got := medianCents([]int64{10000, 20000, 30000, 40000}); got != 25000 {
		t.Errorf("even count: got %d, want 25000", got)
	}
	if got := medianCents([]int64{15000}); got != 15000 {
		t.Errorf("single: got %d", got)
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	if got := coefficientOfVariation([]int64{10000}); got != 0 {
		t.Errorf("single sample must have zero volatility, got %v", got)
	}
	if got := coefficientOfVariation([]int64{10000, 10000, 10000}); got != 0 {
		t.Errorf("identical prices must have zero volatility, got %v", got)
	}
	got := coefficientOfVariation([]int64{10000, 20000})
	// mean 15000, stddev 5000 -> cv 1/3
	if math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("got %v, want 1/3", got)
	}
}

func TestConfidenceZeroWithoutSamples(t *testing.T) {
	if got := confidenceScore(nil, 0, time.Now()); got != 0 {
		t.Errorf("no included sales must score 0, got %v", got)
	}
}

func TestConfidenceDropsWithOutlierShare(t *testing.T) {
	now := time.Now().UTC()
	var included []models.RawSale
	for i := 0; i < 30; i++ {
		included = append(included, includedSale(18000, now.Add(-time.Duration(i)*time.Hour)))
	}

	clean := confidenceScore(included, 0, now)
	dirty := confidenceScore(included, 0.5, now)
	if clean <= 0 || clean > 1 {
		t.Fatalf("clean score out of range: %v", clean)
	}
	if dirty >= clean {
		t.Errorf("50%% outliers must strictly lower confidence: clean=%v dirty=%v", clean, dirty)
	}
}

func TestConfidenceGrowsWithSampleDepth(t *testing.T) {
	now := time.Now().UTC()
	few := []models.RawSale{includedSale(18000, now), includedSale(18100, now)}
	var many []models.RawSale
	for i := 0; i < confidenceSampleTarget; i++ {
		many = append(many, includedSale(18000, now))
	}
	if confidenceScore(few, 0, now) >= confidenceScore(many, 0, now) {
		t.Error("more included samples must not lower confidence")
	}
	if got := confidenceScore(many, 0, now); got != 1 {
		t.Errorf("saturated recent clean sample set must score 1, got %v", got)
	}
}

func TestLiquidityIndexScalesAndSaturates(t *testing.T) {
	if got := liquidityIndex(0); got != 0 {
		t.Errorf("no sales means zero liquidity, got %v", got)
	}
	lo, hi := liquidityIndex(3), liquidityIndex(30)
	if lo <= 0 || hi <= lo {
		t.Errorf("liquidity must grow with volume: lo=%v hi=%v", lo, hi)
	}
	if got := liquidityIndex(10000); got != 1 {
		t.Errorf("liquidity must cap at 1, got %v", got)
	}
}

func TestComputeMetricWindows(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	sales := []models.RawSale{
		includedSale(20000, now.Add(-1*time.Hour)),       // in all windows
		includedSale(22000, now.Add(-4*24*time.Hour)),    // 7d, 30d, 90d
		includedSale(18000, now.Add(-20*24*time.Hour)),   // 30d, 90d
		includedSale(30000, now.Add(-60*24*time.Hour)),   // 90d only
	}
	// A USED sale in the same group must not move any median
	excluded := includedSale(1000, now.Add(-2*time.Hour))
	excluded.Condition = models.ConditionUsed
	excluded.IncludedInMetrics = false
	sales = append(sales, excluded)

	metric := computeMetric("DD1391-100", "9.5", "USD", "EBAY_US", sales, now)

	if metric.Samples72h != 1 || *metric.MedianCents72h != 20000 {
		t.Errorf("72h window off: samples=%d median=%v", metric.Samples72h, metric.MedianCents72h)
	}
	if metric.Samples7d != 2 || *metric.MedianCents7d != 21000 {
		t.Errorf("7d window off: samples=%d median=%v", metric.Samples7d, metric.MedianCents7d)
	}
	if metric.Samples30d != 3 || *metric.MedianCents30d != 20000 {
		t.Errorf("30d window off: samples=%d median=%v", metric.Samples30d, metric.MedianCents30d)
	}
	if metric.Samples90d != 4 || *metric.MedianCents90d != 21000 {
		t.Errorf("90d window off: samples=%d median=%v", metric.Samples90d, metric.MedianCents90d)
	}
	if *metric.MinCents90d != 18000 || *metric.MaxCents90d != 30000 {
		t.Errorf("90d extremes off: min=%v max=%v", metric.MinCents90d, metric.MaxCents90d)
	}
	if metric.Volatility <= 0 {
		t.Error("spread prices must produce nonzero volatility")
	}
}

func TestComputeMetricAllExcluded(t *testing.T) {
	now := time.Now().UTC()
	sale := includedSale(20000, now)
	sale.IsOutlier = true
	sale.IncludedInMetrics = false

	metric := computeMetric("DD1391-100", "9.5", "USD", "EBAY_US", []models.RawSale{sale}, now)
	if metric.MedianCents90d != nil || metric.Samples90d != 0 {
		t.Errorf("excluded-only group must have no median: %+v", metric)
	}
	if metric.Confidence != 0 {
		t.Errorf("excluded-only group must have zero confidence, got %v", metric.Confidence)
	}
	if metric.OutlierRatio != 1 {
		t.Errorf("outlier ratio should be 1, got %v", metric.OutlierRatio)
	}
}

func TestIQRFence(t *testing.T) {
	// Tight cluster with one wild price
	prices := []int64{18000, 18200, 18400, 18500, 18600, 18800, 19000, 19200, 90000}
	low, high := iqrFence(prices)
	if 90000 < high {
		t.Errorf("wild price must sit outside the fence [%d, %d]", low, high)
	}
	if 18500 < low || 18500 > high {
		t.Errorf("cluster center must sit inside the fence [%d, %d]", low, high)
	}
}

func TestQuantileInterpolates(t *testing.T) {
	sorted := []int64{10, 20, 30, 40}
	if got := quantile(sorted, 0.5); got != 25 {
		t.Errorf("median quantile: got %v, want 25", got)
	}
	if got := quantile(sorted, 0); got != 10 {
		t.Errorf("min quantile: got %v", got)
	}
	if got := quantile(sorted, 1); got != 40 {
		t.Errorf("max quantile: got %v", got)
	}
}
