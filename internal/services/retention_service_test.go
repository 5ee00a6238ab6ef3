package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func countingStep(name string, n int64, order *[]string, tally func(*RetentionReport, int64)) retentionStep {
	return retentionStep{
		name: name,
		run: func(context.Context) (int64, error) {
			*order = append(*order, name)
			return n, nil
		},
		tally: tally,
	}
}

func failingStep(name string, order *[]string) retentionStep {
	return retentionStep{
		name: name,
		run: func(context.Context) (int64, error) {
			*order = append(*order, name)
			return 0, errors.New("connection reset")
		},
		tally: func(*RetentionReport, int64) {},
	}
}

func TestRetentionFailingStepDoesNotBlockTheRest(t *testing.T) {
	var order []string
	steps := []retentionStep{
		failingStep("rollup", &order),
		countingStep("prune snapshots", 12, &order, func(r *RetentionReport, n int64) { r.SnapshotsPruned = n }),
		countingStep("prune sales", 7, &order, func(r *RetentionReport, n int64) { r.SalesPruned = n }),
	}

	report, err := runRetention(context.Background(), steps)
	if err != nil {
		t.Fatalf("a partial failure must not fail the run: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("every step must run despite the rollup failure, got %v", order)
	}
	if report.SnapshotsPruned != 12 || report.SalesPruned != 7 {
		t.Errorf("surviving steps must still be tallied: %+v", report)
	}
	if len(report.Errors) != 1 || !strings.HasPrefix(report.Errors[0], "rollup:") {
		t.Errorf("the failing step must be named in the report, got %v", report.Errors)
	}
}

func TestRetentionErrorsOnlyWhenEveryStepFails(t *testing.T) {
	var order []string
	steps := []retentionStep{
		failingStep("rollup", &order),
		failingStep("prune snapshots", &order),
	}

	report, err := runRetention(context.Background(), steps)
	if err == nil {
		t.Fatal("a fully failed run must surface an error")
	}
	if len(report.Errors) != 2 {
		t.Errorf("every failure must be reported, got %v", report.Errors)
	}
}

func TestRetentionRollupRunsBeforePruning(t *testing.T) {
	steps := NewRetentionService(nil).steps()
	if len(steps) == 0 || steps[0].name != "rollup" {
		t.Fatalf("rollup must be the first step, got %v", steps)
	}
	for _, s := range steps[1:] {
		if s.name == "rollup" {
			t.Fatal("rollup listed twice")
		}
	}
}
