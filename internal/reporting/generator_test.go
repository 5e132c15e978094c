package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/orchestrator"
	"crypto-liquidity-lab/internal/selection"
)

func testRunResult() (*orchestrator.RunResult, *domain.Artifact) {
	folds := []domain.FoldMetrics{
		{ModelName: "linear_regression", Fold: 0, TrainRows: 10, ValRows: 5, RMSE: 0.20, MAE: 0.15, R2: 0.80},
		{ModelName: "linear_regression", Fold: 1, TrainRows: 15, ValRows: 5, RMSE: 0.10, MAE: 0.08, R2: 0.90},
		{ModelName: "decision_tree", Fold: 0, TrainRows: 10, ValRows: 5, RMSE: 0.40, MAE: 0.30, R2: 0.50},
		{ModelName: "decision_tree", Fold: 1, TrainRows: 15, ValRows: 5, Failed: true, Reason: "timeout"},
	}

	art := &domain.Artifact{
		ModelName: "linear_regression",
		Version:   "8qz5vTest",
		Features:  []string{"price", "24h_volume"},
		DataFrom:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DataTo:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	res := &orchestrator.RunResult{
		RunID:        "run-1",
		RowsIn:       40,
		RowsKept:     35,
		RowsDropped:  5,
		BestModel:    "linear_regression",
		Version:      art.Version,
		ArtifactPath: "artifacts/linear_regression_8qz5vTest",
		Selection:    &selection.Result{BestName: "linear_regression", Report: folds},
	}
	return res, art
}

func TestGenerator_Generate(t *testing.T) {
	res, art := testRunResult()

	fixed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	report := NewGenerator().WithClock(func() time.Time { return fixed }).Generate(res, art)

	if report.GeneratedAt != fixed {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, fixed)
	}
	if report.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", report.RunID)
	}
	if report.DataSummary.RowsKept != 35 {
		t.Errorf("RowsKept = %d, want 35", report.DataSummary.RowsKept)
	}
	if !report.DataSummary.DataTo.Equal(art.DataTo) {
		t.Errorf("DataTo = %v, want %v", report.DataSummary.DataTo, art.DataTo)
	}
	if len(report.Folds) != 4 {
		t.Fatalf("Folds count = %d, want 4", len(report.Folds))
	}

	if len(report.Candidates) != 2 {
		t.Fatalf("Candidates count = %d, want 2", len(report.Candidates))
	}
	winner := report.Candidates[0]
	if winner.ModelName != "linear_regression" || !winner.Selected {
		t.Errorf("winner = %+v, want selected linear_regression first", winner)
	}
	if diff := winner.MeanRMSE - 0.15; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("winner MeanRMSE = %v, want 0.15", winner.MeanRMSE)
	}

	tree := report.Candidates[1]
	if tree.Folds != 2 || tree.FailedFolds != 1 {
		t.Errorf("tree folds = %d failed = %d, want 2/1", tree.Folds, tree.FailedFolds)
	}
	// Failed fold must not dilute the mean.
	if diff := tree.MeanRMSE - 0.40; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("tree MeanRMSE = %v, want 0.40", tree.MeanRMSE)
	}
}

func TestRenderMarkdown(t *testing.T) {
	res, art := testRunResult()
	report := NewGenerator().Generate(res, art)

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Training Report",
		"## Data Summary",
		"## Candidates",
		"## Fold Metrics",
		"## Artifact",
		"linear_regression",
		"failed: timeout",
		"8qz5vTest",
		"price, 24h_volume",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	res, _ := testRunResult()
	report := NewGenerator().Generate(res, nil)

	csv := RenderCSV(report.Folds)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 5 {
		t.Fatalf("CSV lines = %d, want header + 4 rows", len(lines))
	}
	if lines[0] != "model_name,fold,train_rows,val_rows,rmse,mae,r2,failed,reason" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[4], "true,timeout") {
		t.Errorf("failed fold row missing status: %s", lines[4])
	}
}

func TestGenerator_WriteFiles(t *testing.T) {
	res, art := testRunResult()
	report := NewGenerator().Generate(res, art)

	dir := filepath.Join(t.TempDir(), "reports")
	if err := NewGenerator().WriteFiles(dir, report); err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "TRAINING_REPORT.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.Contains(string(md), "# Training Report") {
		t.Error("markdown file missing header")
	}

	if _, err := os.Stat(filepath.Join(dir, "fold_metrics.csv")); err != nil {
		t.Errorf("fold_metrics.csv not written: %v", err)
	}
}
