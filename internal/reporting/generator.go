package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/orchestrator"
)

// Generator produces reports from training run results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report from one training run and its artifact.
func (g *Generator) Generate(res *orchestrator.RunResult, art *domain.Artifact) *Report {
	report := &Report{
		GeneratedAt: g.now(),
		RunID:       res.RunID,
		DataSummary: DataSummary{
			RowsIn:      res.RowsIn,
			RowsKept:    res.RowsKept,
			RowsDropped: res.RowsDropped,
		},
		Artifact: ArtifactSummary{
			ModelName: res.BestModel,
			Version:   res.Version,
			Path:      res.ArtifactPath,
		},
	}

	if art != nil {
		report.DataSummary.DataFrom = art.DataFrom
		report.DataSummary.DataTo = art.DataTo
		report.Artifact.Features = art.Features
	}

	if res.Selection != nil {
		report.Folds = res.Selection.Report
		report.Candidates = aggregateCandidates(res.Selection.Report, res.BestModel)
	}

	return report
}

// WriteFiles renders the report to TRAINING_REPORT.md and fold_metrics.csv
// in the output directory.
func (g *Generator) WriteFiles(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	mdPath := filepath.Join(dir, "TRAINING_REPORT.md")
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", mdPath, err)
	}

	csvPath := filepath.Join(dir, "fold_metrics.csv")
	if err := os.WriteFile(csvPath, []byte(RenderCSV(r.Folds)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", csvPath, err)
	}

	return nil
}

// aggregateCandidates computes per-candidate means over completed folds.
func aggregateCandidates(folds []domain.FoldMetrics, bestName string) []CandidateRow {
	byName := make(map[string]*CandidateRow)
	order := make([]string, 0)

	for _, f := range folds {
		row, ok := byName[f.ModelName]
		if !ok {
			row = &CandidateRow{ModelName: f.ModelName, Selected: f.ModelName == bestName}
			byName[f.ModelName] = row
			order = append(order, f.ModelName)
		}
		row.Folds++
		if f.Failed {
			row.FailedFolds++
			continue
		}
		row.MeanRMSE += f.RMSE
		row.MeanMAE += f.MAE
		row.MeanR2 += f.R2
	}

	rows := make([]CandidateRow, 0, len(order))
	for _, name := range order {
		row := byName[name]
		completed := row.Folds - row.FailedFolds
		if completed > 0 {
			row.MeanRMSE /= float64(completed)
			row.MeanMAE /= float64(completed)
			row.MeanR2 /= float64(completed)
		}
		rows = append(rows, *row)
	}

	// Winner first, then ascending mean RMSE; candidates with no completed
	// folds sink to the bottom.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Selected != rows[j].Selected {
			return rows[i].Selected
		}
		iCompleted := rows[i].Folds > rows[i].FailedFolds
		jCompleted := rows[j].Folds > rows[j].FailedFolds
		if iCompleted != jCompleted {
			return iCompleted
		}
		return rows[i].MeanRMSE < rows[j].MeanRMSE
	})

	return rows
}
