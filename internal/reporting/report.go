package reporting

import (
	"time"

	"crypto-liquidity-lab/internal/domain"
)

// Report represents one training run report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string

	// Data Summary
	DataSummary DataSummary

	// Candidate aggregates (sorted by mean RMSE over completed folds,
	// winner first)
	Candidates []CandidateRow

	// Per-fold evaluation entries, append-only order
	Folds []domain.FoldMetrics

	// Winning artifact
	Artifact ArtifactSummary
}

// DataSummary describes the data the run trained on.
type DataSummary struct {
	RowsIn      int
	RowsKept    int
	RowsDropped int
	DataFrom    time.Time
	DataTo      time.Time
}

// CandidateRow represents one candidate's metrics aggregated across folds.
type CandidateRow struct {
	ModelName   string
	Folds       int
	FailedFolds int
	MeanRMSE    float64
	MeanMAE     float64
	MeanR2      float64
	Selected    bool
}

// ArtifactSummary describes the persisted artifact.
type ArtifactSummary struct {
	ModelName string
	Version   string
	Path      string
	Features  []string
}
