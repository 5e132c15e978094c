package domain

import "time"

// Artifact is the immutable output of one training run: the fitted
// estimator, the canonical feature order it was fitted against, the scaler
// parameters used for its labels, and the training metadata. Created once by
// the selector, then shared read-only by any number of inference callers.
type Artifact struct {
	ModelName    string          `json:"model_name"`
	Version      string          `json:"version"` // base58 content hash
	TrainedOn    time.Time       `json:"trained_on"`
	Features     []string        `json:"features"` // canonical order
	Scaler       ScalerParams    `json:"scaler"`
	Metrics      CandidateScore  `json:"metrics"`      // winner's aggregate metrics
	FoldMetrics  []FoldMetrics   `json:"fold_metrics"` // winner's per-fold metrics
	DataFrom     time.Time       `json:"data_from"`
	DataTo       time.Time       `json:"data_to"`
	ModelParams  []byte          `json:"-"` // estimator-specific JSON payload
	DefaultValue float64         `json:"default_value"` // substituted for missing features
}

// CandidateScore is a candidate's metrics aggregated as the mean across folds.
type CandidateScore struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// FoldMetrics is one append-only evaluation report entry: a candidate's
// scores on a single chronological fold. Never mutated after write.
type FoldMetrics struct {
	ModelName string  `json:"model_name"`
	Fold      int     `json:"fold"`
	TrainRows int     `json:"train_rows"`
	ValRows   int     `json:"val_rows"`
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2"`
	Failed    bool    `json:"failed"`
	Reason    string  `json:"reason,omitempty"`
}
