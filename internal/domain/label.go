package domain

// ScalerParams holds the min-max ranges fit on the training partition and
// reused verbatim at inference and evaluation time. Refitting on held-out or
// production data is a contract violation.
type ScalerParams struct {
	RatioMin  float64 `json:"ratio_min"`
	RatioMax  float64 `json:"ratio_max"`
	VolumeMin float64 `json:"volume_min"` // over ln(1 + 24h_volume)
	VolumeMax float64 `json:"volume_max"`
	AmihudMin float64 `json:"amihud_min"`
	AmihudMax float64 `json:"amihud_max"`
	ScoreMin  float64 `json:"score_min"` // over the raw composite score
	ScoreMax  float64 `json:"score_max"`
}

// LabelSet pairs each feature row key with its liquidity score. Order
// matches the FeatureSet the labels were built from.
type LabelSet struct {
	Keys   []RecordKey
	Scores []float64
	Scaler ScalerParams
}
