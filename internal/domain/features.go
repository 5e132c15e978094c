package domain

// Canonical feature names, in the single order shared by training and
// inference. The order is fixed here and persisted inside every artifact;
// nothing else in the system is allowed to define it.
const (
	FeaturePrice          = "price"
	FeatureChange1h       = "1h"
	FeatureChange24h      = "24h"
	FeatureChange7d       = "7d"
	FeatureVolume24h      = "24h_volume"
	FeatureMarketCap      = "mkt_cap"
	FeatureLiquidityRatio = "liquidity_ratio"
	FeaturePriceChange24h = "price_change_24h"
)

// CanonicalFeatureOrder returns a fresh copy of the canonical 8-feature
// order. Callers get their own slice so no shared state can be mutated.
func CanonicalFeatureOrder() []string {
	return []string{
		FeaturePrice,
		FeatureChange1h,
		FeatureChange24h,
		FeatureChange7d,
		FeatureVolume24h,
		FeatureMarketCap,
		FeatureLiquidityRatio,
		FeaturePriceChange24h,
	}
}

// FeatureRow is one engineered row: the canonical fixed-length vector plus
// auxiliary transform columns that are not part of the model input unless
// explicitly configured.
type FeatureRow struct {
	Key    RecordKey
	Vector []float64          // aligned with the FeatureSet's Order
	Aux    map[string]float64 // price_log, price_sqrt, mkt_cap_log, rolling aggregates

	// FlaggedZeroRatio marks rows where liquidity_ratio was forced to 0
	// because mkt_cap <= 0.
	FlaggedZeroRatio bool
}

// FeatureSet is the output of the feature builder: engineered rows in
// (coin, date) order plus the canonical feature order they follow.
type FeatureSet struct {
	Order []string
	Rows  []FeatureRow
}

// Matrix returns the feature vectors as a row-major matrix.
func (fs *FeatureSet) Matrix() [][]float64 {
	m := make([][]float64, len(fs.Rows))
	for i, row := range fs.Rows {
		m[i] = row.Vector
	}
	return m
}
