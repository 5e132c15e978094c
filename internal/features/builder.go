// Package features derives the engineered columns consumed by training and
// inference and fixes the canonical feature order. Building is idempotent:
// the same cleaned dataset always yields bit-identical output.
package features

import (
	"math"
	"sort"

	"crypto-liquidity-lab/internal/domain"
)

// Auxiliary column names. These are monotonic transforms kept alongside the
// canonical vector; they enter the model input only if explicitly configured.
const (
	AuxPriceLog     = "price_log"
	AuxPriceSqrt    = "price_sqrt"
	AuxMarketCapLog = "mkt_cap_log"
	AuxPriceRolling = "price_rolling_mean"
)

// Config controls optional feature construction.
type Config struct {
	// RollingWindow is the causal moving-average window in observations.
	// Default 7.
	RollingWindow int
}

// DefaultConfig returns the standard feature configuration.
func DefaultConfig() Config {
	return Config{RollingWindow: 7}
}

// Build derives the engineered feature set from cleaned records.
// Rows come out in (coin, date) order regardless of input order.
//
// liquidity_ratio is recomputed as 24h_volume / mkt_cap with safe-divide
// semantics: 0 plus a flag when mkt_cap <= 0, never a division fault.
func Build(dataset *domain.Dataset, cfg Config) *domain.FeatureSet {
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = DefaultConfig().RollingWindow
	}

	records := make([]domain.Record, len(dataset.Records))
	copy(records, dataset.Records)
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Coin != records[j].Coin {
			return records[i].Coin < records[j].Coin
		}
		return records[i].Date.Before(records[j].Date)
	})

	fs := &domain.FeatureSet{
		Order: domain.CanonicalFeatureOrder(),
		Rows:  make([]domain.FeatureRow, 0, len(records)),
	}

	// Rolling state per coin group. Records are grouped after sorting, so a
	// coin change resets the window.
	var (
		currentCoin string
		window      []float64
	)

	for _, r := range records {
		if r.Coin != currentCoin {
			currentCoin = r.Coin
			window = window[:0]
		}

		ratio, flagged := SafeRatio(r.Volume24h, r.MarketCap)

		// Causal window: value at t uses observations at dates <= t only.
		window = append(window, r.Price)
		if len(window) > cfg.RollingWindow {
			window = window[1:]
		}

		row := domain.FeatureRow{
			Key: r.Key(),
			Vector: []float64{
				r.Price,
				r.Change1h,
				r.Change24h,
				r.Change7d,
				r.Volume24h,
				r.MarketCap,
				ratio,
				r.PriceChange24h,
			},
			Aux: map[string]float64{
				AuxPriceLog:     math.Log1p(r.Price),
				AuxPriceSqrt:    math.Sqrt(math.Max(r.Price, 0)),
				AuxMarketCapLog: math.Log1p(r.MarketCap),
				AuxPriceRolling: mean(window),
			},
			FlaggedZeroRatio: flagged,
		}
		fs.Rows = append(fs.Rows, row)
	}

	return fs
}

// SafeRatio computes volume / marketCap. When marketCap <= 0 the result is
// defined as 0 and flagged rather than raising a division fault.
func SafeRatio(volume, marketCap float64) (float64, bool) {
	if marketCap <= 0 {
		return 0, true
	}
	return volume / marketCap, false
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
