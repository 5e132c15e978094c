// Package labels computes the liquidity_score regression target.
//
// The score is a fixed composite of the volume/market-cap liquidity ratio
// and an Amihud-style illiquidity proxy:
//
//	amihud = |price_change_24h| / (1 + 24h_volume)
//	raw    = 0.5*mm(liquidity_ratio) + 0.3*mm(ln(1+24h_volume)) - 0.2*mm(amihud)
//	score  = mm(raw)
//
// where mm is min-max scaling. All min-max parameters are fit once on the
// training partition, persisted in ScalerParams, and reused verbatim
// afterwards; the same rows plus the same params always reproduce the same
// labels.
package labels

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"crypto-liquidity-lab/internal/domain"
)

// ErrInsufficientData is returned when a forward horizon looks past the end
// of a coin's series.
var ErrInsufficientData = errors.New("insufficient data for horizon")

// Composite weights of the score formula. Fixed, not configuration: changing
// them changes the meaning of every persisted label.
const (
	ratioWeight  = 0.5
	volumeWeight = 0.3
	amihudWeight = 0.2
)

// Build fits scaler parameters on the given rows and computes their labels.
// Call only on the training partition; use ApplyWith everywhere else.
func Build(fs *domain.FeatureSet) (*domain.LabelSet, error) {
	if len(fs.Rows) == 0 {
		return nil, fmt.Errorf("%w: empty feature set", ErrInsufficientData)
	}

	ratios, lnVols, amihuds := components(fs)

	params := domain.ScalerParams{}
	params.RatioMin, params.RatioMax = minMax(ratios)
	params.VolumeMin, params.VolumeMax = minMax(lnVols)
	params.AmihudMin, params.AmihudMax = minMax(amihuds)

	raws := make([]float64, len(fs.Rows))
	for i := range fs.Rows {
		raws[i] = rawScore(ratios[i], lnVols[i], amihuds[i], params)
	}
	params.ScoreMin, params.ScoreMax = minMax(raws)

	set := &domain.LabelSet{
		Keys:   make([]domain.RecordKey, len(fs.Rows)),
		Scores: make([]float64, len(fs.Rows)),
		Scaler: params,
	}
	for i, row := range fs.Rows {
		set.Keys[i] = row.Key
		set.Scores[i] = scale(raws[i], params.ScoreMin, params.ScoreMax)
	}
	return set, nil
}

// ApplyWith recomputes labels using previously fitted scaler parameters.
// Never refits: held-out and production rows are scored against the training
// ranges even when they fall outside them.
func ApplyWith(fs *domain.FeatureSet, params domain.ScalerParams) []float64 {
	ratios, lnVols, amihuds := components(fs)
	scores := make([]float64, len(fs.Rows))
	for i := range fs.Rows {
		raw := rawScore(ratios[i], lnVols[i], amihuds[i], params)
		scores[i] = scale(raw, params.ScoreMin, params.ScoreMax)
	}
	return scores
}

// BinaryConfig controls the optional binary low-liquidity label.
type BinaryConfig struct {
	// Percentile in (0, 1): the threshold is this percentile of the scaled
	// scores.
	Percentile float64
	// HorizonDays is the forward window h: a row is labeled 1 when any score
	// within the next h observations of the same coin falls below the
	// threshold.
	HorizonDays int
}

// BinaryLabel is one binary low-liquidity outcome.
type BinaryLabel struct {
	Key   domain.RecordKey
	Value int
}

// BuildBinary derives binary low-liquidity labels over a forward horizon.
// Returns ErrInsufficientData when any coin's series is not longer than the
// horizon. Rows whose forward window would cross the series end are skipped;
// every emitted label has a complete horizon.
func BuildBinary(set *domain.LabelSet, cfg BinaryConfig) ([]BinaryLabel, error) {
	if cfg.Percentile <= 0 || cfg.Percentile >= 1 {
		return nil, fmt.Errorf("percentile must be in (0,1), got %f", cfg.Percentile)
	}
	if cfg.HorizonDays <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", cfg.HorizonDays)
	}

	threshold := percentile(set.Scores, cfg.Percentile)

	// Group row indexes per coin, preserving the set's (coin, date) order.
	groups := make(map[string][]int)
	var coins []string
	for i, key := range set.Keys {
		if _, seen := groups[key.Coin]; !seen {
			coins = append(coins, key.Coin)
		}
		groups[key.Coin] = append(groups[key.Coin], i)
	}

	var out []BinaryLabel
	for _, coin := range coins {
		idxs := groups[coin]
		if len(idxs) <= cfg.HorizonDays {
			return nil, fmt.Errorf("%w: coin %s has %d rows, horizon %d", ErrInsufficientData, coin, len(idxs), cfg.HorizonDays)
		}
		for pos := 0; pos+cfg.HorizonDays < len(idxs); pos++ {
			value := 0
			for ahead := 1; ahead <= cfg.HorizonDays; ahead++ {
				if set.Scores[idxs[pos+ahead]] < threshold {
					value = 1
					break
				}
			}
			out = append(out, BinaryLabel{Key: set.Keys[idxs[pos]], Value: value})
		}
	}
	return out, nil
}

// components extracts the three score inputs per row, in feature-set order.
func components(fs *domain.FeatureSet) (ratios, lnVols, amihuds []float64) {
	ratioIdx := featureIndex(fs.Order, domain.FeatureLiquidityRatio)
	volIdx := featureIndex(fs.Order, domain.FeatureVolume24h)
	changeIdx := featureIndex(fs.Order, domain.FeaturePriceChange24h)

	n := len(fs.Rows)
	ratios = make([]float64, n)
	lnVols = make([]float64, n)
	amihuds = make([]float64, n)
	for i, row := range fs.Rows {
		vol := row.Vector[volIdx]
		ratios[i] = row.Vector[ratioIdx]
		lnVols[i] = math.Log1p(vol)
		amihuds[i] = math.Abs(row.Vector[changeIdx]) / (1 + vol)
	}
	return ratios, lnVols, amihuds
}

func rawScore(ratio, lnVol, amihud float64, p domain.ScalerParams) float64 {
	return ratioWeight*scale(ratio, p.RatioMin, p.RatioMax) +
		volumeWeight*scale(lnVol, p.VolumeMin, p.VolumeMax) -
		amihudWeight*scale(amihud, p.AmihudMin, p.AmihudMax)
}

// scale is min-max scaling. A degenerate range maps to 0.
func scale(x, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return (x - min) / (max - min)
}

func minMax(xs []float64) (float64, float64) {
	min, max := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

// percentile returns the p-quantile using nearest-rank on a sorted copy.
func percentile(xs []float64, p float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func featureIndex(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}
