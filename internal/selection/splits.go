// Package selection trains candidate regressors under rolling-origin
// chronological splitting and deterministically picks one best model.
package selection

import (
	"fmt"
	"sort"
	"time"
)

// TrainingDataError reports a fold below the configured minimum row count.
// It aborts split construction: selection never silently trains on too
// little data.
type TrainingDataError struct {
	Fold    int
	Rows    int
	MinRows int
}

func (e *TrainingDataError) Error() string {
	return fmt.Sprintf("fold %d has %d rows, minimum is %d", e.Fold, e.Rows, e.MinRows)
}

// Fold holds row indexes for one chronological split. Train and Val are
// disjoint; every validation date is strictly later than every train date.
type Fold struct {
	Index int
	Train []int
	Val   []int
}

// Splits builds expanding-window rolling-origin folds over row dates.
//
// The distinct dates are cut into folds+1 contiguous blocks; fold i trains
// on blocks 0..i and validates on block i+1. Cutting on date boundaries
// keeps max(train dates) < min(validation dates) even when several coins
// share a date.
func Splits(dates []time.Time, folds, minRows int) ([]Fold, error) {
	if folds < 1 {
		return nil, fmt.Errorf("folds must be positive, got %d", folds)
	}

	unique := uniqueSorted(dates)
	if len(unique) < folds+1 {
		return nil, fmt.Errorf("need at least %d distinct dates for %d folds, have %d", folds+1, folds, len(unique))
	}

	// Block b covers unique[b*size : (b+1)*size), last block absorbs the tail.
	blocks := folds + 1
	size := len(unique) / blocks
	blockOf := make(map[time.Time]int, len(unique))
	for i, d := range unique {
		b := i / size
		if b >= blocks {
			b = blocks - 1
		}
		blockOf[d] = b
	}

	out := make([]Fold, folds)
	for f := 0; f < folds; f++ {
		out[f].Index = f
		for row, d := range dates {
			switch b := blockOf[d]; {
			case b <= f:
				out[f].Train = append(out[f].Train, row)
			case b == f+1:
				out[f].Val = append(out[f].Val, row)
			}
		}
		if len(out[f].Train) < minRows {
			return nil, &TrainingDataError{Fold: f, Rows: len(out[f].Train), MinRows: minRows}
		}
		if len(out[f].Val) < minRows {
			return nil, &TrainingDataError{Fold: f, Rows: len(out[f].Val), MinRows: minRows}
		}
	}
	return out, nil
}

func uniqueSorted(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	var unique []time.Time
	for _, d := range dates {
		if !seen[d] {
			seen[d] = true
			unique = append(unique, d)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Before(unique[j]) })
	return unique
}
