package selection

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/model"
)

// ErrNoViableCandidate is returned when every candidate failed on every fold.
var ErrNoViableCandidate = errors.New("no candidate produced a usable score")

// Config controls model selection.
type Config struct {
	Folds       int           // number of rolling-origin folds, default 5
	MinFoldRows int           // minimum rows per train/val partition, default 10
	FoldTimeout time.Duration // per-fold fit+score budget, default 30s
	Workers     int           // parallel fold evaluators, default NumCPU
}

// DefaultConfig returns the standard selection configuration.
func DefaultConfig() Config {
	return Config{
		Folds:       5,
		MinFoldRows: 10,
		FoldTimeout: 30 * time.Second,
		Workers:     runtime.NumCPU(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Folds <= 0 {
		c.Folds = d.Folds
	}
	if c.MinFoldRows <= 0 {
		c.MinFoldRows = d.MinFoldRows
	}
	if c.FoldTimeout <= 0 {
		c.FoldTimeout = d.FoldTimeout
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// Result is the outcome of one selection run.
type Result struct {
	BestName   string
	BestFitted model.Fitted          // refit on the full dataset
	BestScore  domain.CandidateScore // mean across folds
	BestFolds  []domain.FoldMetrics  // winner's per-fold entries
	Report     []domain.FoldMetrics  // all candidates, all folds, append-only order
}

// SelectBest evaluates candidates over rolling-origin folds and picks the
// winner: lowest mean RMSE, exact ties broken by family priority (linear
// before tree before other) then name. The winner is refit on the full
// dataset for the final artifact.
//
// Folds run in parallel workers over read-only shared input; each fold has a
// bounded timeout past which that candidate's fold is marked failed without
// aborting the run.
func SelectBest(
	ctx context.Context,
	features [][]float64,
	labels []float64,
	dates []time.Time,
	candidates []model.Estimator,
	cfg Config,
) (*Result, error) {
	cfg = cfg.withDefaults()
	if len(candidates) == 0 {
		return nil, errors.New("no candidate estimators")
	}
	if len(features) != len(labels) || len(features) != len(dates) {
		return nil, fmt.Errorf("features/labels/dates length mismatch: %d/%d/%d", len(features), len(labels), len(dates))
	}

	folds, err := Splits(dates, cfg.Folds, cfg.MinFoldRows)
	if err != nil {
		return nil, err
	}

	type task struct {
		candidate int
		fold      int
	}
	tasks := make(chan task)
	results := make([][]domain.FoldMetrics, len(candidates))
	for i := range results {
		results[i] = make([]domain.FoldMetrics, len(folds))
	}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results[t.candidate][t.fold] = evaluateFold(
					ctx, candidates[t.candidate], folds[t.fold], features, labels, cfg.FoldTimeout,
				)
			}
		}()
	}
	for c := range candidates {
		for f := range folds {
			tasks <- task{candidate: c, fold: f}
		}
	}
	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	for c := range candidates {
		result.Report = append(result.Report, results[c]...)
	}

	winner := pickWinner(candidates, results)
	if winner < 0 {
		return nil, ErrNoViableCandidate
	}

	fitted, err := candidates[winner].Fit(features, labels)
	if err != nil {
		return nil, fmt.Errorf("refit winner %s: %w", candidates[winner].Name(), err)
	}

	result.BestName = candidates[winner].Name()
	result.BestFitted = fitted
	result.BestScore = aggregate(results[winner])
	result.BestFolds = results[winner]
	return result, nil
}

// evaluateFold fits a candidate on the fold's training partition and scores
// it on the validation partition. The fit runs under a bounded timeout; a
// timeout or fit error marks the fold failed without failing the run.
func evaluateFold(
	ctx context.Context,
	candidate model.Estimator,
	fold Fold,
	features [][]float64,
	labels []float64,
	timeout time.Duration,
) domain.FoldMetrics {
	entry := domain.FoldMetrics{
		ModelName: candidate.Name(),
		Fold:      fold.Index,
		TrainRows: len(fold.Train),
		ValRows:   len(fold.Val),
	}

	trainX, trainY := gather(features, labels, fold.Train)
	valX, valY := gather(features, labels, fold.Val)

	foldCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type fitResult struct {
		fitted model.Fitted
		err    error
	}
	done := make(chan fitResult, 1)
	go func() {
		fitted, err := candidate.Fit(trainX, trainY)
		done <- fitResult{fitted: fitted, err: err}
	}()

	select {
	case <-foldCtx.Done():
		entry.Failed = true
		entry.Reason = "timeout"
		return entry
	case r := <-done:
		if r.err != nil {
			entry.Failed = true
			entry.Reason = r.err.Error()
			return entry
		}
		pred := make([]float64, len(valX))
		for i, x := range valX {
			pred[i] = r.fitted.Predict(x)
		}
		entry.RMSE = RMSE(pred, valY)
		entry.MAE = MAE(pred, valY)
		entry.R2 = R2(pred, valY)
		return entry
	}
}

// pickWinner returns the index of the best candidate, or -1 when none has a
// usable score. Candidates with any failed fold are only considered after
// every fully-scored candidate.
func pickWinner(candidates []model.Estimator, results [][]domain.FoldMetrics) int {
	type ranked struct {
		idx        int
		failed     int
		rmse       float64
		family     int
		name       string
		allFailed  bool
	}
	var rank []ranked
	for c := range candidates {
		r := ranked{idx: c, family: candidates[c].Family(), name: candidates[c].Name()}
		ok := 0
		for _, fm := range results[c] {
			if fm.Failed {
				r.failed++
				continue
			}
			r.rmse += fm.RMSE
			ok++
		}
		if ok == 0 {
			r.allFailed = true
		} else {
			r.rmse /= float64(ok)
		}
		rank = append(rank, r)
	}

	sort.SliceStable(rank, func(i, j int) bool {
		a, b := rank[i], rank[j]
		if a.allFailed != b.allFailed {
			return !a.allFailed
		}
		if a.failed != b.failed {
			return a.failed < b.failed
		}
		if a.rmse != b.rmse {
			return a.rmse < b.rmse
		}
		if a.family != b.family {
			return a.family < b.family
		}
		return a.name < b.name
	})

	if len(rank) == 0 || rank[0].allFailed {
		return -1
	}
	return rank[0].idx
}

// aggregate computes the mean metrics across non-failed folds.
func aggregate(folds []domain.FoldMetrics) domain.CandidateScore {
	var score domain.CandidateScore
	n := 0
	for _, fm := range folds {
		if fm.Failed {
			continue
		}
		score.RMSE += fm.RMSE
		score.MAE += fm.MAE
		score.R2 += fm.R2
		n++
	}
	if n > 0 {
		score.RMSE /= float64(n)
		score.MAE /= float64(n)
		score.R2 /= float64(n)
	}
	return score
}

func gather(features [][]float64, labels []float64, idx []int) ([][]float64, []float64) {
	X := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, row := range idx {
		X[i] = features[row]
		y[i] = labels[row]
	}
	return X, y
}
