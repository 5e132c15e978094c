package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-liquidity-lab/internal/model"
)

// stubEstimator predicts a constant, giving a controllable RMSE against a
// constant truth vector.
type stubEstimator struct {
	name     string
	family   int
	constant float64
	fitErr   error
	delay    time.Duration
}

func (s *stubEstimator) Name() string { return s.name }

func (s *stubEstimator) Family() int { return s.family }

func (s *stubEstimator) Fit(features [][]float64, labels []float64) (model.Fitted, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fitErr != nil {
		return nil, s.fitErr
	}
	return &stubFitted{constant: s.constant}, nil
}

type stubFitted struct{ constant float64 }

func (s *stubFitted) Predict([]float64) float64 { return s.constant }

func (s *stubFitted) MarshalParams() ([]byte, error) { return []byte(`{}`), nil }

func fixture(n int) ([][]float64, []float64, []time.Time) {
	features := make([][]float64, n)
	labels := make([]float64, n)
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		features[i] = []float64{float64(i)}
		labels[i] = 1.0 // constant truth
		dates[i] = day(i + 1)
	}
	return features, labels, dates
}

func testConfig() Config {
	return Config{Folds: 2, MinFoldRows: 2, FoldTimeout: 5 * time.Second, Workers: 2}
}

func TestSelectBest_LowestRMSEWins(t *testing.T) {
	features, labels, dates := fixture(12)

	// A predicts 1.01 (RMSE 0.01), B predicts 1.02 (RMSE 0.02).
	a := &stubEstimator{name: "model_a", family: model.FamilyOther, constant: 1.01}
	b := &stubEstimator{name: "model_b", family: model.FamilyOther, constant: 1.02}

	for run := 0; run < 5; run++ {
		result, err := SelectBest(context.Background(), features, labels, dates,
			[]model.Estimator{b, a}, testConfig())
		if err != nil {
			t.Fatalf("SelectBest failed: %v", err)
		}
		if result.BestName != "model_a" {
			t.Fatalf("Run %d: expected model_a, got %s", run, result.BestName)
		}
	}
}

func TestSelectBest_TieBreakByFamily(t *testing.T) {
	features, labels, dates := fixture(12)

	// Identical scores; the linear-family candidate must win.
	tree := &stubEstimator{name: "a_tree", family: model.FamilyTree, constant: 1.01}
	linear := &stubEstimator{name: "z_linear", family: model.FamilyLinear, constant: 1.01}

	result, err := SelectBest(context.Background(), features, labels, dates,
		[]model.Estimator{tree, linear}, testConfig())
	if err != nil {
		t.Fatalf("SelectBest failed: %v", err)
	}
	if result.BestName != "z_linear" {
		t.Errorf("Expected linear family to win tie, got %s", result.BestName)
	}
}

func TestSelectBest_FailedCandidateSkipped(t *testing.T) {
	features, labels, dates := fixture(12)

	broken := &stubEstimator{name: "broken", family: model.FamilyLinear, fitErr: errors.New("boom")}
	ok := &stubEstimator{name: "ok", family: model.FamilyOther, constant: 1.05}

	result, err := SelectBest(context.Background(), features, labels, dates,
		[]model.Estimator{broken, ok}, testConfig())
	if err != nil {
		t.Fatalf("SelectBest failed: %v", err)
	}
	if result.BestName != "ok" {
		t.Errorf("Expected ok to win over broken, got %s", result.BestName)
	}

	// The report still carries the failed folds.
	brokenFolds := 0
	for _, fm := range result.Report {
		if fm.ModelName == "broken" && fm.Failed {
			brokenFolds++
		}
	}
	if brokenFolds != 2 {
		t.Errorf("Expected 2 failed fold entries for broken, got %d", brokenFolds)
	}
}

func TestSelectBest_FoldTimeoutMarksFailed(t *testing.T) {
	features, labels, dates := fixture(12)

	slow := &stubEstimator{name: "slow", family: model.FamilyLinear, constant: 1.0, delay: 200 * time.Millisecond}
	fast := &stubEstimator{name: "fast", family: model.FamilyOther, constant: 1.05}

	cfg := testConfig()
	cfg.FoldTimeout = 20 * time.Millisecond

	result, err := SelectBest(context.Background(), features, labels, dates,
		[]model.Estimator{slow, fast}, cfg)
	if err != nil {
		t.Fatalf("SelectBest failed: %v", err)
	}
	if result.BestName != "fast" {
		t.Errorf("Expected fast to win after slow timed out, got %s", result.BestName)
	}
	for _, fm := range result.Report {
		if fm.ModelName == "slow" && !fm.Failed {
			t.Errorf("Expected slow folds marked failed")
		}
	}
}

func TestSelectBest_AllFailed(t *testing.T) {
	features, labels, dates := fixture(12)

	broken := &stubEstimator{name: "broken", family: model.FamilyLinear, fitErr: errors.New("boom")}

	_, err := SelectBest(context.Background(), features, labels, dates,
		[]model.Estimator{broken}, testConfig())
	if !errors.Is(err, ErrNoViableCandidate) {
		t.Errorf("Expected ErrNoViableCandidate, got %v", err)
	}
}

func TestSelectBest_PropagatesTrainingDataError(t *testing.T) {
	features, labels, dates := fixture(6)

	cfg := testConfig()
	cfg.MinFoldRows = 10

	_, err := SelectBest(context.Background(), features, labels, dates,
		[]model.Estimator{&stubEstimator{name: "a", constant: 1}}, cfg)
	var tdErr *TrainingDataError
	if !errors.As(err, &tdErr) {
		t.Errorf("Expected TrainingDataError, got %v", err)
	}
}

func TestSelectBest_RealEstimatorsEndToEnd(t *testing.T) {
	n := 30
	features := make([][]float64, n)
	labels := make([]float64, n)
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		features[i] = []float64{x}
		labels[i] = 0.5 + 0.1*x // exactly linear
		dates[i] = day(i + 1)
	}

	cfg := Config{Folds: 3, MinFoldRows: 3, FoldTimeout: 10 * time.Second, Workers: 2}
	result, err := SelectBest(context.Background(), features, labels, dates,
		model.DefaultCandidates(), cfg)
	if err != nil {
		t.Fatalf("SelectBest failed: %v", err)
	}
	// A perfectly linear target must be won by a linear-family model.
	if result.BestName != model.NameLinearRegression {
		t.Errorf("Expected linear_regression on linear data, got %s", result.BestName)
	}
	if result.BestFitted == nil {
		t.Fatal("Expected refit winner model")
	}
}
