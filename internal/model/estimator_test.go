package model

import (
	"errors"
	"math"
	"testing"
)

func TestFromConfig_KnownTypes(t *testing.T) {
	alpha := 0.5
	depth, leaf := 4, 3

	cases := []struct {
		cfg    Config
		name   string
		family int
	}{
		{Config{ModelType: NameLinearRegression}, NameLinearRegression, FamilyLinear},
		{Config{ModelType: NameRidgeRegression, Alpha: &alpha}, NameRidgeRegression, FamilyLinear},
		{Config{ModelType: NameRegressionTree, MaxDepth: &depth, MinLeaf: &leaf}, NameRegressionTree, FamilyTree},
	}

	for _, tc := range cases {
		est, err := FromConfig(tc.cfg)
		if err != nil {
			t.Fatalf("FromConfig(%s) failed: %v", tc.cfg.ModelType, err)
		}
		if est.Name() != tc.name {
			t.Errorf("Expected name %s, got %s", tc.name, est.Name())
		}
		if est.Family() != tc.family {
			t.Errorf("Expected family %d, got %d", tc.family, est.Family())
		}
	}
}

func TestFromConfig_MissingParams(t *testing.T) {
	if _, err := FromConfig(Config{ModelType: NameRidgeRegression}); !errors.Is(err, ErrMissingAlpha) {
		t.Errorf("Expected ErrMissingAlpha, got %v", err)
	}
	if _, err := FromConfig(Config{ModelType: NameRegressionTree}); !errors.Is(err, ErrMissingMaxDepth) {
		t.Errorf("Expected ErrMissingMaxDepth, got %v", err)
	}
	if _, err := FromConfig(Config{ModelType: "perceptron"}); !errors.Is(err, ErrUnknownModelType) {
		t.Errorf("Expected ErrUnknownModelType, got %v", err)
	}
}

func TestLinearRegression_RecoversKnownCoefficients(t *testing.T) {
	// y = 2 + 3*x0 - x1, exactly.
	X := [][]float64{
		{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 1}, {3, 2},
	}
	y := make([]float64, len(X))
	for i, x := range X {
		y[i] = 2 + 3*x[0] - x[1]
	}

	fitted, err := NewLinearRegression().Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for i, x := range X {
		if got := fitted.Predict(x); math.Abs(got-y[i]) > 1e-8 {
			t.Errorf("Row %d: expected %f, got %f", i, y[i], got)
		}
	}
}

func TestLinearRegression_DeterministicFit(t *testing.T) {
	X := [][]float64{{1, 2}, {2, 3}, {3, 5}, {4, 4}}
	y := []float64{1, 2, 3, 4}

	first, err := NewLinearRegression().Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	second, err := NewLinearRegression().Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	p1, _ := first.MarshalParams()
	p2, _ := second.MarshalParams()
	if string(p1) != string(p2) {
		t.Error("Expected identical params across fits")
	}
}

func TestLinearRegression_SingularMatrix(t *testing.T) {
	// Perfectly collinear columns.
	X := [][]float64{{1, 2}, {2, 4}, {3, 6}}
	y := []float64{1, 2, 3}

	_, err := NewLinearRegression().Fit(X, y)
	if !errors.Is(err, ErrSingularMatrix) {
		t.Errorf("Expected ErrSingularMatrix, got %v", err)
	}

	// Ridge regularization makes the system solvable.
	if _, err := NewRidgeRegression(1.0).Fit(X, y); err != nil {
		t.Errorf("Ridge should handle collinearity, got %v", err)
	}
}

func TestRegressionTree_FitsStepFunction(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i)})
		if i < 10 {
			y = append(y, 1)
		} else {
			y = append(y, 5)
		}
	}

	fitted, err := NewRegressionTree(3, 2).Fit(X, y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if got := fitted.Predict([]float64{2}); got != 1 {
		t.Errorf("Expected 1 below the step, got %f", got)
	}
	if got := fitted.Predict([]float64{15}); got != 5 {
		t.Errorf("Expected 5 above the step, got %f", got)
	}
}

func TestFittedRoundTrip(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}, {9}, {10}}
	y := []float64{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}

	for _, est := range DefaultCandidates() {
		fitted, err := est.Fit(X, y)
		if err != nil {
			t.Fatalf("%s: Fit failed: %v", est.Name(), err)
		}
		params, err := fitted.MarshalParams()
		if err != nil {
			t.Fatalf("%s: MarshalParams failed: %v", est.Name(), err)
		}

		reloaded, err := LoadFitted(est.Name(), params)
		if err != nil {
			t.Fatalf("%s: LoadFitted failed: %v", est.Name(), err)
		}

		for _, x := range X {
			if a, b := fitted.Predict(x), reloaded.Predict(x); math.Abs(a-b) > 1e-12 {
				t.Errorf("%s: round-trip mismatch at %v: %f vs %f", est.Name(), x, a, b)
			}
		}
	}
}

func TestFit_DimensionChecks(t *testing.T) {
	if _, err := NewLinearRegression().Fit(nil, nil); !errors.Is(err, ErrNoTrainingData) {
		t.Errorf("Expected ErrNoTrainingData, got %v", err)
	}
	if _, err := NewLinearRegression().Fit([][]float64{{1}}, []float64{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}
