// Package model defines the closed set of candidate regressors.
// New estimator types are added by extending this variant set; nothing in
// the system relies on structural typing of arbitrary fit/predict objects.
package model

import (
	"errors"
	"fmt"
)

// Estimator families, used as the fixed tie-break priority order during
// selection: lower is preferred on equal scores.
const (
	FamilyLinear = iota
	FamilyTree
	FamilyOther
)

// Estimator names of the built-in variant set.
const (
	NameLinearRegression = "linear_regression"
	NameRidgeRegression  = "ridge_regression"
	NameRegressionTree   = "regression_tree"
)

// Factory errors.
var (
	ErrUnknownModelType = errors.New("unknown model type")
	ErrNoTrainingData   = errors.New("no training data")
	ErrDimensionMismatch = errors.New("feature/label dimension mismatch")
)

// Estimator fits a regressor to a feature matrix and a label vector.
// Fitting is deterministic: same inputs, same fitted parameters.
type Estimator interface {
	Name() string
	Family() int
	Fit(features [][]float64, labels []float64) (Fitted, error)
}

// Fitted is a trained regressor. Implementations are immutable after Fit
// and safe for concurrent Predict calls.
type Fitted interface {
	Predict(vector []float64) float64
	MarshalParams() ([]byte, error)
}

// Config selects and parameterizes one candidate estimator.
// Pointer fields are required per type, mirroring how optional parameters
// are validated elsewhere in the system.
type Config struct {
	ModelType string   `yaml:"model_type"`
	Alpha     *float64 `yaml:"alpha,omitempty"`         // ridge regularization strength
	MaxDepth  *int     `yaml:"max_depth,omitempty"`     // tree depth limit
	MinLeaf   *int     `yaml:"min_leaf_size,omitempty"` // tree minimum samples per leaf
}

// Parameter validation errors.
var (
	ErrMissingAlpha    = errors.New("ridge_regression requires alpha")
	ErrMissingMaxDepth = errors.New("regression_tree requires max_depth")
	ErrMissingMinLeaf  = errors.New("regression_tree requires min_leaf_size")
)

// FromConfig creates an Estimator from a candidate config.
// Returns clear errors for missing or invalid parameters.
func FromConfig(cfg Config) (Estimator, error) {
	switch cfg.ModelType {
	case NameLinearRegression:
		return NewLinearRegression(), nil
	case NameRidgeRegression:
		if cfg.Alpha == nil {
			return nil, ErrMissingAlpha
		}
		return NewRidgeRegression(*cfg.Alpha), nil
	case NameRegressionTree:
		if cfg.MaxDepth == nil {
			return nil, ErrMissingMaxDepth
		}
		if cfg.MinLeaf == nil {
			return nil, ErrMissingMinLeaf
		}
		return NewRegressionTree(*cfg.MaxDepth, *cfg.MinLeaf), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModelType, cfg.ModelType)
	}
}

// DefaultCandidates returns the standard candidate set used when no
// explicit configuration is supplied.
func DefaultCandidates() []Estimator {
	return []Estimator{
		NewLinearRegression(),
		NewRidgeRegression(1.0),
		NewRegressionTree(5, 5),
	}
}

// LoadFitted reconstructs a fitted model from its serialized parameters,
// as stored in an artifact.
func LoadFitted(name string, params []byte) (Fitted, error) {
	switch name {
	case NameLinearRegression, NameRidgeRegression:
		return loadLinearParams(params)
	case NameRegressionTree:
		return loadTreeParams(params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModelType, name)
	}
}

func checkDimensions(features [][]float64, labels []float64) error {
	if len(features) == 0 {
		return ErrNoTrainingData
	}
	if len(features) != len(labels) {
		return fmt.Errorf("%w: %d feature rows, %d labels", ErrDimensionMismatch, len(features), len(labels))
	}
	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, expected %d", ErrDimensionMismatch, i, len(row), width)
		}
	}
	return nil
}
