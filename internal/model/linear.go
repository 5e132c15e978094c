package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSingularMatrix is returned when the normal equations cannot be solved,
// typically from perfectly collinear features with no regularization.
var ErrSingularMatrix = errors.New("singular design matrix")

// LinearRegression is ordinary least squares, solved in closed form via the
// normal equations. Deterministic: no iterative optimization, no seeds.
type LinearRegression struct {
	alpha  float64
	name   string
	family int
}

// NewLinearRegression creates an OLS estimator.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{alpha: 0, name: NameLinearRegression, family: FamilyLinear}
}

// NewRidgeRegression creates an L2-regularized linear estimator. The
// intercept is not penalized.
func NewRidgeRegression(alpha float64) *LinearRegression {
	return &LinearRegression{alpha: alpha, name: NameRidgeRegression, family: FamilyLinear}
}

func (e *LinearRegression) Name() string { return e.name }

func (e *LinearRegression) Family() int { return e.family }

// Fit solves (XᵀX + αI)β = Xᵀy with an intercept column.
func (e *LinearRegression) Fit(features [][]float64, labels []float64) (Fitted, error) {
	if err := checkDimensions(features, labels); err != nil {
		return nil, err
	}

	n := len(features)
	p := len(features[0]) + 1 // intercept first

	// Gram matrix XᵀX and moment vector Xᵀy, with the implicit leading 1.
	gram := make([][]float64, p)
	for i := range gram {
		gram[i] = make([]float64, p)
	}
	moment := make([]float64, p)

	for r := 0; r < n; r++ {
		xi := make([]float64, p)
		xi[0] = 1
		copy(xi[1:], features[r])
		for i := 0; i < p; i++ {
			moment[i] += xi[i] * labels[r]
			for j := 0; j < p; j++ {
				gram[i][j] += xi[i] * xi[j]
			}
		}
	}

	// Ridge penalty on everything but the intercept.
	for i := 1; i < p; i++ {
		gram[i][i] += e.alpha
	}

	beta, err := solve(gram, moment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	return &linearFitted{
		ModelName: e.name,
		Intercept: beta[0],
		Weights:   beta[1:],
	}, nil
}

// linearFitted is a trained linear model. Immutable after Fit.
type linearFitted struct {
	ModelName string    `json:"model_name"`
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
}

func (m *linearFitted) Predict(vector []float64) float64 {
	score := m.Intercept
	for i, w := range m.Weights {
		if i < len(vector) {
			score += w * vector[i]
		}
	}
	return score
}

func (m *linearFitted) MarshalParams() ([]byte, error) {
	return json.Marshal(m)
}

func loadLinearParams(params []byte) (Fitted, error) {
	var m linearFitted
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, fmt.Errorf("decode linear params: %w", err)
	}
	return &m, nil
}

// solve performs Gaussian elimination with partial pivoting on a copy of
// the inputs. Returns ErrSingularMatrix when a pivot vanishes.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	for i := range a {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(m[r][col]) > abs(m[pivot][col]) {
				pivot = r
			}
		}
		if abs(m[pivot][col]) < 1e-12 {
			return nil, ErrSingularMatrix
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
