// Package inference reproduces the exact feature vector ordering stored in
// a trained artifact and serves predictions against it. The service never
// mutates the artifact and is safe for unlimited concurrent callers.
package inference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/model"
	"crypto-liquidity-lab/internal/observability"
)

// FeatureMismatchError reports features supplied by a caller that the
// artifact does not recognize. Raised only in strict mode; otherwise
// unknown fields are ignored.
type FeatureMismatchError struct {
	Unknown []string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("unknown features: %s", strings.Join(e.Unknown, ", "))
}

// Config controls request handling.
type Config struct {
	// Strict rejects requests carrying unknown feature names.
	Strict bool
	// Default overrides the artifact's default value substituted for
	// missing features. Nil keeps the artifact's value.
	Default *float64
	// Metrics overrides the default metrics registry.
	Metrics *observability.Metrics
}

// Service answers predictions for one immutable artifact.
type Service struct {
	artifact *domain.Artifact
	fitted   model.Fitted
	logger   zerolog.Logger
	metrics  *observability.Metrics
	strict   bool
	fallback float64
	known    map[string]bool
}

// New builds a service around a loaded artifact.
func New(a *domain.Artifact, logger zerolog.Logger, cfg Config) (*Service, error) {
	fitted, err := model.LoadFitted(a.ModelName, a.ModelParams)
	if err != nil {
		return nil, fmt.Errorf("load artifact model: %w", err)
	}

	known := make(map[string]bool, len(a.Features))
	for _, f := range a.Features {
		known[f] = true
	}

	fallback := a.DefaultValue
	if cfg.Default != nil {
		fallback = *cfg.Default
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.DefaultMetrics
	}

	return &Service{
		artifact: a,
		fitted:   fitted,
		logger:   logger,
		metrics:  cfg.Metrics,
		strict:   cfg.Strict,
		fallback: fallback,
		known:    known,
	}, nil
}

// Artifact returns the artifact this service predicts with.
func (s *Service) Artifact() *domain.Artifact { return s.artifact }

// Predict scores a single record supplied as a feature-name to value
// mapping. Field order in the input is irrelevant; the vector is rebuilt in
// the artifact's canonical order.
func (s *Service) Predict(features map[string]float64) (float64, error) {
	vector, err := s.vector(features)
	if err != nil {
		return 0, err
	}
	return s.fitted.Predict(vector), nil
}

// PredictBatch scores records in input order. The whole batch fails on the
// first mismatch in strict mode; nothing is partially returned.
func (s *Service) PredictBatch(batch []map[string]float64) ([]float64, error) {
	scores := make([]float64, len(batch))
	for i, features := range batch {
		score, err := s.Predict(features)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		scores[i] = score
	}
	return scores, nil
}

// vector rebuilds the canonical feature vector. Missing features are
// substituted with the configured default after a logged warning; the
// substitution is observable, never a silent zero-fill.
func (s *Service) vector(features map[string]float64) ([]float64, error) {
	if s.strict {
		var unknown []string
		for name := range features {
			if !s.known[name] {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, &FeatureMismatchError{Unknown: unknown}
		}
	}

	vector := make([]float64, len(s.artifact.Features))
	for i, name := range s.artifact.Features {
		value, ok := features[name]
		if !ok {
			s.logger.Warn().
				Str("feature", name).
				Float64("default", s.fallback).
				Str("model", s.artifact.ModelName).
				Str("model_version", s.artifact.Version).
				Msg("missing feature substituted with default")
			s.metrics.FeaturesSubstituted.Inc()
			value = s.fallback
		}
		vector[i] = value
	}
	return vector, nil
}
