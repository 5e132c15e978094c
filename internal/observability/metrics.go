// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cleaning metrics
	RowsCleaned prometheus.Counter
	RowsDropped *prometheus.CounterVec
	RowsImputed prometheus.Counter

	// Training metrics
	TrainingRunsTotal prometheus.Counter
	FoldsEvaluated    *prometheus.CounterVec
	TrainingDuration  prometheus.Histogram
	CandidateRMSE     *prometheus.GaugeVec

	// Inference metrics
	PredictionsServed   *prometheus.CounterVec
	FeaturesSubstituted prometheus.Counter
	PredictionLatency   prometheus.Histogram

	// Database metrics
	DBQueryErrors *prometheus.CounterVec

	// Health metrics
	LastSuccessfulTraining prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered against reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_liquidity_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Cleaning metrics
		RowsCleaned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleaning",
			Name:      "rows_cleaned_total",
			Help:      "Total number of rows that survived cleaning",
		}),
		RowsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleaning",
			Name:      "rows_dropped_total",
			Help:      "Total number of rows dropped during cleaning by reason",
		}, []string{"reason"}),
		RowsImputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleaning",
			Name:      "rows_imputed_total",
			Help:      "Total number of rows with at least one filled value",
		}),

		// Training metrics
		TrainingRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Total number of training runs",
		}),
		FoldsEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "folds_evaluated_total",
			Help:      "Total number of candidate folds evaluated by status",
		}, []string{"model", "status"}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "duration_seconds",
			Help:      "Training run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		CandidateRMSE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "candidate_rmse",
			Help:      "Mean validation RMSE of the last run by candidate",
		}, []string{"model"}),

		// Inference metrics
		PredictionsServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "predictions_served_total",
			Help:      "Total number of predictions served by mode",
		}, []string{"mode"}),
		FeaturesSubstituted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "features_substituted_total",
			Help:      "Total number of missing features substituted with defaults",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "prediction_latency_seconds",
			Help:      "Prediction request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulTraining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_training_timestamp",
			Help:      "Unix timestamp of last successful training run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer, "")
