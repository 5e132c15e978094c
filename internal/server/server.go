// Package server exposes the prediction service over HTTP: REST endpoints
// for scoring and model metadata, a websocket feed of prediction events for
// the interactive UI, and Prometheus metrics.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"crypto-liquidity-lab/internal/audit"
	"crypto-liquidity-lab/internal/inference"
	"crypto-liquidity-lab/internal/observability"
	"crypto-liquidity-lab/internal/storage"
)

// Server wires the inference service to its HTTP surface.
type Server struct {
	svc         *inference.Service
	predictions storage.PredictionStore
	auditLog    *audit.Log
	hub         *Hub
	logger      zerolog.Logger
	metrics     *observability.Metrics
	validate    *validator.Validate
}

// Options for creating a Server. PredictionStore and AuditLog are optional;
// nil disables history persistence and the audit trail respectively.
type Options struct {
	Service         *inference.Service
	PredictionStore storage.PredictionStore
	AuditLog        *audit.Log
	Logger          zerolog.Logger
	Metrics         *observability.Metrics
}

// New creates a new Server. The websocket hub starts immediately.
func New(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}

	s := &Server{
		svc:         opts.Service,
		predictions: opts.PredictionStore,
		auditLog:    opts.AuditLog,
		hub:         NewHub(opts.Logger),
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		validate:    validator.New(),
	}
	go s.hub.Run()
	return s
}

// Router builds the HTTP routing table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/predict", s.handlePredict)
		r.Post("/predict/batch", s.handlePredictBatch)
		r.Get("/model", s.handleModel)
		r.Get("/history", s.handleHistory)
		r.Get("/health", s.handleHealth)
	})

	r.Get("/ws/predictions", s.handleWS)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	return r
}

// Close stops the websocket hub.
func (s *Server) Close() {
	s.hub.Stop()
}
