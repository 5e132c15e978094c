package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"crypto-liquidity-lab/internal/audit"
	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/inference"
	"crypto-liquidity-lab/internal/storage"
)

// PredictRequest is the payload of POST /api/v1/predict.
type PredictRequest struct {
	Coin     string             `json:"coin"`
	Symbol   string             `json:"symbol"`
	Features map[string]float64 `json:"features" validate:"required,min=1"`
}

// BatchPredictRequest is the payload of POST /api/v1/predict/batch.
type BatchPredictRequest struct {
	Items []PredictRequest `json:"items" validate:"required,min=1,dive"`
}

// PredictResponse is one scored row.
type PredictResponse struct {
	ID             string  `json:"id"`
	Coin           string  `json:"coin,omitempty"`
	Symbol         string  `json:"symbol,omitempty"`
	LiquidityScore float64 `json:"liquidity_score"`
	Model          string  `json:"model"`
	ModelVersion   string  `json:"model_version"`
	Timestamp      string  `json:"timestamp"`
}

// BatchPredictResponse preserves the request order.
type BatchPredictResponse struct {
	Results []PredictResponse `json:"results"`
}

// ModelResponse is the active artifact metadata.
type ModelResponse struct {
	ModelName    string                `json:"model_name"`
	Version      string                `json:"version"`
	TrainedOn    time.Time             `json:"trained_on"`
	Features     []string              `json:"features"`
	Metrics      domain.CandidateScore `json:"metrics"`
	DataFrom     time.Time             `json:"data_from"`
	DataTo       time.Time             `json:"data_to"`
	DefaultValue float64               `json:"default_value"`
}

type errResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	started := time.Now()
	score, err := s.svc.Predict(req.Features)
	if err != nil {
		s.renderPredictError(w, r, err)
		return
	}
	s.metrics.PredictionLatency.Observe(time.Since(started).Seconds())
	s.metrics.PredictionsServed.WithLabelValues(domain.PredictionModeSingle).Inc()

	resp := s.record(r, req, score, domain.PredictionModeSingle)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPredictRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	batch := make([]map[string]float64, len(req.Items))
	for i, item := range req.Items {
		batch[i] = item.Features
	}

	started := time.Now()
	scores, err := s.svc.PredictBatch(batch)
	if err != nil {
		s.renderPredictError(w, r, err)
		return
	}
	s.metrics.PredictionLatency.Observe(time.Since(started).Seconds())
	s.metrics.PredictionsServed.WithLabelValues(domain.PredictionModeBatch).Add(float64(len(scores)))

	resp := BatchPredictResponse{Results: make([]PredictResponse, len(scores))}
	for i, score := range scores {
		resp.Results[i] = s.record(r, req.Items[i], score, domain.PredictionModeBatch)
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	a := s.svc.Artifact()
	render.JSON(w, r, ModelResponse{
		ModelName:    a.ModelName,
		Version:      a.Version,
		TrainedOn:    a.TrainedOn,
		Features:     a.Features,
		Metrics:      a.Metrics,
		DataFrom:     a.DataFrom,
		DataTo:       a.DataTo,
		DefaultValue: a.DefaultValue,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.predictions == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errResponse{Error: "prediction history not configured"})
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	history, err := s.predictions.GetRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("history query failed")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errResponse{Error: "internal error"})
		return
	}
	if history == nil {
		history = []*domain.Prediction{}
	}
	render.JSON(w, r, history)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":        "ok",
		"model":         s.svc.Artifact().ModelName,
		"model_version": s.svc.Artifact().Version,
	})
}

// record persists and broadcasts one served prediction, returning the
// response row.
func (s *Server) record(r *http.Request, req PredictRequest, score float64, mode string) PredictResponse {
	a := s.svc.Artifact()
	p := &domain.Prediction{
		ID:           uuid.NewString(),
		Coin:         req.Coin,
		Symbol:       req.Symbol,
		Features:     req.Features,
		Score:        score,
		ModelName:    a.ModelName,
		ModelVersion: a.Version,
		Mode:         mode,
		Timestamp:    time.Now().UTC(),
	}

	if s.predictions != nil {
		if err := s.predictions.Insert(r.Context(), p); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			s.logger.Error().Err(err).Str("id", p.ID).Msg("prediction history insert failed")
		}
	}
	if s.auditLog != nil {
		if err := s.auditLog.Append(audit.Entry{
			Event: audit.EventPredictionServed,
			Coin:  p.Coin,
			Details: map[string]any{
				"id":    p.ID,
				"score": p.Score,
				"model": p.ModelName,
				"mode":  p.Mode,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("audit append failed")
		}
	}
	s.hub.Broadcast(p)

	return PredictResponse{
		ID:             p.ID,
		Coin:           p.Coin,
		Symbol:         p.Symbol,
		LiquidityScore: p.Score,
		Model:          p.ModelName,
		ModelVersion:   p.ModelVersion,
		Timestamp:      p.Timestamp.Format(time.RFC3339Nano),
	}
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: "malformed JSON body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: "invalid request: " + validationSummary(err)})
		return false
	}
	return true
}

// renderPredictError translates service errors into short, non-leaking
// responses; the full error stays in the logs.
func (s *Server) renderPredictError(w http.ResponseWriter, r *http.Request, err error) {
	var mismatch *inference.FeatureMismatchError
	if errors.As(err, &mismatch) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: mismatch.Error()})
		return
	}

	s.logger.Error().Err(err).Msg("prediction failed")
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errResponse{Error: "internal error"})
}

func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation failed"
	}
	// First failure is enough for the caller to act on.
	f := verrs[0]
	return f.Namespace() + " failed on " + f.Tag()
}
