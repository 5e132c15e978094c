package domain

import "time"

// Prediction is one served prediction, kept in the append-only history.
type Prediction struct {
	ID           string             // uuid
	Coin         string             // optional, history only
	Symbol       string             // optional, history only
	Features     map[string]float64 // inputs as supplied by the caller
	Score        float64
	ModelName    string
	ModelVersion string
	Mode         string // "single" | "batch"
	Timestamp    time.Time
}

// Prediction modes.
const (
	PredictionModeSingle = "single"
	PredictionModeBatch  = "batch"
)
