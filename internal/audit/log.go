// Package audit provides an append-only JSON-lines trail of pipeline
// decisions: dropped rows, fold evaluations, served predictions.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types recorded in the trail.
const (
	EventRunStarted       = "run_started"
	EventRunCompleted     = "run_completed"
	EventRowDropped       = "row_dropped"
	EventFoldEvaluated    = "fold_evaluated"
	EventArtifactSaved    = "artifact_saved"
	EventPredictionServed = "prediction_served"
)

// Entry is a single audit record.
type Entry struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"time"`
	Event   string         `json:"event"`
	RunID   string         `json:"run_id,omitempty"`
	Coin    string         `json:"coin,omitempty"`
	Date    string         `json:"date,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Log is an append-only JSON-lines audit log. Appends are serialized, so a
// single Log can be shared across goroutines.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
}

// Open opens (or creates) an audit log file for appending.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	l := NewWriter(f)
	l.closer = f
	return l, nil
}

// NewWriter creates a log that appends to an arbitrary writer.
func NewWriter(w io.Writer) *Log {
	return &Log{w: w, now: time.Now}
}

// Append writes one entry as a JSON line. Missing ID and Time are filled in.
func (l *Log) Append(e Entry) error {
	if e.Event == "" {
		return fmt.Errorf("audit entry missing event")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.w.Write(data); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
