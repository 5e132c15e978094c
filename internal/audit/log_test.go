package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestLog_AppendFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer log.Close()

	err = log.Append(Entry{
		Event: EventRowDropped,
		Coin:  "bitcoin",
		Date:  "2024-01-01",
		Details: map[string]any{
			"reason": "excess_missing",
		},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if e.ID == "" {
		t.Error("Expected generated id")
	}
	if e.Time.IsZero() {
		t.Error("Expected generated timestamp")
	}
	if e.Details["reason"] != "excess_missing" {
		t.Errorf("Details lost: %v", e.Details)
	}
}

func TestLog_MissingEvent(t *testing.T) {
	log := NewWriter(&bytes.Buffer{})
	if err := log.Append(Entry{}); err == nil {
		t.Error("Expected error for entry without event")
	}
}

func TestLog_AppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	// Two sessions against the same file must accumulate entries.
	for session := 0; session < 2; session++ {
		log, err := Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := log.Append(Entry{Event: EventRunStarted, RunID: strconv.Itoa(session)}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := log.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	if got := countLines(t, path); got != 2 {
		t.Errorf("Expected 2 entries, got %d", got)
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = log.Append(Entry{
				Event: EventPredictionServed,
				Time:  time.Now(),
				Details: map[string]any{
					"writer": i,
				},
			})
		}(i)
	}
	wg.Wait()

	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := countLines(t, path); got != writers {
		t.Fatalf("Expected %d entries, got %d", writers, got)
	}

	// Every line must be intact JSON.
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("Corrupt audit line %q: %v", scanner.Text(), err)
		}
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n
}
