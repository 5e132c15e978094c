package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"crypto-liquidity-lab/internal/artifact"
	"crypto-liquidity-lab/internal/audit"
	"crypto-liquidity-lab/internal/cleaning"
	"crypto-liquidity-lab/internal/ingestion"
	"crypto-liquidity-lab/internal/observability"
	"crypto-liquidity-lab/internal/schema"
	"crypto-liquidity-lab/internal/selection"
	"crypto-liquidity-lab/internal/storage/memory"
)

// testTable builds a raw table with coins x days rows of varied values.
func testTable(t *testing.T, coins, days int) *schema.Table {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("coin,symbol,price,1h,24h,7d,24h_volume,mkt_cap,date,liquidity_ratio,price_change_24h\n")
	for c := 0; c < coins; c++ {
		for d := 1; d <= days; d++ {
			fmt.Fprintf(&sb, "coin%d,C%d,%g,%g,%g,%g,%g,%g,2024-01-%02d,%g,%g\n",
				c, c,
				100.0+13.0*float64(d)+7.0*float64(c), // price
				0.1*float64(d)-0.5*float64(c),        // 1h
				0.3*float64(d)+2.0*float64(c),        // 24h
				float64((d*d)%17),                    // 7d
				1000.0+90.0*float64(d)+31.0*float64(c%3)*float64(d), // 24h_volume
				100000.0+1000.0*float64(d)+500.0*float64(c),         // mkt_cap
				d,
				0.01+0.001*float64(d), // liquidity_ratio (raw, recomputed downstream)
				5.0*float64(d)-3.0*float64(c),
			)
		}
	}

	table, err := ingestion.ReadCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	return table
}

func testOrchestrator(t *testing.T, auditBuf *bytes.Buffer) (*Orchestrator, *memory.SnapshotStore, *memory.FeatureStore, *memory.EvaluationStore) {
	t.Helper()

	snapshots := memory.NewSnapshotStore()
	features := memory.NewFeatureStore()
	evaluations := memory.NewEvaluationStore()

	o := New(Options{
		SnapshotStore:   snapshots,
		FeatureStore:    features,
		EvaluationStore: evaluations,
		AuditLog:        audit.NewWriter(auditBuf),
		Metrics:         observability.NewMetrics(prometheus.NewRegistry(), "test"),
		Logger:          zerolog.Nop(),
		SelectionConfig: selection.Config{
			Folds:       2,
			MinFoldRows: 2,
			FoldTimeout: 10 * time.Second,
			Workers:     2,
		},
		ArtifactDir:  t.TempDir(),
		DefaultValue: 0,
	})
	return o, snapshots, features, evaluations
}

func TestOrchestrator_RunEndToEnd(t *testing.T) {
	var auditBuf bytes.Buffer
	o, snapshots, featureStore, evaluations := testOrchestrator(t, &auditBuf)

	table := testTable(t, 2, 12)
	result, err := o.Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.RowsIn != 24 || result.RowsKept != 24 || result.RowsDropped != 0 {
		t.Errorf("Row accounting wrong: in=%d kept=%d dropped=%d", result.RowsIn, result.RowsKept, result.RowsDropped)
	}
	if result.BestModel == "" || result.Version == "" {
		t.Fatalf("No winner recorded: %+v", result)
	}

	// Artifact on disk must round-trip.
	loaded, err := artifact.Load(result.ArtifactPath)
	if err != nil {
		t.Fatalf("Load artifact failed: %v", err)
	}
	if loaded.ModelName != result.BestModel || loaded.Version != result.Version {
		t.Errorf("Artifact mismatch: %s/%s vs %s/%s",
			loaded.ModelName, loaded.Version, result.BestModel, result.Version)
	}
	if len(loaded.Features) != 8 {
		t.Errorf("Expected 8 canonical features, got %d", len(loaded.Features))
	}

	// Intermediate products persisted.
	ctx := context.Background()
	recs, err := snapshots.GetByCoin(ctx, "coin0")
	if err != nil || len(recs) != 12 {
		t.Errorf("Expected 12 snapshots for coin0, got %d (err %v)", len(recs), err)
	}
	rows, err := featureStore.GetByCoin(ctx, "coin1")
	if err != nil || len(rows) != 12 {
		t.Errorf("Expected 12 feature rows for coin1, got %d (err %v)", len(rows), err)
	}
	evals, err := evaluations.GetByRun(ctx, result.RunID)
	if err != nil || len(evals) == 0 {
		t.Errorf("Expected evaluation rows for run, got %d (err %v)", len(evals), err)
	}

	// Audit trail has run boundaries.
	trail := auditBuf.String()
	for _, event := range []string{audit.EventRunStarted, audit.EventArtifactSaved, audit.EventRunCompleted} {
		if !strings.Contains(trail, event) {
			t.Errorf("Audit trail missing %s", event)
		}
	}
}

func TestOrchestrator_RerunTolleratesPersistedData(t *testing.T) {
	var auditBuf bytes.Buffer
	o, _, _, _ := testOrchestrator(t, &auditBuf)

	table := testTable(t, 2, 12)
	if _, err := o.Run(context.Background(), table); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// Snapshots and features are already stored; the rerun must not fail on
	// duplicate keys.
	if _, err := o.Run(context.Background(), table); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
}

func TestOrchestrator_SchemaErrorFatal(t *testing.T) {
	var auditBuf bytes.Buffer
	o, snapshots, _, _ := testOrchestrator(t, &auditBuf)

	table := &schema.Table{
		Columns: []string{"coin", "symbol", "price"},
		Rows:    []map[string]string{{"coin": "bitcoin", "symbol": "BTC", "price": "1"}},
	}

	_, err := o.Run(context.Background(), table)
	var schemaErr *cleaning.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected SchemaError, got %v", err)
	}

	recs, _ := snapshots.GetByCoin(context.Background(), "bitcoin")
	if len(recs) != 0 {
		t.Errorf("Nothing should persist on schema failure, got %d records", len(recs))
	}
}

func TestOrchestrator_DropsRecordedInAudit(t *testing.T) {
	var auditBuf bytes.Buffer
	o, _, _, _ := testOrchestrator(t, &auditBuf)

	table := testTable(t, 2, 12)
	// Corrupt one date so cleaning drops the row.
	table.Rows[0]["date"] = "not-a-date"

	result, err := o.Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.RowsDropped != 1 {
		t.Errorf("Expected 1 dropped row, got %d", result.RowsDropped)
	}
	if !strings.Contains(auditBuf.String(), cleaning.DropReasonBadDate) {
		t.Error("Audit trail missing bad_date drop")
	}
}
