// Package cleaning casts raw tabular rows to numeric records and repairs
// gaps with a per-coin forward/backward fill. Output is deterministic: rows
// are sorted by (coin, date) before filling, so two runs over the same input
// produce identical records and identical drop reports.
package cleaning

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/ingestion"
	"crypto-liquidity-lab/internal/schema"
)

// Structural columns. Their absence aborts the whole batch.
var structuralColumns = []string{"coin", "date"}

// Observation columns subject to cast, fill and the drop policy.
var observationColumns = []string{
	domain.FeaturePrice,
	domain.FeatureChange1h,
	domain.FeatureChange24h,
	domain.FeatureChange7d,
	domain.FeatureVolume24h,
	domain.FeatureMarketCap,
	domain.FeatureLiquidityRatio,
	domain.FeaturePriceChange24h,
}

// Drop reasons recorded in the audit report.
const (
	DropReasonBadDate       = "bad_date"
	DropReasonExcessMissing = "excess_missing"
	DropReasonUnfillable    = "unfillable"
)

// SchemaError reports absent structural columns. It is fatal for the batch,
// unlike per-row drops which are recoverable.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("structural columns absent: %s", strings.Join(e.Missing, ", "))
}

// Config controls the drop policy.
type Config struct {
	// MissingRatioThreshold drops a row when more than this fraction of its
	// observation columns were originally missing. Default 0.30.
	MissingRatioThreshold float64
}

// DefaultConfig returns the standard cleaning configuration.
func DefaultConfig() Config {
	return Config{MissingRatioThreshold: 0.30}
}

// Drop records one dropped row for the audit report.
type Drop struct {
	Coin   string
	Date   string // raw value; may be unparsable for bad_date drops
	Reason string
}

// Result is the cleaned dataset plus the drop report.
type Result struct {
	Dataset domain.Dataset
	Drops   []Drop
}

// working row during fill; nil values are missing.
type row struct {
	coin    string
	symbol  string
	rawDate string
	date    int64 // unix seconds, sort key
	values  map[string]*float64
	// originallyMissing counts observation columns missing before any fill.
	originallyMissing int
	ingestOrder       int
}

// Clean casts, deduplicates, fills and filters the table.
// Returns *SchemaError when coin or date columns are structurally absent.
func Clean(table *schema.Table, cfg Config) (*Result, error) {
	if table == nil || len(table.Columns) == 0 {
		return nil, schema.ErrMalformedInput
	}
	var missingStructural []string
	for _, col := range structuralColumns {
		if !table.HasColumn(col) {
			missingStructural = append(missingStructural, col)
		}
	}
	if len(missingStructural) > 0 {
		return nil, &SchemaError{Missing: missingStructural}
	}
	if cfg.MissingRatioThreshold <= 0 {
		cfg.MissingRatioThreshold = DefaultConfig().MissingRatioThreshold
	}

	result := &Result{}

	// Cast pass. Unparsable dates are dropped here; everything else becomes
	// a working row with nil-able observation values.
	rows := make([]*row, 0, len(table.Rows))
	for i, raw := range table.Rows {
		coin := strings.TrimSpace(raw["coin"])
		rawDate := strings.TrimSpace(raw["date"])

		date, err := ingestion.ParseDate(rawDate)
		if err != nil {
			result.Drops = append(result.Drops, Drop{Coin: coin, Date: rawDate, Reason: DropReasonBadDate})
			continue
		}

		r := &row{
			coin:        coin,
			symbol:      strings.TrimSpace(raw["symbol"]),
			rawDate:     rawDate,
			date:        date.Unix(),
			values:      make(map[string]*float64, len(observationColumns)),
			ingestOrder: i,
		}
		for _, col := range observationColumns {
			v := castNumeric(raw[col], col)
			if v == nil {
				r.originallyMissing++
			}
			r.values[col] = v
		}
		rows = append(rows, r)
	}

	// Deduplicate (coin, date) keeping the latest ingested row.
	byKey := make(map[string]*row, len(rows))
	for _, r := range rows {
		key := r.coin + "|" + strconv.FormatInt(r.date, 10)
		if prev, ok := byKey[key]; !ok || r.ingestOrder > prev.ingestOrder {
			byKey[key] = r
		}
	}
	deduped := make([]*row, 0, len(byKey))
	for _, r := range byKey {
		deduped = append(deduped, r)
	}

	// Deterministic order: (coin, date).
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].coin != deduped[j].coin {
			return deduped[i].coin < deduped[j].coin
		}
		return deduped[i].date < deduped[j].date
	})

	fillGroups(deduped)

	// Drop policy, applied after fill. The ratio rule uses original
	// missingness; the unfillable rule uses post-fill state.
	for _, r := range deduped {
		ratio := float64(r.originallyMissing) / float64(len(observationColumns))
		if ratio > cfg.MissingRatioThreshold {
			result.Drops = append(result.Drops, Drop{Coin: r.coin, Date: r.rawDate, Reason: DropReasonExcessMissing})
			continue
		}
		if stillMissing(r) {
			result.Drops = append(result.Drops, Drop{Coin: r.coin, Date: r.rawDate, Reason: DropReasonUnfillable})
			continue
		}
		result.Dataset.Records = append(result.Dataset.Records, toRecord(r))
	}

	return result, nil
}

// castNumeric parses a cell to float. Non-castable values and values that
// violate the column's sign contract become missing, never zero.
func castNumeric(s, col string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	switch col {
	case domain.FeaturePrice, domain.FeatureVolume24h:
		if v < 0 {
			return nil
		}
	}
	return &v
}

// fillGroups applies forward-fill then backward-fill per coin group.
// Rows must already be sorted by (coin, date).
func fillGroups(rows []*row) {
	start := 0
	for start < len(rows) {
		end := start
		for end < len(rows) && rows[end].coin == rows[start].coin {
			end++
		}
		group := rows[start:end]
		for _, col := range observationColumns {
			// forward
			var last *float64
			for _, r := range group {
				if r.values[col] != nil {
					last = r.values[col]
				} else if last != nil {
					v := *last
					r.values[col] = &v
				}
			}
			// backward
			var next *float64
			for i := len(group) - 1; i >= 0; i-- {
				if group[i].values[col] != nil {
					next = group[i].values[col]
				} else if next != nil {
					v := *next
					group[i].values[col] = &v
				}
			}
		}
		start = end
	}
}

func stillMissing(r *row) bool {
	for _, col := range observationColumns {
		if r.values[col] == nil {
			return true
		}
	}
	return false
}

func toRecord(r *row) domain.Record {
	date, _ := ingestion.ParseDate(r.rawDate)
	get := func(col string) float64 { return *r.values[col] }
	return domain.Record{
		Coin:           r.coin,
		Symbol:         r.symbol,
		Date:           date,
		Price:          get(domain.FeaturePrice),
		Change1h:       get(domain.FeatureChange1h),
		Change24h:      get(domain.FeatureChange24h),
		Change7d:       get(domain.FeatureChange7d),
		Volume24h:      get(domain.FeatureVolume24h),
		MarketCap:      get(domain.FeatureMarketCap),
		LiquidityRatio: get(domain.FeatureLiquidityRatio),
		PriceChange24h: get(domain.FeaturePriceChange24h),
	}
}
