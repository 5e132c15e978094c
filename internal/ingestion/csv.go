// Package ingestion reads raw market-snapshot CSVs into tabular form.
// It performs no cleaning; defective values pass through as-is for the
// cleaning stage to repair or drop.
package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"crypto-liquidity-lab/internal/schema"
)

// RequiredColumns is the raw input contract for batch ingestion.
var RequiredColumns = []string{
	"coin", "symbol", "price", "1h", "24h", "7d",
	"24h_volume", "mkt_cap", "date", "liquidity_ratio", "price_change_24h",
}

// ReadCSV parses CSV content into a schema.Table.
// Returns schema.ErrMalformedInput when the content has no parseable header
// or ragged rows.
func ReadCSV(r io.Reader) (*schema.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrMalformedInput, err)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	table := &schema.Table{Columns: header}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrMalformedInput, err)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = fields[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadCSVFile opens and parses a CSV file.
func ReadCSVFile(path string) (*schema.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
