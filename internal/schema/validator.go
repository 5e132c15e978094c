// Package schema checks tabular input against a required-column contract.
// Validation is a pure check: missing columns are reported, never raised.
package schema

import "errors"

// ErrMalformedInput is returned only when the input is not tabular at all
// (no header, ragged rows rejected upstream). Missing columns are not an
// error condition.
var ErrMalformedInput = errors.New("input is not tabular")

// Table is the minimal tabular contract the validator operates on: an
// ordered header plus string-valued rows keyed by column name.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// HasColumn reports whether the table header contains name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Validate checks the table against required columns.
// Returns ok=true when every required column is present, otherwise ok=false
// plus the sorted-by-requirement-order list of missing columns.
// Returns ErrMalformedInput only when the table has no header.
func Validate(t *Table, required []string) (bool, []string, error) {
	if t == nil || len(t.Columns) == 0 {
		return false, nil, ErrMalformedInput
	}

	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return len(missing) == 0, missing, nil
}
