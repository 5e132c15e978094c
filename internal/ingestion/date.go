package ingestion

import (
	"fmt"
	"time"
)

// Accepted calendar date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02", // YYYY-MM-DD
	"02-01-2006", // DD-MM-YYYY
}

// ParseDate parses a calendar date in YYYY-MM-DD or DD-MM-YYYY form.
// The result is normalized to UTC midnight.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
