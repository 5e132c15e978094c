package domain

import "time"

// Record is a single daily market snapshot for one coin.
// Corresponds to one row of the raw CSV after cleaning.
type Record struct {
	Coin           string    // entity identifier, e.g. "bitcoin"
	Symbol         string    // ticker, e.g. "btc"
	Date           time.Time // calendar day, UTC midnight
	Price          float64   // spot price in USD
	Change1h       float64   // 1-hour % change, decimal
	Change24h      float64   // 24-hour % change, decimal
	Change7d       float64   // 7-day % change, decimal
	Volume24h      float64   // 24-hour traded volume in USD
	MarketCap      float64   // market capitalization in USD
	LiquidityRatio float64   // 24h_volume / mkt_cap
	PriceChange24h float64   // absolute 24h price change in USD
}

// Key identifies a record within a dataset.
func (r *Record) Key() RecordKey {
	return RecordKey{Coin: r.Coin, Date: r.Date}
}

// RecordKey is the (coin, date) identity of a record.
type RecordKey struct {
	Coin string
	Date time.Time
}

// Dataset is a sequence of records grouped by coin and ordered by date
// within each group. Cleaning guarantees strictly increasing dates per coin.
type Dataset struct {
	Records []Record
}

// ByCoin returns records grouped by coin, preserving per-group date order.
func (d *Dataset) ByCoin() map[string][]Record {
	groups := make(map[string][]Record)
	for _, r := range d.Records {
		groups[r.Coin] = append(groups[r.Coin], r)
	}
	return groups
}

// DateRange returns the earliest and latest dates in the dataset.
// Both zero when the dataset is empty.
func (d *Dataset) DateRange() (time.Time, time.Time) {
	if len(d.Records) == 0 {
		return time.Time{}, time.Time{}
	}
	min, max := d.Records[0].Date, d.Records[0].Date
	for _, r := range d.Records[1:] {
		if r.Date.Before(min) {
			min = r.Date
		}
		if r.Date.After(max) {
			max = r.Date
		}
	}
	return min, max
}
