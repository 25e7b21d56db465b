package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Bar represents a single OHLCV bar in an ordered, gap-free series
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ValidateBars checks that a bar series is non-empty, positively priced,
// and ordered by timestamp
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("empty bar series")
	}
	for i, b := range bars {
		if b.Close <= 0 || b.Open <= 0 {
			return fmt.Errorf("bar %d: non-positive price (open=%.4f close=%.4f)", i, b.Open, b.Close)
		}
		if i > 0 && b.Timestamp.Before(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s before previous %s",
				i, b.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// LoadCSV reads an ordered bar series from a CSV file with a
// timestamp,open,high,low,close,volume header. Timestamps are RFC3339 or
// unix seconds.
func LoadCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read bars file: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("bars file %s has no data rows", path)
	}

	bars := make([]Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+2, len(rec))
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		vals := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i+2, j+2, err)
			}
			vals[j] = v
		}
		bars = append(bars, Bar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}

	if err := ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("invalid bar series in %s: %w", path, err)
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
