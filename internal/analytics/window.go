package analytics

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidTimestamp is returned when the requested window center cannot
// be parsed. Unparsable timestamps inside the series are skipped instead.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// DefaultHalfWidthSec is applied when no half-width is supplied.
const DefaultHalfWidthSec = 60.0

// WindowResult holds the two series filtered to the requested window.
type WindowResult struct {
	Center       string              `json:"center"`
	HalfWidthSec float64             `json:"half_width_sec"`
	Equity       []map[string]string `json:"equity"`
	Trades       []map[string]string `json:"trades"`
}

// Window correlates two independently sourced time series by keeping only
// the points whose timestamp lies within halfWidth seconds of center.
// The bounds are inclusive. A non-positive halfWidth defaults to 60s.
func Window(center string, halfWidth float64, equity, trades []map[string]string) (WindowResult, error) {
	centerT, ok := parseTime(center)
	if !ok {
		return WindowResult{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, center)
	}
	if halfWidth <= 0 {
		halfWidth = DefaultHalfWidthSec
	}

	res := WindowResult{
		Center:       centerT.Format(time.RFC3339),
		HalfWidthSec: halfWidth,
		Equity:       filterWindow(equity, centerT, halfWidth, "ts", "timestamp", "time"),
		Trades:       filterWindow(trades, centerT, halfWidth, "exit_time", "entry_time", "ts", "timestamp"),
	}
	return res, nil
}

func filterWindow(rows []map[string]string, center time.Time, halfWidth float64, tsCols ...string) []map[string]string {
	out := make([]map[string]string, 0)
	for _, row := range rows {
		raw, ok := field(row, tsCols...)
		if !ok {
			continue
		}
		t, ok := parseTime(raw)
		if !ok {
			continue
		}
		if math.Abs(t.Sub(center).Seconds()) <= halfWidth {
			out = append(out, row)
		}
	}
	return out
}
