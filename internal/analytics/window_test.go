package analytics

import (
	"errors"
	"testing"
)

func TestWindow(t *testing.T) {
	equity := []map[string]string{
		{"ts": "2025-06-01T00:00:25Z", "pnl_delta": "1"},
		{"ts": "2025-06-01T00:00:35Z", "pnl_delta": "2"},
		{"ts": "2025-06-01T00:00:45Z", "pnl_delta": "3"},
	}
	trades := []map[string]string{
		{"exit_time": "2025-06-01T00:00:30Z", "pnl": "5"},
		{"exit_time": "2025-06-01T00:00:40Z", "pnl": "6"},  // exactly on the inclusive bound
		{"exit_time": "2025-06-01T00:00:41Z", "pnl": "7"},  // just outside
		{"entry_time": "2025-06-01T00:00:31Z", "pnl": "8"}, // entry_time fallback
	}

	res, err := Window("2025-06-01T00:00:30Z", 10, equity, trades)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}

	if len(res.Equity) != 2 {
		t.Errorf("len(Equity) = %d, want 2 (25s and 35s in, 45s out)", len(res.Equity))
	}
	if len(res.Trades) != 3 {
		t.Errorf("len(Trades) = %d, want 3 (41s excluded)", len(res.Trades))
	}
	if res.HalfWidthSec != 10 {
		t.Errorf("HalfWidthSec = %v, want 10", res.HalfWidthSec)
	}
}

func TestWindowDefaultsHalfWidth(t *testing.T) {
	res, err := Window("2025-06-01T00:00:30Z", 0, nil, nil)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if res.HalfWidthSec != DefaultHalfWidthSec {
		t.Errorf("HalfWidthSec = %v, want %v", res.HalfWidthSec, DefaultHalfWidthSec)
	}

	res, err = Window("2025-06-01T00:00:30Z", -5, nil, nil)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if res.HalfWidthSec != DefaultHalfWidthSec {
		t.Errorf("negative halfWidth: HalfWidthSec = %v, want %v", res.HalfWidthSec, DefaultHalfWidthSec)
	}
}

func TestWindowInvalidCenter(t *testing.T) {
	_, err := Window("sometime yesterday", 10, nil, nil)
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("Window() error = %v, want ErrInvalidTimestamp", err)
	}
}

func TestWindowSkipsUnparsableRows(t *testing.T) {
	equity := []map[string]string{
		{"ts": "not a time", "pnl_delta": "1"},
		{"note": "no timestamp column at all"},
		{"ts": "2025-06-01T00:00:30Z", "pnl_delta": "2"},
	}
	res, err := Window("2025-06-01T00:00:30Z", 10, equity, nil)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if len(res.Equity) != 1 {
		t.Errorf("len(Equity) = %d, want 1 (bad rows skipped)", len(res.Equity))
	}
}

func TestWindowMixedTimestampFormats(t *testing.T) {
	equity := []map[string]string{
		{"ts": "2025-06-01 00:00:30", "pnl_delta": "1"},       // space-separated
		{"ts": "2025-06-01T00:00:32", "pnl_delta": "2"},       // no zone
		{"ts": "2025-06-01 00:00:33,500", "pnl_delta": "3"},   // comma millis
		{"ts": "2025-06-01T00:05:00Z", "pnl_delta": "4"},      // outside
	}
	res, err := Window("2025-06-01T00:00:30Z", 10, equity, nil)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if len(res.Equity) != 3 {
		t.Errorf("len(Equity) = %d, want 3", len(res.Equity))
	}
}
