package analytics

import "testing"

func TestRoundTrips(t *testing.T) {
	rows := []map[string]string{
		{
			"entry_time": "2025-06-01T09:00:00Z",
			"exit_time":  "2025-06-01T09:05:00Z",
			"side":       "long",
			"pnl":        "12.5",
		},
		{
			"entry_ts":  "2025-06-01 10:00:00",
			"exit_ts":   "2025-06-01 10:00:45",
			"direction": "short",
			"profit":    "-3.25",
		},
		{
			"entry_time": "2025-06-01T11:00:00Z",
			"side":       "long",
			"pnl":        "1",
		},
		{
			"entry_time": "garbled",
			"exit_time":  "2025-06-01T12:00:00Z",
			"pnl":        "not a number",
		},
	}

	trips := RoundTrips(rows)
	if len(trips) != 4 {
		t.Fatalf("len(trips) = %d, want 4", len(trips))
	}

	if trips[0].HoldSeconds == nil || *trips[0].HoldSeconds != 300 {
		t.Errorf("trips[0].HoldSeconds = %v, want 300", trips[0].HoldSeconds)
	}
	if trips[0].PnL != 12.5 || trips[0].Side != "long" {
		t.Errorf("trips[0] = %+v", trips[0])
	}

	// Alias columns resolve the same way.
	if trips[1].HoldSeconds == nil || *trips[1].HoldSeconds != 45 {
		t.Errorf("trips[1].HoldSeconds = %v, want 45", trips[1].HoldSeconds)
	}
	if trips[1].Side != "short" || trips[1].PnL != -3.25 {
		t.Errorf("trips[1] = %+v", trips[1])
	}

	// Missing exit time: the trade survives with a nil hold.
	if trips[2].HoldSeconds != nil {
		t.Errorf("trips[2].HoldSeconds = %v, want nil", trips[2].HoldSeconds)
	}

	// Unparsable entry and pnl degrade, never fail.
	if trips[3].HoldSeconds != nil {
		t.Errorf("trips[3].HoldSeconds = %v, want nil", trips[3].HoldSeconds)
	}
	if trips[3].PnL != 0 {
		t.Errorf("trips[3].PnL = %v, want 0", trips[3].PnL)
	}
}

func TestRoundTripsEmpty(t *testing.T) {
	trips := RoundTrips(nil)
	if trips == nil || len(trips) != 0 {
		t.Errorf("RoundTrips(nil) = %v, want empty slice", trips)
	}
}
