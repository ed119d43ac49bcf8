package analytics

import "strconv"

// RoundTrip is a trade record augmented with its holding duration.
type RoundTrip struct {
	EntryTime   string   `json:"entry_time"`
	ExitTime    string   `json:"exit_time"`
	Side        string   `json:"side"`
	PnL         float64  `json:"pnl"`
	HoldSeconds *float64 `json:"hold_seconds"` // nil when either timestamp is missing or unparsable
}

// RoundTrips derives holding durations for a run's trade rows. Pure and
// total: missing or unparsable timestamps propagate as a nil hold, never
// as a failure.
func RoundTrips(rows []map[string]string) []RoundTrip {
	out := make([]RoundTrip, 0, len(rows))
	for _, row := range rows {
		entry, _ := field(row, "entry_time", "entry_ts", "entry")
		exit, _ := field(row, "exit_time", "exit_ts", "exit")
		side, _ := field(row, "side", "direction")

		rt := RoundTrip{
			EntryTime: entry,
			ExitTime:  exit,
			Side:      side,
		}
		if pnlStr, ok := field(row, "pnl", "profit"); ok {
			if pnl, err := strconv.ParseFloat(pnlStr, 64); err == nil {
				rt.PnL = pnl
			}
		}

		entryT, okEntry := parseTime(entry)
		exitT, okExit := parseTime(exit)
		if okEntry && okExit {
			hold := exitT.Sub(entryT).Seconds()
			rt.HoldSeconds = &hold
		}

		out = append(out, rt)
	}
	return out
}
