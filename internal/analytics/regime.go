package analytics

import "strconv"

// Regime names used in attribution output. The missing-data policy assigns
// all weight to the secondary regime.
const (
	RegimePrimary   = "primary"
	RegimeSecondary = "secondary"
)

// WeightSample is one per-timestamp pair of competing regime weights.
// Each weight is independently optional.
type WeightSample struct {
	TS        string
	Primary   *float64
	Secondary *float64
}

// RegimeShare is the attribution outcome for one regime.
type RegimeShare struct {
	TimeShare float64 `json:"time_share"`
	PnL       float64 `json:"pnl"`
	PnLShare  float64 `json:"pnl_share"`
}

// TimelinePoint is one time-aligned attribution sample.
type TimelinePoint struct {
	TS        string  `json:"ts"`
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
	PnLDelta  float64 `json:"pnl_delta"`
}

// Attribution decomposes a P&L series across the two competing regimes.
type Attribution struct {
	TotalPnL float64                `json:"total_pnl"`
	Regimes  map[string]RegimeShare `json:"regimes"`
	Timeline []TimelinePoint        `json:"timeline"`
}

// Attribute assigns incremental P&L to regimes by time-weighted blending.
//
// Weight resolution per sample is three-tiered: a missing weight is the
// complement of the known one; when both are missing the sample defaults
// to {primary: 0, secondary: 1}; the pair is then renormalized to sum to
// exactly 1, falling back to the same default when the raw sum is <= 0.
//
// Incremental P&L is joined by canonical timestamp against the equity
// rows; cumulative equity levels are converted to deltas against the
// previous level; an underivable increment contributes zero.
func Attribute(weights []WeightSample, equity []map[string]string, summary map[string]any) Attribution {
	if len(weights) == 0 {
		return Attribution{
			TotalPnL: summaryTotal(summary),
			Regimes:  map[string]RegimeShare{},
			Timeline: []TimelinePoint{},
		}
	}

	deltas := pnlDeltas(equity)

	var total, timePrimary, timeSecondary, pnlPrimary, pnlSecondary float64
	timeline := make([]TimelinePoint, 0, len(weights))

	for _, sample := range weights {
		wp, ws := resolveWeights(sample)

		var delta float64
		if key, ok := canonicalTS(sample.TS); ok {
			delta = deltas[key]
		}

		total += delta
		timePrimary += wp
		timeSecondary += ws
		pnlPrimary += wp * delta
		pnlSecondary += ws * delta

		timeline = append(timeline, TimelinePoint{
			TS:        sample.TS,
			Primary:   wp,
			Secondary: ws,
			PnLDelta:  delta,
		})
	}

	n := float64(len(weights))
	if n == 0 {
		n = 1
	}

	return Attribution{
		TotalPnL: total,
		Regimes: map[string]RegimeShare{
			RegimePrimary:   {TimeShare: timePrimary / n, PnL: pnlPrimary, PnLShare: share(pnlPrimary, total)},
			RegimeSecondary: {TimeShare: timeSecondary / n, PnL: pnlSecondary, PnLShare: share(pnlSecondary, total)},
		},
		Timeline: timeline,
	}
}

// resolveWeights applies the three-tier missing-data policy and
// renormalizes to a sum of exactly 1.
func resolveWeights(s WeightSample) (float64, float64) {
	var wp, ws float64
	switch {
	case s.Primary != nil && s.Secondary != nil:
		wp, ws = *s.Primary, *s.Secondary
	case s.Primary != nil:
		wp = *s.Primary
		ws = 1 - wp
	case s.Secondary != nil:
		ws = *s.Secondary
		wp = 1 - ws
	default:
		return 0, 1
	}

	sum := wp + ws
	if sum <= 0 {
		return 0, 1
	}
	return wp / sum, ws / sum
}

func share(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total
}

// pnlDeltas indexes incremental P&L by canonical timestamp. Rows carrying
// only cumulative equity are differenced against the previous level; the
// first such row contributes zero.
func pnlDeltas(equity []map[string]string) map[string]float64 {
	deltas := make(map[string]float64, len(equity))
	var prevEquity float64
	havePrev := false

	for _, row := range equity {
		raw, ok := field(row, "ts", "timestamp", "time")
		if !ok {
			continue
		}
		key, ok := canonicalTS(raw)
		if !ok {
			continue
		}

		if v, ok := field(row, "pnl_delta", "pnl"); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				deltas[key] = f
				continue
			}
		}
		if v, ok := field(row, "equity", "cum_equity"); ok {
			if level, err := strconv.ParseFloat(v, 64); err == nil {
				if havePrev {
					deltas[key] = level - prevEquity
				}
				prevEquity = level
				havePrev = true
			}
		}
	}
	return deltas
}

// summaryTotal pulls the fallback total from a run summary when no weight
// series exists to attribute over.
func summaryTotal(summary map[string]any) float64 {
	for _, key := range []string{"total_pnl", "pnl"} {
		switch v := summary[key].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// parseWeights converts weight rows to samples; blank cells stay nil so
// the attribution fallback can distinguish missing from zero.
func parseWeights(rows []map[string]string) []WeightSample {
	out := make([]WeightSample, 0, len(rows))
	for _, row := range rows {
		ts, ok := field(row, "ts", "timestamp", "time")
		if !ok {
			continue
		}
		sample := WeightSample{TS: ts}
		if v, ok := field(row, "w_primary", "primary"); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				sample.Primary = &f
			}
		}
		if v, ok := field(row, "w_secondary", "secondary"); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				sample.Secondary = &f
			}
		}
		out = append(out, sample)
	}
	return out
}
