package logarchive

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quantops/pipedash/internal/status"
)

// AutotuneTrial is one grid point of a hyperparameter sweep, mined from
// the free text of an autotune job's log.
type AutotuneTrial struct {
	Lambda      float64            `json:"lambda"`
	Threshold   float64            `json:"threshold"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
	DurationSec *float64           `json:"duration_sec,omitempty"`
	LoadRows    *int               `json:"load_rows,omitempty"`
	LoadDays    *int               `json:"load_days,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

// AutotuneReport is the mined view of one sweep log: the grid being swept
// plus every completed trial.
type AutotuneReport struct {
	Thresholds []float64       `json:"thresholds"`
	Lambdas    []float64       `json:"lambdas"`
	Trials     []AutotuneTrial `json:"trials"`
}

// Miner states. The parser is a two-state machine: between trials it only
// reacts to grid and trial-start lines; inside a trial it accumulates load
// statistics until a summary line closes the trial.
type minerState int

const (
	seekingTrial minerState = iota
	inTrial
)

// Line events the miner reacts to. Anything else is process noise.
type lineEvent int

const (
	evNone lineEvent = iota
	evGrid
	evTrialStart
	evLoadStats
	evSummary
)

var (
	gridThresholdsRe = regexp.MustCompile(`--thresholds[= ]([\d.,eE+-]+)`)
	gridLambdasRe    = regexp.MustCompile(`--lambdas[= ]([\d.,eE+-]+)`)
	trialStartRe     = regexp.MustCompile(`\[autotune\] trial lambda=([\d.eE+-]+) thr=([\d.eE+-]+)`)
	loadStatsRe      = regexp.MustCompile(`loaded rows=(\d+)(?: days=(\d+))?`)
	summaryRe        = regexp.MustCompile(`\[autotune\] summary ((?:[a-z_]+=-?[\d.eE+-]+\s*)+)`)
	kvRe             = regexp.MustCompile(`([a-z_]+)=(-?[\d.eE+-]+)`)
)

// MineAutotune scans one log's lines for autotune sweep results. Malformed
// or out-of-order markers discard the partial trial state rather than
// failing the whole scan.
func MineAutotune(logText []byte) AutotuneReport {
	report := AutotuneReport{Trials: []AutotuneTrial{}}

	state := seekingTrial
	var current AutotuneTrial

	scanner := bufio.NewScanner(bytes.NewReader(logText))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		event, m := classifyLine(line)

		switch event {
		case evGrid:
			// The rendered command exposes the grid being swept.
			if ts := gridThresholdsRe.FindStringSubmatch(line); ts != nil {
				report.Thresholds = parseFloatList(ts[1])
			}
			if ls := gridLambdasRe.FindStringSubmatch(line); ls != nil {
				report.Lambdas = parseFloatList(ls[1])
			}

		case evTrialStart:
			// A trial start while already in a trial abandons the
			// previous, summary-less trial silently.
			lambda, err1 := strconv.ParseFloat(m[1], 64)
			threshold, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil {
				state = seekingTrial
				continue
			}
			current = AutotuneTrial{Lambda: lambda, Threshold: threshold}
			if t, ok := status.ParseLine(line); ok {
				current.StartedAt = &t
			}
			state = inTrial

		case evLoadStats:
			if state != inTrial {
				continue
			}
			if rows, err := strconv.Atoi(m[1]); err == nil {
				current.LoadRows = &rows
			}
			if m[2] != "" {
				if days, err := strconv.Atoi(m[2]); err == nil {
					current.LoadDays = &days
				}
			}

		case evSummary:
			// A summary with no open trial is out of order; ignore it.
			if state != inTrial {
				continue
			}
			current.Metrics = parseMetricFields(m[1])
			if t, ok := status.ParseLine(line); ok {
				current.FinishedAt = &t
				if current.StartedAt != nil {
					d := t.Sub(*current.StartedAt).Seconds()
					if d >= 0 {
						current.DurationSec = &d
					}
				}
			}
			report.Trials = append(report.Trials, current)
			current = AutotuneTrial{}
			state = seekingTrial
		}
	}

	return report
}

// classifyLine maps a raw log line to the miner's event alphabet.
func classifyLine(line string) (lineEvent, []string) {
	if m := trialStartRe.FindStringSubmatch(line); m != nil {
		return evTrialStart, m
	}
	if m := summaryRe.FindStringSubmatch(line); m != nil {
		return evSummary, m
	}
	if m := loadStatsRe.FindStringSubmatch(line); m != nil {
		return evLoadStats, m
	}
	if gridThresholdsRe.MatchString(line) || gridLambdasRe.MatchString(line) {
		return evGrid, nil
	}
	return evNone, nil
}

func parseFloatList(s string) []float64 {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func parseMetricFields(s string) map[string]float64 {
	fields := make(map[string]float64)
	for _, m := range kvRe.FindAllStringSubmatch(s, -1) {
		if f, err := strconv.ParseFloat(m[2], 64); err == nil {
			fields[m[1]] = f
		}
	}
	return fields
}
