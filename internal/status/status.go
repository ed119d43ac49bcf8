// Package status infers job lifecycle status from unstructured log text.
//
// Completed jobs leave no structured exit-code channel behind, only free
// text in their log files, so status must be re-derived from heuristics
// every time it is asked for. Live process state always wins over the
// heuristics while a job is known to be active.
package status

import (
	"regexp"
	"time"
)

// Status is the inferred lifecycle state of a job invocation.
type Status string

const (
	Running Status = "running"
	Success Status = "success"
	Failed  Status = "failed"
)

// Strategy derives a Status from log content, file metadata and live
// process state. It is an interface so a structured backend (exit-code
// files) can replace the text heuristics without touching callers.
type Strategy interface {
	Infer(logText []byte, mtime time.Time, active bool) Status
}

// failureRe matches the markers an aborted pipeline run leaves behind:
// a Python stack trace, an explicit error marker, or an exception name.
var failureRe = regexp.MustCompile(`(?i)traceback|\berror\b|exception`)

// tsLineRe matches the standard timestamp prefix emitted by the pipeline
// scripts' loggers: "2024-01-02 15:04:05" with optional ",mmm" millis.
var tsLineRe = regexp.MustCompile(`(?m)^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})(?:,(\d{3}))?`)

// Heuristic is the default text-based Strategy.
//
// Priority order: live active state, failure markers, mtime freshness,
// then success. Absence of explicit failure markers defaults to success:
// a deliberately optimistic policy, since no exit code survives in the log
// as a structured field.
type Heuristic struct {
	// Freshness is the mtime window within which a log with no live
	// process handle is still assumed to be running (e.g. the server
	// restarted and lost the handle).
	Freshness time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// DefaultFreshness is used when Heuristic.Freshness is zero.
const DefaultFreshness = 3 * time.Minute

// Infer implements Strategy.
func (h Heuristic) Infer(logText []byte, mtime time.Time, active bool) Status {
	if active {
		return Running
	}
	if failureRe.Match(logText) {
		return Failed
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	freshness := h.Freshness
	if freshness == 0 {
		freshness = DefaultFreshness
	}
	if !mtime.IsZero() && now().Sub(mtime) < freshness {
		return Running
	}
	return Success
}

// Timestamps extracts the first and last timestamped log lines. When found
// these take precedence over the filename stamp and file mtime for
// computing started/finished times.
func Timestamps(logText []byte) (first, last time.Time, ok bool) {
	matches := tsLineRe.FindAllSubmatch(logText, -1)
	if len(matches) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, ok1 := parseStamp(matches[0])
	last, ok2 := parseStamp(matches[len(matches)-1])
	return first, last, ok1 && ok2
}

// ParseLine extracts the timestamp from a single log line, if present.
func ParseLine(line string) (time.Time, bool) {
	m := tsLineRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	if m[2] != "" {
		if ms, err2 := time.ParseDuration(m[2] + "ms"); err2 == nil {
			t = t.Add(ms)
		}
	}
	return t, true
}

func parseStamp(m [][]byte) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", string(m[1]), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	if len(m) > 2 && len(m[2]) > 0 {
		if ms, err2 := time.ParseDuration(string(m[2]) + "ms"); err2 == nil {
			t = t.Add(ms)
		}
	}
	return t, true
}
