// Package analytics derives normalized, time-aligned summaries from raw
// per-run artifacts. Every routine here is a pure transformation over
// static files: malformed or missing artifacts degrade to empty results,
// never to errors the dashboard cannot render.
package analytics

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Artifact file names inside a run directory.
const (
	equityFile  = "equity.csv"
	tradesFile  = "trades.csv"
	weightsFile = "model_weights.csv"
	summaryFile = "summary.json"
)

// RunStore reads the per-run artifact directories.
type RunStore struct {
	dir    string
	logger *slog.Logger
}

// NewRunStore creates a RunStore over the runs directory.
func NewRunStore(dir string, logger *slog.Logger) *RunStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunStore{dir: dir, logger: logger}
}

// ListRuns returns the run identifiers (subdirectory names), sorted
// descending so the newest stamped runs come first.
func (s *RunStore) ListRuns() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return []string{}
	}
	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	return runs
}

// Equity returns the run's equity rows, empty when absent or malformed.
func (s *RunStore) Equity(runID string) []map[string]string {
	return s.readRecords(runID, equityFile)
}

// Trades returns the run's trade rows, empty when absent or malformed.
func (s *RunStore) Trades(runID string) []map[string]string {
	return s.readRecords(runID, tradesFile)
}

// Weights returns the run's model-weight samples.
func (s *RunStore) Weights(runID string) []WeightSample {
	return parseWeights(s.readRecords(runID, weightsFile))
}

// Summary returns the run's summary record, empty when absent.
func (s *RunStore) Summary(runID string) map[string]any {
	data, err := os.ReadFile(s.artifactPath(runID, summaryFile))
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Debug("malformed summary artifact", "run_id", runID, "error", err)
		return map[string]any{}
	}
	return out
}

// ArtifactMTime returns the newest modification time across a run's
// artifacts, used as a cache freshness key. Zero when none exist.
func (s *RunStore) ArtifactMTime(runID string) time.Time {
	var newest time.Time
	for _, name := range []string{equityFile, tradesFile, weightsFile, summaryFile} {
		if fi, err := os.Stat(s.artifactPath(runID, name)); err == nil && fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
	}
	return newest
}

func (s *RunStore) artifactPath(runID, name string) string {
	// Run ids come from URLs; confine them to the runs directory.
	return filepath.Join(s.dir, filepath.Base(runID), name)
}

// readRecords reads a header-keyed CSV into row maps. Any parse failure
// yields an empty result: the artifact may simply not exist yet.
func (s *RunStore) readRecords(runID, name string) []map[string]string {
	f, err := os.Open(s.artifactPath(runID, name))
	if err != nil {
		return []map[string]string{}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil || len(records) < 1 {
		if err != nil {
			s.logger.Debug("malformed tabular artifact", "run_id", runID, "file", name, "error", err)
		}
		return []map[string]string{}
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// timeLayouts are the timestamp shapes the pipeline artifacts use.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05,999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTime parses a timestamp in any of the supported layouts.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// canonicalTS normalizes a timestamp string to one representation so the
// two sides of a join agree regardless of source formatting.
func canonicalTS(s string) (string, bool) {
	t, ok := parseTime(s)
	if !ok {
		return "", false
	}
	return t.Truncate(time.Second).Format(time.RFC3339), true
}

// field returns the first present column among names.
func field(row map[string]string, names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := row[n]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}
