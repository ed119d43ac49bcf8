package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// MetricRow is one walk-forward training metrics record from the metrics
// JSONL stream.
type MetricRow struct {
	Day       string  `json:"day"`
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	TimeSec   float64 `json:"time_s"`
	APMicro   float64 `json:"ap_micro"`
	APMacro   float64 `json:"ap_macro"`
	PrevMicro float64 `json:"prev_micro"`
	PrevMacro float64 `json:"prev_macro"`
	PosTotal  int     `json:"pos_total"`
	NegTotal  int     `json:"neg_total"`
}

// MetricsSummary aggregates a set of metric rows.
type MetricsSummary struct {
	CountRows     int     `json:"count_rows"`
	Days          int     `json:"days"`
	APMicroMean   float64 `json:"ap_micro_mean"`
	APMicroMedian float64 `json:"ap_micro_median"`
	PrevMicroMean float64 `json:"prev_micro_mean"`
}

// ReadMetrics reads rows from the metrics JSONL file, reading only the
// last limit lines when limit > 0. Rows before sinceDay are dropped.
// A missing file or malformed lines degrade to fewer rows, not an error.
func ReadMetrics(path string, limit int, sinceDay string) []MetricRow {
	lines, err := tailLines(path, limit)
	if err != nil {
		return []MetricRow{}
	}

	rows := make([]MetricRow, 0, len(lines))
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			continue
		}
		row := MetricRow{
			Day:       NormalizeDay(obj["day"]),
			Epoch:     asInt(obj["epoch"]),
			TrainLoss: asFloat(obj["train_loss"]),
			TimeSec:   asFloat(obj["time_s"]),
			APMicro:   asFloat(obj["ap_micro"]),
			APMacro:   asFloat(obj["ap_macro"]),
			PrevMicro: asFloat(obj["prev_micro"]),
			PrevMacro: asFloat(obj["prev_macro"]),
			PosTotal:  asInt(obj["pos_total"]),
			NegTotal:  asInt(obj["neg_total"]),
		}
		if sinceDay != "" && row.Day < sinceDay {
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		return rows[i].Epoch < rows[j].Epoch
	})
	return rows
}

// BestPerDay keeps the best row per day: highest ap_micro, ties broken by
// the lower epoch.
func BestPerDay(rows []MetricRow) []MetricRow {
	best := make(map[string]MetricRow)
	for _, r := range rows {
		b, ok := best[r.Day]
		if !ok || r.APMicro > b.APMicro || (r.APMicro == b.APMicro && r.Epoch < b.Epoch) {
			best[r.Day] = r
		}
	}

	days := make([]string, 0, len(best))
	for day := range best {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]MetricRow, 0, len(days))
	for _, day := range days {
		out = append(out, best[day])
	}
	return out
}

// Summarize computes mean/median aggregates over the rows.
func Summarize(rows []MetricRow) MetricsSummary {
	if len(rows) == 0 {
		return MetricsSummary{}
	}

	days := make(map[string]bool, len(rows))
	ap := make([]float64, 0, len(rows))
	var apSum, prevSum float64
	for _, r := range rows {
		days[r.Day] = true
		ap = append(ap, r.APMicro)
		apSum += r.APMicro
		prevSum += r.PrevMicro
	}

	sort.Float64s(ap)
	n := len(ap)
	median := ap[n/2]
	if n%2 == 0 {
		median = (ap[n/2-1] + ap[n/2]) / 2
	}

	return MetricsSummary{
		CountRows:     len(rows),
		Days:          len(days),
		APMicroMean:   apSum / float64(n),
		APMicroMedian: median,
		PrevMicroMean: prevSum / float64(n),
	}
}

// NormalizeDay renders a day value as an eight-digit string so numeric
// and string day encodings compare consistently.
func NormalizeDay(v any) string {
	switch d := v.(type) {
	case float64:
		return fmt.Sprintf("%08d", int(d))
	case string:
		if n, err := strconv.Atoi(d); err == nil {
			return fmt.Sprintf("%08d", n)
		}
		return d
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", d)
	}
}

// tailLines reads the last limit lines of a file without loading the
// whole file; limit <= 0 reads everything.
func tailLines(path string, limit int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if limit <= 0 {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return bytes.Split(data, []byte("\n")), nil
	}

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	const chunkSize = 1024
	var data []byte
	for end > 0 && bytes.Count(data, []byte("\n")) <= limit {
		readSize := int64(chunkSize)
		if end < readSize {
			readSize = end
		}
		chunk := make([]byte, readSize)
		if _, err := f.ReadAt(chunk, end-readSize); err != nil {
			return nil, err
		}
		data = append(chunk, data...)
		end -= readSize
	}

	lines := bytes.Split(data, []byte("\n"))
	// A trailing newline yields an empty final element; it must not count
	// against the limit.
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

func asInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n
		}
	}
	return 0
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return 0
}
