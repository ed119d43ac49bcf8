package analytics

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func writeMetrics(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	return path
}

func TestReadMetrics(t *testing.T) {
	path := writeMetrics(t,
		`{"day": 20250602, "epoch": 1, "ap_micro": 0.61, "prev_micro": 0.5, "train_loss": 0.4}`,
		`{"day": "20250601", "epoch": 2, "ap_micro": 0.55, "prev_micro": 0.5}`,
		`not json at all`,
		`{"day": 20250601, "epoch": 1, "ap_micro": 0.52, "prev_micro": 0.5}`,
	)

	rows := ReadMetrics(path, 0, "")
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3 (malformed line dropped)", len(rows))
	}

	// Sorted by day then epoch; numeric and string day encodings agree.
	if rows[0].Day != "20250601" || rows[0].Epoch != 1 {
		t.Errorf("rows[0] = %s/%d", rows[0].Day, rows[0].Epoch)
	}
	if rows[1].Day != "20250601" || rows[1].Epoch != 2 {
		t.Errorf("rows[1] = %s/%d", rows[1].Day, rows[1].Epoch)
	}
	if rows[2].Day != "20250602" {
		t.Errorf("rows[2].Day = %s", rows[2].Day)
	}
	if rows[2].APMicro != 0.61 || rows[2].TrainLoss != 0.4 {
		t.Errorf("rows[2] = %+v", rows[2])
	}
}

func TestReadMetricsSinceDay(t *testing.T) {
	path := writeMetrics(t,
		`{"day": 20250601, "epoch": 1, "ap_micro": 0.5}`,
		`{"day": 20250602, "epoch": 1, "ap_micro": 0.6}`,
		`{"day": 20250603, "epoch": 1, "ap_micro": 0.7}`,
	)

	rows := ReadMetrics(path, 0, "20250602")
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Day != "20250602" {
		t.Errorf("rows[0].Day = %s", rows[0].Day)
	}
}

func TestReadMetricsTail(t *testing.T) {
	lines := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		lines = append(lines, `{"day": 20250601, "epoch": `+strconv.Itoa(i)+`, "ap_micro": 0.5}`)
	}
	path := writeMetrics(t, lines...)

	rows := ReadMetrics(path, 10, "")
	if len(rows) != 10 {
		t.Fatalf("len(rows) = %d, want 10", len(rows))
	}
	if rows[len(rows)-1].Epoch != 49 {
		t.Errorf("last epoch = %d, want 49 (tail keeps newest lines)", rows[len(rows)-1].Epoch)
	}
}

func TestReadMetricsMissingFile(t *testing.T) {
	rows := ReadMetrics(filepath.Join(t.TempDir(), "absent.jsonl"), 0, "")
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty slice", rows)
	}
}

func TestBestPerDay(t *testing.T) {
	rows := []MetricRow{
		{Day: "20250601", Epoch: 1, APMicro: 0.50},
		{Day: "20250601", Epoch: 2, APMicro: 0.58},
		{Day: "20250601", Epoch: 3, APMicro: 0.58}, // tie, higher epoch loses
		{Day: "20250602", Epoch: 1, APMicro: 0.61},
	}

	best := BestPerDay(rows)
	if len(best) != 2 {
		t.Fatalf("len(best) = %d, want 2", len(best))
	}
	if best[0].Day != "20250601" || best[0].Epoch != 2 {
		t.Errorf("best[0] = %s/%d, want 20250601/2", best[0].Day, best[0].Epoch)
	}
	if best[1].Day != "20250602" || best[1].Epoch != 1 {
		t.Errorf("best[1] = %s/%d", best[1].Day, best[1].Epoch)
	}
}

func TestSummarize(t *testing.T) {
	rows := []MetricRow{
		{Day: "20250601", APMicro: 0.5, PrevMicro: 0.4},
		{Day: "20250601", APMicro: 0.6, PrevMicro: 0.5},
		{Day: "20250602", APMicro: 0.7, PrevMicro: 0.6},
	}

	s := Summarize(rows)
	if s.CountRows != 3 || s.Days != 2 {
		t.Errorf("CountRows/Days = %d/%d, want 3/2", s.CountRows, s.Days)
	}
	if s.APMicroMean < 0.599 || s.APMicroMean > 0.601 {
		t.Errorf("APMicroMean = %v, want 0.6", s.APMicroMean)
	}
	if s.APMicroMedian != 0.6 {
		t.Errorf("APMicroMedian = %v, want 0.6", s.APMicroMedian)
	}
	if s.PrevMicroMean < 0.499 || s.PrevMicroMean > 0.501 {
		t.Errorf("PrevMicroMean = %v, want 0.5", s.PrevMicroMean)
	}
}

func TestSummarizeEvenMedian(t *testing.T) {
	rows := []MetricRow{
		{Day: "d", APMicro: 0.4},
		{Day: "d", APMicro: 0.6},
	}
	s := Summarize(rows)
	if s.APMicroMedian != 0.5 {
		t.Errorf("APMicroMedian = %v, want 0.5", s.APMicroMedian)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.CountRows != 0 || s.APMicroMean != 0 {
		t.Errorf("Summarize(nil) = %+v, want zero value", s)
	}
}

func TestNormalizeDay(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{float64(20250601), "20250601"},
		{float64(1), "00000001"},
		{"20250601", "20250601"},
		{"42", "00000042"},
		{"not-a-day", "not-a-day"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := NormalizeDay(tt.in); got != tt.want {
			t.Errorf("NormalizeDay(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
