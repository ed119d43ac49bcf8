package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"standard cron", "0 2 * * *", false},
		{"cron with seconds", "*/5 * * * * *", false},
		{"descriptor", "@daily", false},
		{"at-every", "@every 5m", false},
		{"interval minutes", "every 5m", false},
		{"interval verbose", "every 2 hours", false},
		{"interval seconds", "every 30s", false},
		{"interval days", "every 1 day", false},
		{"empty", "", true},
		{"garbage", "whenever it suits", true},
		{"zero interval", "every 0m", true},
		{"bad unit", "every 5 fortnights", true},
		{"too few fields", "1 2 3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := ParseSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if !tt.wantErr && schedule == nil {
				t.Error("schedule is nil without error")
			}
		})
	}
}

func TestParseScheduleIntervalNext(t *testing.T) {
	schedule, err := ParseSchedule("every 5m")
	if err != nil {
		t.Fatalf("ParseSchedule() error = %v", err)
	}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	next := schedule.Next(now)
	if got := next.Sub(now); got != 5*time.Minute {
		t.Errorf("Next() delta = %v, want 5m", got)
	}
}

func TestSchedulerAdd(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	if err := s.Add("train", "@daily", func() {}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("train", "@hourly", func() {}); err == nil {
		t.Error("duplicate Add() succeeded")
	}
	if err := s.Add("", "@daily", func() {}); err == nil {
		t.Error("Add with empty job id succeeded")
	}
	if err := s.Add("bad", "not a schedule", func() {}); err == nil {
		t.Error("Add with bad schedule succeeded")
	}
	if err := s.Add("nilfire", "@daily", nil); err == nil {
		t.Error("Add with nil fire func succeeded")
	}
}

func TestSchedulerNextRun(t *testing.T) {
	s := New(context.Background(), nil)
	defer s.Stop()

	if _, ok := s.NextRun("absent"); ok {
		t.Error("NextRun(absent) ok = true")
	}

	if err := s.Add("train", "@daily", func() {}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start()

	next, ok := s.NextRun("train")
	if !ok {
		t.Fatal("NextRun(train) ok = false")
	}
	if !next.After(time.Now()) {
		t.Errorf("NextRun = %v, want a future time", next)
	}
}

func TestSchedulerFires(t *testing.T) {
	s := New(context.Background(), nil)

	var fired atomic.Int32
	if err := s.Add("tick", "every 1s", func() { fired.Add(1) }); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	s.Stop()

	if fired.Load() == 0 {
		t.Error("scheduled job never fired")
	}
}

func TestSchedulerStopPreventsFiring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, nil)

	var fired atomic.Int32
	if err := s.Add("tick", "every 1s", func() { fired.Add(1) }); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start()
	cancel()
	s.Stop()

	count := fired.Load()
	time.Sleep(1500 * time.Millisecond)
	if fired.Load() != count {
		t.Error("job fired after Stop")
	}
}
