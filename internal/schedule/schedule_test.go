package schedule

import (
	"fmt"
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Schedule
	}{
		{"cron sweep", `{"kind":"cron","cron_expr":"*/5 * * * *"}`, Schedule{Kind: "cron", CronExpr: "*/5 * * * *"}},
		{"interval heartbeat", `{"kind":"interval","interval_ms":30000}`, Schedule{Kind: "interval", IntervalMs: 30000}},
		{"one-off report", `{"kind":"once","at_ms":1767225600000}`, Schedule{Kind: "once", AtMs: 1767225600000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if *s != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, *s)
			}
		})
	}

	if _, err := ParseSchedule("every tuesday"); err == nil {
		t.Error("expected error for non-JSON input")
	}
}

func TestCalculateNextRunCron(t *testing.T) {
	next := CalculateNextRun(`{"kind":"cron","cron_expr":"* * * * *"}`)
	if next == nil {
		t.Fatal("expected a next tick for an every-minute cron")
	}
	if next.Before(time.Now()) {
		t.Error("expected next tick in the future")
	}
}

func TestCalculateNextRunInterval(t *testing.T) {
	next := CalculateNextRun(`{"kind":"interval","interval_ms":45000}`)
	if next == nil {
		t.Fatal("expected a next run for an interval schedule")
	}
	if d := time.Until(*next); d < 44*time.Second || d > 46*time.Second {
		t.Errorf("expected next run ~45s out, got %v", d)
	}
}

func TestCalculateNextRunOnce(t *testing.T) {
	future := time.Now().Add(30 * time.Minute).UnixMilli()
	if next := CalculateNextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, future)); next == nil {
		t.Fatal("expected a next run for a future one-off")
	}

	past := time.Now().Add(-30 * time.Minute).UnixMilli()
	if next := CalculateNextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, past)); next != nil {
		t.Error("expected nil for an elapsed one-off")
	}
}

func TestCalculateNextRunInvalid(t *testing.T) {
	for _, raw := range []string{
		"nightly",
		`{"kind":"weekly"}`,
		`{"kind":"cron","cron_expr":"not a cron"}`,
	} {
		if next := CalculateNextRun(raw); next != nil {
			t.Errorf("expected nil for %q, got %v", raw, next)
		}
	}
}

func TestNormalizeScheduleWrapsPlainCron(t *testing.T) {
	result, err := NormalizeSchedule("  0 */4 * * *  ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s, err := ParseSchedule(result)
	if err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}
	if s.Kind != "cron" || s.CronExpr != "0 */4 * * *" {
		t.Errorf("unexpected wrap: %+v", s)
	}
}

func TestNormalizeSchedulePassthrough(t *testing.T) {
	inputs := []string{
		`{"kind":"cron","cron_expr":"15 3 * * *"}`,
		`{"kind":"interval","interval_ms":600000}`,
		fmt.Sprintf(`{"kind":"once","at_ms":%d}`, time.Now().Add(time.Hour).UnixMilli()),
	}
	for _, input := range inputs {
		result, err := NormalizeSchedule(input)
		if err != nil {
			t.Fatalf("normalize %q: %v", input, err)
		}
		if result != input {
			t.Errorf("expected passthrough for %q, got %q", input, result)
		}
	}
}

func TestNormalizeScheduleRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"free text", "whenever the queue is empty"},
		{"bad cron in json", `{"kind":"cron","cron_expr":"61 * * * *"}`},
		{"zero interval", `{"kind":"interval","interval_ms":0}`},
		{"negative once", `{"kind":"once","at_ms":-5}`},
		{"unknown kind", `{"kind":"hourly"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizeSchedule(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}
