package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Schedule describes when a stored task template is submitted: on a
// cron cadence, every fixed interval, or once at a point in time.
type Schedule struct {
	Kind       string `json:"kind"` // "cron", "interval", "once"
	CronExpr   string `json:"cron_expr"`
	IntervalMs int64  `json:"interval_ms"`
	AtMs       int64  `json:"at_ms"`
}

func ParseSchedule(raw string) (*Schedule, error) {
	var s Schedule
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schedule) validate() error {
	switch s.Kind {
	case "cron":
		if !gronx.New().IsValid(s.CronExpr) {
			return fmt.Errorf("invalid cron expression: %s", s.CronExpr)
		}
	case "interval":
		if s.IntervalMs <= 0 {
			return fmt.Errorf("interval_ms must be positive")
		}
	case "once":
		if s.AtMs <= 0 {
			return fmt.Errorf("at_ms must be positive")
		}
	default:
		return fmt.Errorf("unknown schedule kind: %s", s.Kind)
	}
	return nil
}

// CalculateNextRun returns the next run time for a schedule JSON
// string, or nil when the schedule has no further runs (elapsed
// one-offs, unparseable input).
func CalculateNextRun(scheduleJSON string) *time.Time {
	s, err := ParseSchedule(scheduleJSON)
	if err != nil {
		return nil
	}

	now := time.Now()
	switch s.Kind {
	case "cron":
		next, err := gronx.NextTick(s.CronExpr, false)
		if err != nil {
			return nil
		}
		return &next
	case "interval":
		next := now.Add(time.Duration(s.IntervalMs) * time.Millisecond)
		return &next
	case "once":
		at := time.UnixMilli(s.AtMs)
		if !at.After(now) {
			return nil
		}
		return &at
	}
	return nil
}

// NormalizeSchedule accepts either the JSON schedule form or a bare
// cron expression and returns the validated JSON form. Bare cron
// strings are wrapped as kind=cron.
func NormalizeSchedule(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	var s Schedule
	if err := json.Unmarshal([]byte(raw), &s); err == nil && s.Kind != "" {
		if err := s.validate(); err != nil {
			return "", err
		}
		return raw, nil
	}

	if !gronx.New().IsValid(raw) {
		return "", fmt.Errorf("invalid schedule: not valid JSON or cron expression: %s", raw)
	}
	data, err := json.Marshal(Schedule{Kind: "cron", CronExpr: raw})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
