package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prompted365/hive/internal/coord"
)

// ScheduleRecord is a recurring or one-off task submission rule. The
// schedule column holds the schedule spec JSON, task_spec the task
// template submitted on each run.
type ScheduleRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Schedule   string          `json:"schedule"`
	TaskSpec   coord.TaskSpec  `json:"task_spec"`
	Status     string          `json:"status"`
	NextRunAt  *time.Time      `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time      `json:"last_run_at,omitempty"`
	LastStatus string          `json:"last_status,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (s *Store) SaveSchedule(rec *ScheduleRecord) error {
	taskSpec, err := json.Marshal(rec.TaskSpec)
	if err != nil {
		return fmt.Errorf("encode task spec: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO schedules (id, name, schedule, task_spec, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			task_spec = excluded.task_spec,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		rec.ID, rec.Name, rec.Schedule, string(taskSpec), rec.Status, rec.NextRunAt)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

func scanSchedule(scanner interface{ Scan(dest ...any) error }) (*ScheduleRecord, error) {
	rec := &ScheduleRecord{}
	var taskSpec string
	var lastStatus, lastError sql.NullString
	err := scanner.Scan(&rec.ID, &rec.Name, &rec.Schedule, &taskSpec, &rec.Status,
		&rec.NextRunAt, &rec.LastRunAt, &lastStatus, &lastError, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(taskSpec), &rec.TaskSpec); err != nil {
		return nil, fmt.Errorf("decode task spec: %w", err)
	}
	rec.LastStatus = lastStatus.String
	rec.LastError = lastError.String
	return rec, nil
}

const scheduleColumns = `id, name, schedule, task_spec, status, next_run_at, last_run_at, last_status, last_error, created_at`

func (s *Store) GetSchedule(id string) (*ScheduleRecord, error) {
	row := s.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	rec, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return rec, nil
}

func (s *Store) ListSchedules() ([]*ScheduleRecord, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var recs []*ScheduleRecord
	for rows.Next() {
		rec, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) GetDueSchedules(now time.Time) ([]*ScheduleRecord, error) {
	rows, err := s.db.Query(`
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE status = 'active' AND next_run_at <= ?
		ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("get due schedules: %w", err)
	}
	defer rows.Close()

	var recs []*ScheduleRecord
	for rows.Next() {
		rec, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) UpdateScheduleRun(id string, lastStatus, lastError string, nextRunAt *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE schedules
		SET last_run_at = CURRENT_TIMESTAMP, last_status = ?, last_error = ?, next_run_at = ?
		WHERE id = ?`, lastStatus, lastError, nextRunAt, id)
	return err
}

func (s *Store) UpdateScheduleStatus(id string, status string) error {
	_, err := s.db.Exec(`UPDATE schedules SET status = ? WHERE id = ?`, status, id)
	return err
}

func (s *Store) DeleteSchedule(id string) error {
	_, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	return err
}
