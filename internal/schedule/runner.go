package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/prompted365/hive/internal/config"
	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/store"
)

// Runner polls the schedules table and submits each due task template
// through the coordination facade. One-off schedules complete after
// their single run.
type Runner struct {
	store        *store.Store
	coord        *coord.Coordinator
	pollInterval time.Duration
	reloadCh     chan struct{}
}

func NewRunner(s *store.Store, c *coord.Coordinator, cfg config.ScheduleConfig) *Runner {
	return &Runner{
		store:        s,
		coord:        c,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// UpdateConfig changes the poll interval and signals the run loop to
// reset its ticker.
func (r *Runner) UpdateConfig(pollInterval time.Duration) {
	r.pollInterval = pollInterval
	select {
	case r.reloadCh <- struct{}{}:
	default:
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.pollInterval == 0 {
		r.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	slog.Info("schedule runner started", "poll_interval", r.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("schedule runner stopped")
			return
		case <-r.reloadCh:
			ticker.Reset(r.pollInterval)
			slog.Info("schedule runner config reloaded", "poll_interval", r.pollInterval)
		case <-ticker.C:
			r.poll()
		}
	}
}

func (r *Runner) poll() {
	due, err := r.store.GetDueSchedules(time.Now())
	if err != nil {
		slog.Error("failed to get due schedules", "error", err)
		return
	}

	for _, rec := range due {
		r.execute(rec)
	}
}

func (r *Runner) execute(rec *store.ScheduleRecord) {
	slog.Info("submitting scheduled task", "schedule_id", rec.ID, "name", rec.Name, "type", rec.TaskSpec.Type)

	t := r.coord.SubmitTask(rec.TaskSpec)

	nextRun := CalculateNextRun(rec.Schedule)

	if err := r.store.UpdateScheduleRun(rec.ID, "submitted", "", nextRun); err != nil {
		slog.Error("failed to update schedule run", "schedule_id", rec.ID, "error", err)
	}

	// Mark one-off schedules completed once they have no next run.
	if nextRun == nil {
		slog.Info("no next run, completing schedule", "schedule_id", rec.ID, "name", rec.Name)
		if err := r.store.UpdateScheduleStatus(rec.ID, "completed"); err != nil {
			slog.Error("failed to complete schedule", "schedule_id", rec.ID, "error", err)
		}
	}

	slog.Debug("scheduled task submitted", "schedule_id", rec.ID, "task_id", t.ID, "status", t.Status)
}
