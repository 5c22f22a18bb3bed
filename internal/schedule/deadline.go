package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prompted365/hive/internal/config"
	"github.com/prompted365/hive/internal/coord"
)

// DeadlineWatcher enforces advisory task deadlines from outside the
// coordination core: the core itself never reacts to deadline expiry.
// The watcher polls assigned and running tasks and fails the overdue
// ones through the normal status-update path.
type DeadlineWatcher struct {
	coord        *coord.Coordinator
	pollInterval time.Duration
}

func NewDeadlineWatcher(c *coord.Coordinator, cfg config.DeadlineConfig) *DeadlineWatcher {
	interval := cfg.PollInterval
	if interval == 0 {
		interval = 15 * time.Second
	}
	return &DeadlineWatcher{coord: c, pollInterval: interval}
}

func (w *DeadlineWatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("deadline watcher started", "poll_interval", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("deadline watcher stopped")
			return
		case <-ticker.C:
			w.sweep(time.Now())
		}
	}
}

func (w *DeadlineWatcher) sweep(now time.Time) {
	for _, status := range []coord.TaskStatus{coord.TaskAssigned, coord.TaskRunning} {
		for _, t := range w.coord.ListTasks("", status) {
			if t.Deadline == nil || t.Deadline.After(now) {
				continue
			}
			slog.Warn("task deadline exceeded", "task_id", t.ID, "deadline", t.Deadline)
			_, err := w.coord.UpdateTaskStatus(t.ID, coord.TaskUpdate{
				Status: coord.TaskFailed,
				Error:  fmt.Sprintf("deadline %s exceeded", t.Deadline.Format(time.RFC3339)),
			})
			if err != nil {
				// Completed or cancelled since we listed it.
				slog.Debug("deadline failure rejected", "task_id", t.ID, "error", err)
			}
		}
	}
}
