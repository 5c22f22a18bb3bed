package schedule

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prompted365/hive/internal/config"
	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/event"
	"github.com/prompted365/hive/internal/store"
)

func newTestEnv(t *testing.T) (*store.Store, *coord.Coordinator) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, coord.New(event.New("test"))
}

func TestRunnerSubmitsDueSchedule(t *testing.T) {
	s, c := newTestEnv(t)
	c.RegisterAgent(coord.AgentSpec{Name: "worker"})

	past := time.Now().Add(-time.Minute)
	rec := &store.ScheduleRecord{
		ID:        "sch1",
		Name:      "recurring",
		Schedule:  `{"kind":"interval","interval_ms":60000}`,
		TaskSpec:  coord.TaskSpec{Type: "tick", Priority: 5},
		Status:    "active",
		NextRunAt: &past,
	}
	if err := s.SaveSchedule(rec); err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	r := NewRunner(s, c, config.ScheduleConfig{PollInterval: time.Minute})
	r.poll()

	tasks := c.ListTasks("", "")
	if len(tasks) != 1 {
		t.Fatalf("expected 1 submitted task, got %d", len(tasks))
	}
	if tasks[0].Type != "tick" {
		t.Errorf("expected type 'tick', got '%s'", tasks[0].Type)
	}

	got, _ := s.GetSchedule("sch1")
	if got.LastStatus != "submitted" {
		t.Errorf("expected last status 'submitted', got '%s'", got.LastStatus)
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(time.Now()) {
		t.Errorf("expected next run advanced into the future, got %v", got.NextRunAt)
	}
	if got.Status != "active" {
		t.Errorf("expected recurring schedule to stay active, got '%s'", got.Status)
	}
}

func TestRunnerCompletesOneOff(t *testing.T) {
	s, c := newTestEnv(t)

	past := time.Now().Add(-time.Minute)
	rec := &store.ScheduleRecord{
		ID:        "sch2",
		Name:      "one shot",
		Schedule:  fmt.Sprintf(`{"kind":"once","at_ms":%d}`, past.UnixMilli()),
		TaskSpec:  coord.TaskSpec{Type: "oneoff"},
		Status:    "active",
		NextRunAt: &past,
	}
	if err := s.SaveSchedule(rec); err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	r := NewRunner(s, c, config.ScheduleConfig{PollInterval: time.Minute})
	r.poll()

	got, _ := s.GetSchedule("sch2")
	if got.Status != "completed" {
		t.Errorf("expected completed after single run, got '%s'", got.Status)
	}
	if len(c.ListTasks("", "")) != 1 {
		t.Error("expected the single submission to have happened")
	}
}

func TestDeadlineSweepFailsOverdueTask(t *testing.T) {
	_, c := newTestEnv(t)
	c.RegisterAgent(coord.AgentSpec{Name: "worker"})

	past := time.Now().Add(-time.Minute)
	overdue := c.SubmitTask(coord.TaskSpec{Type: "slow", Deadline: &past})

	future := time.Now().Add(time.Hour)
	healthy := c.SubmitTask(coord.TaskSpec{Type: "ok", Deadline: &future})

	w := NewDeadlineWatcher(c, config.DeadlineConfig{PollInterval: time.Minute})
	w.sweep(time.Now())

	got, _ := c.GetTask(overdue.ID)
	if got.Status != coord.TaskFailed {
		t.Fatalf("expected overdue task failed, got %s", got.Status)
	}
	if got.Error == "" {
		t.Error("expected deadline error recorded")
	}

	got, _ = c.GetTask(healthy.ID)
	if got.Status.IsTerminal() {
		t.Errorf("task within deadline must not be touched, got %s", got.Status)
	}
}

func TestDeadlineSweepIgnoresPending(t *testing.T) {
	_, c := newTestEnv(t)

	// No agents: the task stays pending and the watcher leaves it alone
	// even though the deadline has passed.
	past := time.Now().Add(-time.Minute)
	task := c.SubmitTask(coord.TaskSpec{Type: "queued", Deadline: &past})

	w := NewDeadlineWatcher(c, config.DeadlineConfig{})
	w.sweep(time.Now())

	got, _ := c.GetTask(task.ID)
	if got.Status != coord.TaskPending {
		t.Errorf("expected pending untouched, got %s", got.Status)
	}
}
