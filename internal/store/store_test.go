package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/event"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAgentRoundtrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	a := &coord.Agent{
		ID:           "a1",
		Name:         "worker",
		Type:         "worker",
		Role:         "builder",
		Capabilities: []string{"search", "gpu"},
		Priority:     5,
		Status:       coord.AgentIdle,
		SwarmID:      "s1",
		Memory: []coord.MemoryEntry{
			{TaskID: "t1", TaskType: "index", Summary: "done", Timestamp: now},
		},
		Context:   map[string]any{"region": "eu"},
		CreatedAt: now,
	}
	if err := s.SaveAgent(a); err != nil {
		t.Fatalf("save agent: %v", err)
	}

	got, err := s.GetAgent("a1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got == nil {
		t.Fatal("expected agent, got nil")
	}
	if got.Name != "worker" || got.Role != "builder" {
		t.Errorf("unexpected fields: %+v", got)
	}
	if len(got.Capabilities) != 2 || got.Capabilities[1] != "gpu" {
		t.Errorf("unexpected capabilities: %v", got.Capabilities)
	}
	if len(got.Memory) != 1 || got.Memory[0].TaskID != "t1" {
		t.Errorf("unexpected memory: %v", got.Memory)
	}
	if got.Context["region"] != "eu" {
		t.Errorf("unexpected context: %v", got.Context)
	}

	// Upsert
	a.Status = coord.AgentBusy
	if err := s.SaveAgent(a); err != nil {
		t.Fatalf("update agent: %v", err)
	}
	got, _ = s.GetAgent("a1")
	if got.Status != coord.AgentBusy {
		t.Errorf("expected busy, got %s", got.Status)
	}

	if err := s.DeleteAgent("a1"); err != nil {
		t.Fatalf("delete agent: %v", err)
	}
	got, err = s.GetAgent("a1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSwarmRoundtrip(t *testing.T) {
	s := newTestStore(t)

	sw := &coord.Swarm{
		ID:           "s1",
		Name:         "research",
		Status:       coord.SwarmReady,
		SharedMemory: map[string]any{"goal": "ship"},
		AgentIDs:     []string{"a1", "a2"},
		TaskIDs:      []string{"t1"},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.SaveSwarm(sw); err != nil {
		t.Fatalf("save swarm: %v", err)
	}

	got, err := s.GetSwarm("s1")
	if err != nil {
		t.Fatalf("get swarm: %v", err)
	}
	if got == nil {
		t.Fatal("expected swarm, got nil")
	}
	if got.SharedMemory["goal"] != "ship" {
		t.Errorf("unexpected memory: %v", got.SharedMemory)
	}
	if len(got.AgentIDs) != 2 {
		t.Errorf("unexpected roster: %v", got.AgentIDs)
	}
}

func TestTaskRoundtrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	deadline := now.Add(time.Hour)
	task := &coord.Task{
		ID:                   "t1",
		Type:                 "transform",
		Description:          "second stage",
		Status:               coord.TaskAssigned,
		Priority:             8,
		SwarmID:              "s1",
		AssignedAgents:       []string{"a1"},
		Dependencies:         []string{"t0"},
		RequiredCapabilities: []string{"etl"},
		Result:               map[string]any{"rows": float64(42)},
		Progress:             60,
		Context:              map[string]any{"source": "s3"},
		Deadline:             &deadline,
		ParentID:             "t0",
		CreatedAt:            now,
		AssignedAt:           &now,
	}
	if err := s.SaveTask(task); err != nil {
		t.Fatalf("save task: %v", err)
	}

	got, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got == nil {
		t.Fatal("expected task, got nil")
	}
	if got.Status != coord.TaskAssigned || got.Priority != 8 {
		t.Errorf("unexpected fields: %+v", got)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != "t0" {
		t.Errorf("unexpected dependencies: %v", got.Dependencies)
	}
	if got.Result["rows"] != float64(42) {
		t.Errorf("unexpected result: %v", got.Result)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("unexpected deadline: %v", got.Deadline)
	}
	if got.AssignedAt == nil {
		t.Error("expected assigned_at preserved")
	}
}

func TestMessagesChronological(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		if err := s.SaveMessage("a1", "peer", string(rune('a'+i)), base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("save message %d: %v", i, err)
		}
	}

	msgs, err := s.GetMessages("a1", 3)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// Most recent window, oldest first.
	if msgs[0].Content != "c" || msgs[2].Content != "e" {
		t.Errorf("unexpected order: %v", msgs)
	}
}

func TestScheduleRoundtrip(t *testing.T) {
	s := newTestStore(t)

	next := time.Now().UTC().Add(-time.Minute)
	rec := &ScheduleRecord{
		ID:        "sch1",
		Name:      "nightly index",
		Schedule:  `{"kind":"cron","cron_expr":"0 2 * * *"}`,
		TaskSpec:  coord.TaskSpec{Type: "index", Priority: 5},
		Status:    "active",
		NextRunAt: &next,
	}
	if err := s.SaveSchedule(rec); err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	due, err := s.GetDueSchedules(time.Now().UTC())
	if err != nil {
		t.Fatalf("get due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "sch1" {
		t.Fatalf("expected schedule due, got %v", due)
	}
	if due[0].TaskSpec.Type != "index" {
		t.Errorf("unexpected task spec: %+v", due[0].TaskSpec)
	}

	future := time.Now().UTC().Add(time.Hour)
	if err := s.UpdateScheduleRun("sch1", "submitted", "", &future); err != nil {
		t.Fatalf("update run: %v", err)
	}
	due, _ = s.GetDueSchedules(time.Now().UTC())
	if len(due) != 0 {
		t.Errorf("expected no due schedules after advance, got %d", len(due))
	}

	if err := s.UpdateScheduleStatus("sch1", "paused"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := s.GetSchedule("sch1")
	if got.Status != "paused" {
		t.Errorf("expected paused, got %s", got.Status)
	}
}

func TestMirrorAndSeed(t *testing.T) {
	s := newTestStore(t)

	bus := event.New("test")
	c := coord.New(bus)

	mirror := NewMirror(s, c)
	mirror.Start(bus)
	defer mirror.Stop()

	sw := c.CreateSwarm(coord.SwarmSpec{Name: "pod", Agents: []coord.AgentSpec{{Name: "m1"}}})
	task := c.SubmitTask(coord.TaskSpec{Type: "job", SwarmID: sw.ID})
	members := c.ListAgents(sw.ID)
	if err := c.SendAgentMessage("ops", members[0].ID, "hello"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	// Mirror writes happen synchronously on the publishing goroutine.
	storedTask, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("get mirrored task: %v", err)
	}
	if storedTask == nil {
		t.Fatal("expected mirrored task row")
	}
	if storedTask.Status != coord.TaskAssigned {
		t.Errorf("expected assigned in mirror, got %s", storedTask.Status)
	}

	// A second coordinator seeded from the same store sees the state.
	c2 := coord.New(event.New("test2"))
	if err := s.Seed(c2); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gotSwarm, err := c2.GetSwarm(sw.ID)
	if err != nil {
		t.Fatalf("get seeded swarm: %v", err)
	}
	if gotSwarm.AgentCount != 1 {
		t.Errorf("expected roster preserved, got %d", gotSwarm.AgentCount)
	}

	gotAgent, err := c2.GetAgent(members[0].ID)
	if err != nil {
		t.Fatalf("get seeded agent: %v", err)
	}
	if gotAgent.Status != coord.AgentBusy {
		t.Errorf("expected busy agent after seed, got %s", gotAgent.Status)
	}
	if len(gotAgent.Messages) != 1 || gotAgent.Messages[0].Content != "hello" {
		t.Errorf("expected message history reloaded, got %v", gotAgent.Messages)
	}

	gotTask, err := c2.GetTask(task.ID)
	if err != nil {
		t.Fatalf("get seeded task: %v", err)
	}
	if gotTask.Status != coord.TaskAssigned {
		t.Errorf("expected assigned after seed, got %s", gotTask.Status)
	}
}

func TestMirrorAgentDeleted(t *testing.T) {
	s := newTestStore(t)
	bus := event.New("test")
	c := coord.New(bus)
	mirror := NewMirror(s, c)
	mirror.Start(bus)
	defer mirror.Stop()

	a := c.RegisterAgent(coord.AgentSpec{Name: "temp"})
	if row, _ := s.GetAgent(a.ID); row == nil {
		t.Fatal("expected mirrored agent row")
	}

	c.DeleteAgent(a.ID)
	if row, _ := s.GetAgent(a.ID); row != nil {
		t.Error("expected agent row removed after delete event")
	}
}
