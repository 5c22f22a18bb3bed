package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/event"
)

func waitForStatus(t *testing.T, c *coord.Coordinator, taskID string, want coord.TaskStatus) *coord.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := c.GetTask(taskID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if got.Status == want {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := c.GetTask(taskID)
	t.Fatalf("timed out waiting for %s, last status %s", want, got.Status)
	return nil
}

func TestPoolRunsHandlerToCompletion(t *testing.T) {
	bus := event.New("test")
	c := coord.New(bus)

	pool := NewPool(c)
	pool.Register("greet", func(ctx context.Context, task *coord.Task, report func(int)) (map[string]any, error) {
		report(50)
		return map[string]any{"summary": "hello " + task.Description}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx, bus)
	defer pool.Stop()

	a := c.RegisterAgent(coord.AgentSpec{Name: "worker"})
	task := c.SubmitTask(coord.TaskSpec{Type: "greet", Description: "world"})

	done := waitForStatus(t, c, task.ID, coord.TaskCompleted)
	if done.Result["summary"] != "hello world" {
		t.Errorf("unexpected result: %v", done.Result)
	}

	agent, _ := c.GetAgent(a.ID)
	if agent.Status != coord.AgentIdle {
		t.Errorf("expected agent released, got %s", agent.Status)
	}
	if agent.TasksCompleted != 1 {
		t.Errorf("expected 1 completion, got %d", agent.TasksCompleted)
	}
}

func TestPoolHandlerError(t *testing.T) {
	bus := event.New("test")
	c := coord.New(bus)

	pool := NewPool(c)
	pool.Register("flaky", func(context.Context, *coord.Task, func(int)) (map[string]any, error) {
		return nil, errors.New("upstream unavailable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx, bus)
	defer pool.Stop()

	c.RegisterAgent(coord.AgentSpec{Name: "worker"})
	task := c.SubmitTask(coord.TaskSpec{Type: "flaky"})

	failed := waitForStatus(t, c, task.ID, coord.TaskFailed)
	if failed.Error != "upstream unavailable" {
		t.Errorf("unexpected error: %s", failed.Error)
	}
}

func TestPoolUnknownTypeFails(t *testing.T) {
	bus := event.New("test")
	c := coord.New(bus)

	pool := NewPool(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx, bus)
	defer pool.Stop()

	c.RegisterAgent(coord.AgentSpec{Name: "worker"})
	task := c.SubmitTask(coord.TaskSpec{Type: "mystery"})

	failed := waitForStatus(t, c, task.ID, coord.TaskFailed)
	if failed.Error == "" {
		t.Error("expected missing-handler error recorded")
	}
}

func TestPoolStopWaitsForInFlight(t *testing.T) {
	bus := event.New("test")
	c := coord.New(bus)

	release := make(chan struct{})
	pool := NewPool(c)
	pool.Register("slow", func(context.Context, *coord.Task, func(int)) (map[string]any, error) {
		<-release
		return map[string]any{"summary": "done"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx, bus)

	c.RegisterAgent(coord.AgentSpec{Name: "worker"})
	task := c.SubmitTask(coord.TaskSpec{Type: "slow"})
	waitForStatus(t, c, task.ID, coord.TaskRunning)

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a task was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never returned after handler finished")
	}

	waitForStatus(t, c, task.ID, coord.TaskCompleted)
}
