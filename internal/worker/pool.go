// Package worker is the task-processing collaborator: a registered
// handler table keyed on task type, driven by task:assigned events.
// The coordination core knows nothing about processing; it only sees
// the UpdateTaskStatus calls made from here.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/event"
)

// Handler processes one task and returns its result payload. The
// report callback publishes intermediate progress (0–100).
type Handler func(ctx context.Context, task *coord.Task, report func(progress int)) (map[string]any, error)

// Pool dispatches assigned tasks to handlers. Each task runs on its
// own goroutine; the pool places no constraint on processing latency.
type Pool struct {
	coord *coord.Coordinator

	mu       sync.RWMutex
	handlers map[string]Handler

	unsub func()
	wg    sync.WaitGroup
}

func NewPool(c *coord.Coordinator) *Pool {
	return &Pool{
		coord:    c,
		handlers: make(map[string]Handler),
	}
}

// Register installs the handler for a task type, replacing any
// previous registration.
func (p *Pool) Register(taskType string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[taskType] = h
}

// Start subscribes the pool to assignment events. Processing runs
// until ctx is cancelled; Stop waits for in-flight tasks.
func (p *Pool) Start(ctx context.Context, bus *event.Bus) {
	p.unsub = bus.Subscribe(coord.EventTaskAssigned, func(ev event.Event) {
		taskID, _ := ev.Data["task_id"].(string)
		if taskID == "" {
			return
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx, taskID)
		}()
	})
}

func (p *Pool) Stop() {
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, taskID string) {
	t, err := p.coord.GetTask(taskID)
	if err != nil {
		return // cancelled or deleted before we got to it
	}

	p.mu.RLock()
	h, ok := p.handlers[t.Type]
	p.mu.RUnlock()

	if !ok {
		slog.Warn("no handler for task type", "task_id", t.ID, "type", t.Type)
		p.fail(t.ID, fmt.Sprintf("no handler registered for task type %q", t.Type))
		return
	}

	if _, err := p.coord.UpdateTaskStatus(t.ID, coord.TaskUpdate{Status: coord.TaskRunning}); err != nil {
		// Requeued or cancelled between assignment and pickup.
		slog.Debug("task no longer runnable", "task_id", t.ID, "error", err)
		return
	}

	report := func(progress int) {
		_, _ = p.coord.UpdateTaskStatus(t.ID, coord.TaskUpdate{Progress: &progress})
	}

	result, err := h(ctx, t, report)
	if err != nil {
		slog.Info("task failed", "task_id", t.ID, "type", t.Type, "error", err)
		p.fail(t.ID, err.Error())
		return
	}

	if _, err := p.coord.UpdateTaskStatus(t.ID, coord.TaskUpdate{
		Status: coord.TaskCompleted,
		Result: result,
	}); err != nil {
		slog.Warn("task completion rejected", "task_id", t.ID, "error", err)
	}
}

func (p *Pool) fail(taskID, message string) {
	if _, err := p.coord.UpdateTaskStatus(taskID, coord.TaskUpdate{
		Status: coord.TaskFailed,
		Error:  message,
	}); err != nil {
		slog.Warn("task failure rejected", "task_id", taskID, "error", err)
	}
}
