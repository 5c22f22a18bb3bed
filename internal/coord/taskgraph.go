package coord

import (
	"time"

	"github.com/google/uuid"
)

// TaskGraph owns task records and their dependency edges. No cycle
// detection happens at submission; a cyclic dependency set stays
// pending forever. Like Registry, it relies on the Coordinator for
// serialization.
type TaskGraph struct {
	tasks map[string]*Task
}

func NewTaskGraph() *TaskGraph {
	return &TaskGraph{tasks: make(map[string]*Task)}
}

func (g *TaskGraph) add(spec TaskSpec, now time.Time) *Task {
	t := &Task{
		ID:                   uuid.New().String(),
		Type:                 spec.Type,
		Description:          spec.Description,
		Status:               TaskPending,
		Priority:             spec.Priority,
		SwarmID:              spec.SwarmID,
		Dependencies:         append([]string(nil), spec.Dependencies...),
		RequiredCapabilities: append([]string(nil), spec.RequiredCapabilities...),
		Context:              cloneBag(spec.Context),
		Deadline:             cloneTime(spec.Deadline),
		CreatedAt:            now,
	}
	g.tasks[t.ID] = t
	return t
}

func (g *TaskGraph) task(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// ready reports whether every dependency of t has completed. A
// dependency id that resolves to no known task is treated as
// permanently unsatisfied, blocking t forever.
func (g *TaskGraph) ready(t *Task) bool {
	for _, depID := range t.Dependencies {
		dep, ok := g.tasks[depID]
		if !ok || dep.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// readyTasks returns pending tasks whose dependencies are all completed.
func (g *TaskGraph) readyTasks() []*Task {
	var out []*Task
	for _, t := range g.tasks {
		if t.Status == TaskPending && g.ready(t) {
			out = append(out, t)
		}
	}
	return out
}

// pendingTasks returns all pending tasks regardless of readiness.
func (g *TaskGraph) pendingTasks() []*Task {
	var out []*Task
	for _, t := range g.tasks {
		if t.Status == TaskPending {
			out = append(out, t)
		}
	}
	return out
}

// dependents returns pending tasks whose dependency set contains id.
func (g *TaskGraph) dependents(id string) []*Task {
	var out []*Task
	for _, t := range g.tasks {
		if t.Status != TaskPending {
			continue
		}
		for _, depID := range t.Dependencies {
			if depID == id {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func (g *TaskGraph) listTasks(swarmID string, status TaskStatus) []*Task {
	var out []*Task
	for _, t := range g.tasks {
		if swarmID != "" && t.SwarmID != swarmID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out
}
