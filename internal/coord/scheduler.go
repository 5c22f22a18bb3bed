package coord

import (
	"sort"
	"time"
)

// Scheduler matches ready tasks to eligible idle agents. It is the only
// path that transitions a task out of pending, and every operation is
// an idempotent no-op when its preconditions do not hold: it is invoked
// from task submission, agent-idle transitions and dependency
// completion, and races with deletion are expected.
type Scheduler struct {
	reg   *Registry
	graph *TaskGraph
}

func NewScheduler(reg *Registry, graph *TaskGraph) *Scheduler {
	return &Scheduler{reg: reg, graph: graph}
}

// Assignment is the result of a successful scheduling decision.
type Assignment struct {
	Task  *Task
	Agent *Agent
}

// scheduleTask attempts to assign the pending task to the top-ranked
// eligible idle agent. Returns nil when the task is missing, not
// pending, blocked on dependencies, or no agent qualifies.
func (s *Scheduler) scheduleTask(taskID string, now time.Time) *Assignment {
	t, ok := s.graph.task(taskID)
	if !ok || t.Status != TaskPending {
		return nil
	}

	if !s.graph.ready(t) {
		return nil
	}

	candidates := s.candidates(t)
	if len(candidates) == 0 {
		return nil
	}

	// Highest priority first; among equals the agent idle the longest
	// wins, which approximates round-robin and prevents starvation.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].LastActive.Before(candidates[j].LastActive)
	})

	agent := candidates[0]
	agent.Status = AgentBusy
	agent.CurrentTaskID = t.ID
	agent.LastActive = now

	t.Status = TaskAssigned
	t.AssignedAgents = []string{agent.ID}
	assignedAt := now
	t.AssignedAt = &assignedAt

	return &Assignment{Task: t, Agent: agent}
}

func (s *Scheduler) candidates(t *Task) []*Agent {
	var out []*Agent
	for _, a := range s.reg.listAgents(t.SwarmID) {
		if a.Status != AgentIdle {
			continue
		}
		if !a.hasCapabilities(t.RequiredCapabilities) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// checkPendingTasks sweeps all pending tasks in priority-descending
// order and tries to schedule each. This is the recovery mechanism
// after any idle-agent event so no ready task is starved by event
// ordering.
func (s *Scheduler) checkPendingTasks(now time.Time) []*Assignment {
	pending := s.graph.pendingTasks()
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority > pending[j].Priority
	})

	var assigned []*Assignment
	for _, t := range pending {
		if a := s.scheduleTask(t.ID, now); a != nil {
			assigned = append(assigned, a)
		}
	}
	return assigned
}

// checkDependentTasks scans pending tasks depending on the completed
// task and schedules the ones that became ready. This unblocks a DAG
// layer by layer as dependencies resolve.
func (s *Scheduler) checkDependentTasks(completedTaskID string, now time.Time) []*Assignment {
	var assigned []*Assignment
	for _, t := range s.graph.dependents(completedTaskID) {
		if a := s.scheduleTask(t.ID, now); a != nil {
			assigned = append(assigned, a)
		}
	}
	return assigned
}
