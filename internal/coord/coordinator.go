// Package coord implements the task-coordination core: the agent and
// swarm registry, the task dependency graph, the scheduler that
// matches ready tasks to idle agents, and the facade other subsystems
// call. All state lives in memory; persistence and task processing are
// external collaborators reacting to published events.
package coord

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/prompted365/hive/internal/event"
)

// Coordinator is the single entry point for all coordination state
// mutations. One mutex serializes the registry, the task graph and the
// scheduler as a single critical section: no two scheduling decisions
// can observe an interleaved state, so a given idle agent is never
// handed two tasks. Events collected during a mutation are published
// after the lock is released, in transition order, so handlers may
// re-enter the Coordinator.
type Coordinator struct {
	mu    sync.Mutex
	reg   *Registry
	graph *TaskGraph
	sched *Scheduler
	bus   *event.Bus
	now   func() time.Time
}

func New(bus *event.Bus) *Coordinator {
	reg := NewRegistry()
	graph := NewTaskGraph()
	return &Coordinator{
		reg:   reg,
		graph: graph,
		sched: NewScheduler(reg, graph),
		bus:   bus,
		now:   time.Now,
	}
}

type pendingEvent struct {
	typ  string
	data map[string]any
}

func (c *Coordinator) flush(events []pendingEvent) {
	for _, ev := range events {
		c.bus.Publish(ev.typ, ev.data)
	}
}

// RegisterAgent creates an agent from spec. Registration is permissive
// about the swarm reference: an agent naming an unknown swarm is still
// created standalone. The new agent immediately participates in a
// pending-task sweep, so a task starved for its capabilities gets
// assigned in the same call.
func (c *Coordinator) RegisterAgent(spec AgentSpec) *Agent {
	c.mu.Lock()
	now := c.now()
	a := c.reg.register(spec, now)

	events := []pendingEvent{{EventAgentCreated, map[string]any{
		"agent_id": a.ID,
		"name":     a.Name,
		"role":     a.Role,
		"swarm_id": a.SwarmID,
	}}}
	events = append(events, c.sweep(now)...)

	out := a.Clone()
	c.mu.Unlock()

	c.flush(events)
	return out
}

func (c *Coordinator) GetAgent(id string) (*Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.reg.agent(id)
	if !ok {
		return nil, ErrAgentNotFound
	}
	return a.Clone(), nil
}

// ListAgents returns all agents, or the members of a swarm when
// swarmID is non-empty. Order is unspecified.
func (c *Coordinator) ListAgents(swarmID string) []*Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	agents := c.reg.listAgents(swarmID)
	out := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Clone())
	}
	return out
}

// UpdateAgentStatus sets the agent's status and refreshes its
// last-active mark. An agent turning idle triggers a pending-task
// sweep before the call returns.
func (c *Coordinator) UpdateAgentStatus(id string, status AgentStatus) error {
	c.mu.Lock()
	a, ok := c.reg.agent(id)
	if !ok {
		c.mu.Unlock()
		return ErrAgentNotFound
	}

	now := c.now()
	a.Status = status
	a.LastActive = now
	if status != AgentBusy {
		a.CurrentTaskID = ""
	}

	events := []pendingEvent{{EventAgentStatus, map[string]any{
		"agent_id": id,
		"status":   string(status),
	}}}
	if status == AgentIdle {
		events = append(events, c.sweep(now)...)
	}
	c.mu.Unlock()

	c.flush(events)
	return nil
}

// DeleteAgent removes the agent, cancelling any in-flight task back to
// pending so the next sweep can reassign it. Returns false when the
// agent did not exist.
func (c *Coordinator) DeleteAgent(id string) bool {
	c.mu.Lock()
	a, ok := c.reg.agent(id)
	if !ok {
		c.mu.Unlock()
		return false
	}

	now := c.now()
	var events []pendingEvent

	if a.CurrentTaskID != "" {
		if t, tok := c.graph.task(a.CurrentTaskID); tok && !t.Status.IsTerminal() {
			t.Status = TaskPending
			t.AssignedAgents = nil
			t.AssignedAt = nil
			events = append(events, pendingEvent{EventTaskRequeued, map[string]any{
				"task_id":  t.ID,
				"agent_id": id,
			}})
		}
	}

	c.reg.remove(id)
	events = append(events, pendingEvent{EventAgentDeleted, map[string]any{"agent_id": id}})

	// The requeued task may be schedulable on a surviving idle agent.
	events = append(events, c.sweep(now)...)
	c.mu.Unlock()

	c.flush(events)
	return true
}

// CreateSwarm creates the swarm record and registers its initial
// roster with the swarm id bound. The swarm turns ready once every
// initial agent is registered; registration is best-effort and cannot
// partially fail under normal input.
func (c *Coordinator) CreateSwarm(spec SwarmSpec) *Swarm {
	c.mu.Lock()
	now := c.now()
	s := c.reg.createSwarm(spec, now)

	var events []pendingEvent
	for _, agentSpec := range spec.Agents {
		agentSpec.SwarmID = s.ID
		a := c.reg.register(agentSpec, now)
		events = append(events, pendingEvent{EventAgentCreated, map[string]any{
			"agent_id": a.ID,
			"name":     a.Name,
			"role":     a.Role,
			"swarm_id": s.ID,
		}})
	}
	s.Status = SwarmReady

	events = append(events, pendingEvent{EventSwarmCreated, map[string]any{
		"swarm_id":    s.ID,
		"name":        s.Name,
		"agent_count": len(s.AgentIDs),
	}})
	events = append(events, c.sweep(now)...)

	out := s.Clone()
	c.mu.Unlock()

	c.flush(events)
	return out
}

func (c *Coordinator) GetSwarm(id string) (*Swarm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.reg.swarm(id)
	if !ok {
		return nil, ErrSwarmNotFound
	}
	return s.Clone(), nil
}

func (c *Coordinator) ListSwarms() []*Swarm {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Swarm, 0, len(c.reg.swarms))
	for _, s := range c.reg.swarms {
		out = append(out, s.Clone())
	}
	return out
}

// UpdateSwarmMemory shallow-merges patch into the swarm's shared
// memory and returns the merged result. Last write wins per key.
func (c *Coordinator) UpdateSwarmMemory(swarmID string, patch map[string]any, actorID string) (map[string]any, error) {
	c.mu.Lock()
	merged, err := c.reg.mergeSwarmMemory(swarmID, patch)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	events := []pendingEvent{{EventSwarmMemory, map[string]any{
		"swarm_id": swarmID,
		"actor_id": actorID,
		"keys":     keys,
	}}}
	c.mu.Unlock()

	c.flush(events)
	return merged, nil
}

// SendAgentMessage appends the message to the recipient's bounded
// history and publishes it for transport subscribers.
func (c *Coordinator) SendAgentMessage(fromID, toID, content string) error {
	c.mu.Lock()
	to, ok := c.reg.agent(toID)
	if !ok {
		c.mu.Unlock()
		return ErrAgentNotFound
	}

	appendMessage(to, fromID, content, c.now())
	events := []pendingEvent{{EventAgentMessage, map[string]any{
		"from":    fromID,
		"to":      toID,
		"content": content,
	}}}
	c.mu.Unlock()

	c.flush(events)
	return nil
}

// BroadcastToSwarm delivers content to every member of the swarm
// except excludeAgentID, then publishes a single broadcast event.
func (c *Coordinator) BroadcastToSwarm(swarmID, content, excludeAgentID string) error {
	c.mu.Lock()
	s, ok := c.reg.swarm(swarmID)
	if !ok {
		c.mu.Unlock()
		return ErrSwarmNotFound
	}

	now := c.now()
	delivered := 0
	for _, memberID := range s.AgentIDs {
		if memberID == excludeAgentID {
			continue
		}
		if member, mok := c.reg.agent(memberID); mok {
			appendMessage(member, "swarm:"+swarmID, content, now)
			delivered++
		}
	}

	events := []pendingEvent{{EventSwarmBroadcast, map[string]any{
		"swarm_id":  swarmID,
		"content":   content,
		"excluded":  excludeAgentID,
		"delivered": delivered,
	}}}
	c.mu.Unlock()

	c.flush(events)
	return nil
}

// SubmitTask creates a pending task and immediately evaluates it for
// scheduling. The returned record reflects any assignment made in the
// same call.
func (c *Coordinator) SubmitTask(spec TaskSpec) *Task {
	c.mu.Lock()
	now := c.now()
	t := c.graph.add(spec, now)

	if t.SwarmID != "" {
		if s, ok := c.reg.swarm(t.SwarmID); ok {
			s.TaskIDs = append(s.TaskIDs, t.ID)
		}
	}

	events := []pendingEvent{{EventTaskCreated, map[string]any{
		"task_id":  t.ID,
		"type":     t.Type,
		"swarm_id": t.SwarmID,
		"priority": t.Priority,
	}}}
	if a := c.sched.scheduleTask(t.ID, now); a != nil {
		events = append(events, assignedEvent(a))
	}

	out := t.Clone()
	c.mu.Unlock()

	c.flush(events)
	return out
}

// CreateSubtask submits a task linked under parentID, inheriting the
// parent's swarm, priority and context unless the spec overrides them.
// The subtask is scheduled independently of its parent.
func (c *Coordinator) CreateSubtask(parentID string, spec TaskSpec) (*Task, error) {
	c.mu.Lock()
	parent, ok := c.graph.task(parentID)
	if !ok {
		c.mu.Unlock()
		return nil, ErrTaskNotFound
	}

	if spec.SwarmID == "" {
		spec.SwarmID = parent.SwarmID
	}
	if spec.Priority == 0 {
		spec.Priority = parent.Priority
	}
	if spec.Context == nil {
		spec.Context = cloneBag(parent.Context)
	}

	now := c.now()
	t := c.graph.add(spec, now)
	t.ParentID = parent.ID
	parent.SubtaskIDs = append(parent.SubtaskIDs, t.ID)

	if t.SwarmID != "" {
		if s, sok := c.reg.swarm(t.SwarmID); sok {
			s.TaskIDs = append(s.TaskIDs, t.ID)
		}
	}

	events := []pendingEvent{{EventTaskCreated, map[string]any{
		"task_id":   t.ID,
		"type":      t.Type,
		"swarm_id":  t.SwarmID,
		"parent_id": parent.ID,
		"priority":  t.Priority,
	}}}
	if a := c.sched.scheduleTask(t.ID, now); a != nil {
		events = append(events, assignedEvent(a))
	}

	out := t.Clone()
	c.mu.Unlock()

	c.flush(events)
	return out, nil
}

func (c *Coordinator) GetTask(id string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.graph.task(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// ListTasks filters by swarm and status; empty values match all.
func (c *Coordinator) ListTasks(swarmID string, status TaskStatus) []*Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := c.graph.listTasks(swarmID, status)
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}
	return out
}

// GetReadyTasks returns pending tasks whose every dependency has
// completed.
func (c *Coordinator) GetReadyTasks() []*Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	ready := c.graph.readyTasks()
	out := make([]*Task, 0, len(ready))
	for _, t := range ready {
		out = append(out, t.Clone())
	}
	return out
}

// UpdateTaskStatus merges the patch into the task. Status changes are
// validated against the task state machine: pending tasks leave only
// through the scheduler, terminal tasks reject any further change. A
// transition to completed releases the assigned agent back to idle
// with a memory entry, unblocks dependents that became ready, and
// re-sweeps pending tasks; failed and cancelled release the agent
// without recording memory, clear the assignment and leave dependents
// blocked.
func (c *Coordinator) UpdateTaskStatus(id string, patch TaskUpdate) (*Task, error) {
	c.mu.Lock()
	t, ok := c.graph.task(id)
	if !ok {
		c.mu.Unlock()
		return nil, ErrTaskNotFound
	}

	if patch.Status != "" && patch.Status != t.Status && !validStatusChange(t.Status, patch.Status) {
		c.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	now := c.now()
	if patch.Result != nil {
		t.Result = cloneBag(patch.Result)
	}
	if patch.Error != "" {
		t.Error = patch.Error
	}
	if patch.Progress != nil {
		t.Progress = *patch.Progress
	}

	var events []pendingEvent
	if patch.Status != "" && patch.Status != t.Status {
		t.Status = patch.Status
		switch patch.Status {
		case TaskCompleted:
			completedAt := now
			t.CompletedAt = &completedAt
			t.Progress = 100
			c.releaseAgents(t, now, true)
			events = append(events, pendingEvent{EventTaskCompleted, map[string]any{
				"task_id":  t.ID,
				"swarm_id": t.SwarmID,
				"result":   t.Result,
			}})
			for _, a := range c.sched.checkDependentTasks(t.ID, now) {
				events = append(events, assignedEvent(a))
			}
			events = append(events, c.sweep(now)...)
		case TaskFailed:
			failedAt := now
			t.FailedAt = &failedAt
			c.releaseAgents(t, now, false)
			t.AssignedAgents = nil
			t.AssignedAt = nil
			events = append(events, pendingEvent{EventTaskFailed, map[string]any{
				"task_id":  t.ID,
				"swarm_id": t.SwarmID,
				"error":    t.Error,
			}})
			// Dependents stay blocked: a failed dependency never
			// satisfies readiness.
			events = append(events, c.sweep(now)...)
		case TaskCancelled:
			c.releaseAgents(t, now, false)
			t.AssignedAgents = nil
			t.AssignedAt = nil
			events = append(events, pendingEvent{EventTaskCancelled, map[string]any{
				"task_id":  t.ID,
				"swarm_id": t.SwarmID,
			}})
			events = append(events, c.sweep(now)...)
		default:
			events = append(events, pendingEvent{EventTaskUpdated, map[string]any{
				"task_id":  t.ID,
				"status":   string(t.Status),
				"progress": t.Progress,
			}})
		}
	} else {
		events = append(events, pendingEvent{EventTaskUpdated, map[string]any{
			"task_id":  t.ID,
			"status":   string(t.Status),
			"progress": t.Progress,
		}})
	}

	out := t.Clone()
	c.mu.Unlock()

	c.flush(events)
	return out, nil
}

// releaseAgents parks every agent assigned to t back to idle.
// recordMemory applies only to completion, which also keeps the
// assignment on the task record as history; failed and cancelled
// tasks have their assignment cleared by the caller.
func (c *Coordinator) releaseAgents(t *Task, now time.Time, recordMemory bool) {
	for _, agentID := range t.AssignedAgents {
		a, ok := c.reg.agent(agentID)
		if !ok {
			continue // deleted while the task ran, expected race
		}
		a.Status = AgentIdle
		a.CurrentTaskID = ""
		a.LastActive = now
		if recordMemory {
			a.TasksCompleted++
			appendMemory(a, MemoryEntry{
				TaskID:    t.ID,
				TaskType:  t.Type,
				Summary:   summarizeResult(t.Result),
				Timestamp: now,
			})
		}
	}
}

// sweep runs the scheduler over all pending tasks and converts every
// assignment into its event. Callers hold the lock.
func (c *Coordinator) sweep(now time.Time) []pendingEvent {
	var events []pendingEvent
	for _, a := range c.sched.checkPendingTasks(now) {
		events = append(events, assignedEvent(a))
	}
	return events
}

func assignedEvent(a *Assignment) pendingEvent {
	return pendingEvent{EventTaskAssigned, map[string]any{
		"task_id":  a.Task.ID,
		"agent_id": a.Agent.ID,
		"swarm_id": a.Task.SwarmID,
	}}
}

func summarizeResult(result map[string]any) string {
	if result == nil {
		return ""
	}
	if s, ok := result["summary"].(string); ok {
		return truncate(s, 200)
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("result summary marshal failed", "error", err)
		return ""
	}
	return truncate(string(data), 200)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
