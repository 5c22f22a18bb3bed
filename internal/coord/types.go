package coord

import (
	"errors"
	"time"
)

// Lookup and transition errors. Scheduling paths never return these;
// a missing record there is an expected race and handled as a no-op.
var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrSwarmNotFound     = errors.New("swarm not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

type AgentStatus string

const (
	AgentIdle AgentStatus = "idle"
	AgentBusy AgentStatus = "busy"
	AgentErr  AgentStatus = "error"
)

type SwarmStatus string

const (
	SwarmInitializing SwarmStatus = "initializing"
	SwarmReady        SwarmStatus = "ready"
	SwarmActive       SwarmStatus = "active"
	SwarmBusy         SwarmStatus = "busy"
	SwarmError        SwarmStatus = "error"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskAssigned  TaskStatus = "assigned"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// validStatusChange reports whether a status patch may move a task
// from one state to the other. Assignment belongs to the scheduler,
// so pending has no patchable exits; terminal states have none at all.
func validStatusChange(from, to TaskStatus) bool {
	switch from {
	case TaskAssigned:
		return to == TaskRunning || to == TaskCompleted || to == TaskFailed || to == TaskCancelled
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed || to == TaskCancelled
	}
	return false
}

const (
	// AgentMemoryCap bounds per-agent task-completion memory.
	AgentMemoryCap = 100
	// AgentMessageCap bounds per-agent message history.
	AgentMessageCap = 50
)

// MemoryEntry records a completed task in an agent's memory.
type MemoryEntry struct {
	TaskID    string    `json:"task_id"`
	TaskType  string    `json:"task_type"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentMessage is one entry in an agent's short-term message history.
type AgentMessage struct {
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Agent is a schedulable worker entity. Cross-references (SwarmID,
// CurrentTaskID) are stored as ids, never as embedded records.
type Agent struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"` // coordinator, worker, specialist (open set)
	Role           string         `json:"role"`
	Capabilities   []string       `json:"capabilities"`
	Priority       int            `json:"priority"`
	Status         AgentStatus    `json:"status"`
	SwarmID        string         `json:"swarm_id,omitempty"`
	CurrentTaskID  string         `json:"current_task_id,omitempty"`
	TasksCompleted int            `json:"tasks_completed"`
	LastActive     time.Time      `json:"last_active"`
	Memory         []MemoryEntry  `json:"memory,omitempty"`
	Messages       []AgentMessage `json:"messages,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Clone returns a deep copy safe to hand to callers.
func (a *Agent) Clone() *Agent {
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	c.Memory = append([]MemoryEntry(nil), a.Memory...)
	c.Messages = append([]AgentMessage(nil), a.Messages...)
	c.Context = cloneBag(a.Context)
	return &c
}

func (a *Agent) hasCapabilities(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range a.Capabilities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Swarm is a named grouping of agents sharing memory and a task pool.
// AgentCount is derived from the roster on every read.
type Swarm struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Status       SwarmStatus    `json:"status"`
	AgentCount   int            `json:"agent_count"`
	SharedMemory map[string]any `json:"shared_memory,omitempty"`
	Owner        string         `json:"owner,omitempty"`
	AgentIDs     []string       `json:"agent_ids"`
	TaskIDs      []string       `json:"task_ids"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (s *Swarm) Clone() *Swarm {
	c := *s
	c.AgentIDs = append([]string(nil), s.AgentIDs...)
	c.TaskIDs = append([]string(nil), s.TaskIDs...)
	c.SharedMemory = cloneBag(s.SharedMemory)
	c.AgentCount = len(s.AgentIDs)
	return &c
}

// Task is a unit of work with a status lifecycle and optional
// dependencies on other tasks.
type Task struct {
	ID                   string         `json:"id"`
	Type                 string         `json:"type"`
	Description          string         `json:"description,omitempty"`
	Status               TaskStatus     `json:"status"`
	Priority             int            `json:"priority"`
	SwarmID              string         `json:"swarm_id,omitempty"`
	AssignedAgents       []string       `json:"assigned_agents"`
	Dependencies         []string       `json:"dependencies,omitempty"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty"`
	Result               map[string]any `json:"result,omitempty"`
	Error                string         `json:"error,omitempty"`
	Progress             int            `json:"progress"`
	Context              map[string]any `json:"context,omitempty"`
	Deadline             *time.Time     `json:"deadline,omitempty"`
	ParentID             string         `json:"parent_id,omitempty"`
	SubtaskIDs           []string       `json:"subtask_ids,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	AssignedAt           *time.Time     `json:"assigned_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	FailedAt             *time.Time     `json:"failed_at,omitempty"`
}

func (t *Task) Clone() *Task {
	c := *t
	c.AssignedAgents = append([]string(nil), t.AssignedAgents...)
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	c.SubtaskIDs = append([]string(nil), t.SubtaskIDs...)
	c.Result = cloneBag(t.Result)
	c.Context = cloneBag(t.Context)
	c.Deadline = cloneTime(t.Deadline)
	c.AssignedAt = cloneTime(t.AssignedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.FailedAt = cloneTime(t.FailedAt)
	return &c
}

// AgentSpec is the input to agent registration.
type AgentSpec struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Capabilities []string       `json:"capabilities"`
	Priority     int            `json:"priority"`
	SwarmID      string         `json:"swarm_id,omitempty"`
	Memory       []MemoryEntry  `json:"memory,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// SwarmSpec is the input to swarm creation. Each entry in Agents is
// registered with the new swarm's id bound.
type SwarmSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Owner       string         `json:"owner,omitempty"`
	Memory      map[string]any `json:"memory,omitempty"`
	Agents      []AgentSpec    `json:"agents,omitempty"`
}

// TaskSpec is the input to task submission.
type TaskSpec struct {
	Type                 string         `json:"type"`
	Description          string         `json:"description,omitempty"`
	Priority             int            `json:"priority"`
	SwarmID              string         `json:"swarm_id,omitempty"`
	Dependencies         []string       `json:"dependencies,omitempty"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty"`
	Context              map[string]any `json:"context,omitempty"`
	Deadline             *time.Time     `json:"deadline,omitempty"`
}

// TaskUpdate is a partial patch applied by UpdateTaskStatus. Nil fields
// are left untouched.
type TaskUpdate struct {
	Status   TaskStatus     `json:"status,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Progress *int           `json:"progress,omitempty"`
}

func cloneBag(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
