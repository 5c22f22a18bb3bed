package coord

import (
	"time"

	"github.com/google/uuid"
)

const defaultAgentPriority = 5

// Registry owns agent and swarm records. It performs no locking of its
// own: the Coordinator serializes all access.
type Registry struct {
	agents map[string]*Agent
	swarms map[string]*Swarm
}

func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*Agent),
		swarms: make(map[string]*Swarm),
	}
}

// register creates an agent from spec. A swarm id referencing an
// unknown swarm is kept on the record but the agent joins no roster;
// the source system behaves the same way and callers rely on it.
func (r *Registry) register(spec AgentSpec, now time.Time) *Agent {
	priority := spec.Priority
	if priority == 0 {
		priority = defaultAgentPriority
	}

	a := &Agent{
		ID:           uuid.New().String(),
		Name:         spec.Name,
		Type:         spec.Type,
		Role:         spec.Role,
		Capabilities: append([]string(nil), spec.Capabilities...),
		Priority:     priority,
		Status:       AgentIdle,
		SwarmID:      spec.SwarmID,
		LastActive:   now,
		Memory:       append([]MemoryEntry(nil), spec.Memory...),
		Context:      cloneBag(spec.Context),
		CreatedAt:    now,
	}
	if len(a.Memory) > AgentMemoryCap {
		a.Memory = a.Memory[len(a.Memory)-AgentMemoryCap:]
	}

	r.agents[a.ID] = a

	if spec.SwarmID != "" {
		if sw, ok := r.swarms[spec.SwarmID]; ok {
			sw.AgentIDs = append(sw.AgentIDs, a.ID)
		}
	}

	return a
}

func (r *Registry) agent(id string) (*Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

func (r *Registry) swarm(id string) (*Swarm, bool) {
	s, ok := r.swarms[id]
	return s, ok
}

// listAgents returns agents, optionally filtered by swarm id. Order is
// map iteration order; callers must not depend on it.
func (r *Registry) listAgents(swarmID string) []*Agent {
	var out []*Agent
	for _, a := range r.agents {
		if swarmID != "" && a.SwarmID != swarmID {
			continue
		}
		out = append(out, a)
	}
	return out
}

// remove deletes the agent record and drops it from its swarm roster.
// Task cleanup is the Coordinator's job.
func (r *Registry) remove(id string) bool {
	a, ok := r.agents[id]
	if !ok {
		return false
	}

	if a.SwarmID != "" {
		if sw, swOK := r.swarms[a.SwarmID]; swOK {
			for i, member := range sw.AgentIDs {
				if member == id {
					sw.AgentIDs = append(sw.AgentIDs[:i], sw.AgentIDs[i+1:]...)
					break
				}
			}
		}
	}

	delete(r.agents, id)
	return true
}

func (r *Registry) createSwarm(spec SwarmSpec, now time.Time) *Swarm {
	s := &Swarm{
		ID:           uuid.New().String(),
		Name:         spec.Name,
		Description:  spec.Description,
		Status:       SwarmInitializing,
		SharedMemory: cloneBag(spec.Memory),
		Owner:        spec.Owner,
		CreatedAt:    now,
	}
	if s.SharedMemory == nil {
		s.SharedMemory = make(map[string]any)
	}
	r.swarms[s.ID] = s
	return s
}

// mergeSwarmMemory shallow-merges patch into the swarm's shared memory,
// last write wins per key.
func (r *Registry) mergeSwarmMemory(id string, patch map[string]any) (map[string]any, error) {
	s, ok := r.swarms[id]
	if !ok {
		return nil, ErrSwarmNotFound
	}
	if s.SharedMemory == nil {
		s.SharedMemory = make(map[string]any)
	}
	for k, v := range patch {
		s.SharedMemory[k] = v
	}
	return cloneBag(s.SharedMemory), nil
}

// appendMessage appends to the agent's bounded message history,
// evicting the oldest entry past the cap.
func appendMessage(a *Agent, from, content string, now time.Time) {
	a.Messages = append(a.Messages, AgentMessage{From: from, Content: content, Timestamp: now})
	if len(a.Messages) > AgentMessageCap {
		a.Messages = a.Messages[len(a.Messages)-AgentMessageCap:]
	}
}

// appendMemory appends a task-completion entry to the agent's bounded
// memory, evicting the oldest entry past the cap.
func appendMemory(a *Agent, entry MemoryEntry) {
	a.Memory = append(a.Memory, entry)
	if len(a.Memory) > AgentMemoryCap {
		a.Memory = a.Memory[len(a.Memory)-AgentMemoryCap:]
	}
}
