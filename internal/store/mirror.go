package store

import (
	"errors"
	"log/slog"

	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/event"
)

// Mirror keeps the SQLite tables in sync with coordination state by
// reacting to published events. It reads records back through the
// Coordinator rather than trusting event payloads, so a mirror row is
// always a full consistent copy. Write failures are logged and never
// propagate: the core must keep operating without durable storage.
type Mirror struct {
	store *Store
	coord *coord.Coordinator

	unsubs []func()
}

func NewMirror(s *Store, c *coord.Coordinator) *Mirror {
	return &Mirror{store: s, coord: c}
}

// Start subscribes the mirror to every coordination namespace.
func (m *Mirror) Start(bus *event.Bus) {
	for _, pattern := range []string{"agent:*", "swarm:*", "task:*"} {
		m.unsubs = append(m.unsubs, bus.Subscribe(pattern, m.handle))
	}
}

// Stop removes the mirror's subscriptions.
func (m *Mirror) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

func (m *Mirror) handle(ev event.Event) {
	switch ev.Type {
	case coord.EventAgentDeleted:
		if id, ok := ev.Data["agent_id"].(string); ok {
			if err := m.store.DeleteAgent(id); err != nil {
				slog.Warn("mirror delete agent failed", "agent_id", id, "error", err)
			}
		}
		return
	case coord.EventAgentMessage:
		to, _ := ev.Data["to"].(string)
		from, _ := ev.Data["from"].(string)
		content, _ := ev.Data["content"].(string)
		if to != "" {
			if err := m.store.SaveMessage(to, from, content, ev.Timestamp); err != nil {
				slog.Warn("mirror save message failed", "agent_id", to, "error", err)
			}
		}
		return
	}

	if id, ok := ev.Data["agent_id"].(string); ok && id != "" {
		m.mirrorAgent(id)
	}
	if id, ok := ev.Data["swarm_id"].(string); ok && id != "" {
		m.mirrorSwarm(id)
	}
	if id, ok := ev.Data["task_id"].(string); ok && id != "" {
		m.mirrorTask(id)
	}
}

func (m *Mirror) mirrorAgent(id string) {
	a, err := m.coord.GetAgent(id)
	if err != nil {
		if !errors.Is(err, coord.ErrAgentNotFound) {
			slog.Warn("mirror read agent failed", "agent_id", id, "error", err)
		}
		return // deleted between event and read
	}
	if err := m.store.SaveAgent(a); err != nil {
		slog.Warn("mirror save agent failed", "agent_id", id, "error", err)
	}
}

func (m *Mirror) mirrorSwarm(id string) {
	sw, err := m.coord.GetSwarm(id)
	if err != nil {
		if !errors.Is(err, coord.ErrSwarmNotFound) {
			slog.Warn("mirror read swarm failed", "swarm_id", id, "error", err)
		}
		return
	}
	if err := m.store.SaveSwarm(sw); err != nil {
		slog.Warn("mirror save swarm failed", "swarm_id", id, "error", err)
	}
}

func (m *Mirror) mirrorTask(id string) {
	t, err := m.coord.GetTask(id)
	if err != nil {
		if !errors.Is(err, coord.ErrTaskNotFound) {
			slog.Warn("mirror read task failed", "task_id", id, "error", err)
		}
		return
	}
	if err := m.store.SaveTask(t); err != nil {
		slog.Warn("mirror save task failed", "task_id", id, "error", err)
	}

	// A scheduling decision or release also touched the agents on the
	// assignment; keep their rows current.
	for _, agentID := range t.AssignedAgents {
		m.mirrorAgent(agentID)
	}
}
