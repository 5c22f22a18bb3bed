package coord

import "time"

// Snapshot is a point-in-time copy of all coordination state, suitable
// for JSON serialization. Cross-references are ids only, so the
// snapshot carries no object graph and can seed a fresh instance.
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`
	Agents  []*Agent  `json:"agents"`
	Swarms  []*Swarm  `json:"swarms"`
	Tasks   []*Task   `json:"tasks"`
}

// Snapshot copies the full registry and task graph.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Snapshot{TakenAt: c.now()}
	for _, a := range c.reg.agents {
		s.Agents = append(s.Agents, a.Clone())
	}
	for _, sw := range c.reg.swarms {
		s.Swarms = append(s.Swarms, sw.Clone())
	}
	for _, t := range c.graph.tasks {
		s.Tasks = append(s.Tasks, t.Clone())
	}
	return s
}

// Restore replaces all coordination state with the snapshot's records,
// then sweeps pending tasks so work interrupted by a restart resumes.
// No creation events are replayed; only assignments made by the
// post-restore sweep are published.
func (c *Coordinator) Restore(s *Snapshot) {
	c.mu.Lock()
	c.reg.agents = make(map[string]*Agent, len(s.Agents))
	c.reg.swarms = make(map[string]*Swarm, len(s.Swarms))
	c.graph.tasks = make(map[string]*Task, len(s.Tasks))

	for _, a := range s.Agents {
		c.reg.agents[a.ID] = a.Clone()
	}
	for _, sw := range s.Swarms {
		c.reg.swarms[sw.ID] = sw.Clone()
	}
	for _, t := range s.Tasks {
		c.graph.tasks[t.ID] = t.Clone()
	}

	events := c.sweep(c.now())
	c.mu.Unlock()

	c.flush(events)
}
