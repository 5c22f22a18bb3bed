package store

import (
	"fmt"

	"github.com/prompted365/hive/internal/coord"
)

// Seed rebuilds a coordinator's in-memory state from the mirror
// tables. Message histories are reloaded from the messages table up to
// the in-memory cap. Tasks left assigned or running by a previous
// instance keep their recorded state; the coordinator's post-restore
// sweep handles anything that went back to pending.
func (s *Store) Seed(c *coord.Coordinator) error {
	agents, err := s.ListAgents()
	if err != nil {
		return fmt.Errorf("seed agents: %w", err)
	}
	for _, a := range agents {
		messages, err := s.GetMessages(a.ID, coord.AgentMessageCap)
		if err != nil {
			return fmt.Errorf("seed messages for %s: %w", a.ID, err)
		}
		for _, m := range messages {
			a.Messages = append(a.Messages, coord.AgentMessage{
				From:      m.Sender,
				Content:   m.Content,
				Timestamp: m.CreatedAt,
			})
		}
	}

	swarms, err := s.ListSwarms()
	if err != nil {
		return fmt.Errorf("seed swarms: %w", err)
	}

	tasks, err := s.ListTasks()
	if err != nil {
		return fmt.Errorf("seed tasks: %w", err)
	}

	c.Restore(&coord.Snapshot{
		Agents: agents,
		Swarms: swarms,
		Tasks:  tasks,
	})
	return nil
}
