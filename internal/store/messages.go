package store

import (
	"fmt"
	"time"

	"github.com/prompted365/hive/internal/coord"
)

// Message is one row of an agent's persisted message history.
type Message struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agent_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SaveMessage(agentID, sender, content string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_messages (agent_id, sender, content, created_at)
		VALUES (?, ?, ?, ?)`,
		agentID, sender, content, at)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// GetMessages returns the most recent messages for an agent in
// chronological order. The default limit matches the in-memory history
// cap so the seed path reloads exactly what the record would hold.
func (s *Store) GetMessages(agentID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = coord.AgentMessageCap
	}
	rows, err := s.db.Query(`
		SELECT id, agent_id, sender, content, created_at
		FROM agent_messages
		WHERE agent_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}
