package store

import (
	"database/sql"
	"fmt"

	"github.com/prompted365/hive/internal/coord"
)

func (s *Store) SaveAgent(a *coord.Agent) error {
	capabilities, err := encodeJSON(a.Capabilities)
	if err != nil {
		return err
	}
	memory, err := encodeJSON(a.Memory)
	if err != nil {
		return err
	}
	context, err := encodeJSON(a.Context)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO agents (id, name, type, role, capabilities, priority, status, swarm_id,
		                    current_task_id, tasks_completed, last_active, memory, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			role = excluded.role,
			capabilities = excluded.capabilities,
			priority = excluded.priority,
			status = excluded.status,
			swarm_id = excluded.swarm_id,
			current_task_id = excluded.current_task_id,
			tasks_completed = excluded.tasks_completed,
			last_active = excluded.last_active,
			memory = excluded.memory,
			context = excluded.context`,
		a.ID, a.Name, a.Type, a.Role, capabilities, a.Priority, string(a.Status), a.SwarmID,
		a.CurrentTaskID, a.TasksCompleted, a.LastActive, memory, context, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func scanAgent(scanner interface{ Scan(dest ...any) error }) (*coord.Agent, error) {
	a := &coord.Agent{}
	var status string
	var typ, role, capabilities, swarmID, currentTaskID, memory, context sql.NullString
	err := scanner.Scan(&a.ID, &a.Name, &typ, &role, &capabilities, &a.Priority, &status,
		&swarmID, &currentTaskID, &a.TasksCompleted, &a.LastActive, &memory, &context, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Type = typ.String
	a.Role = role.String
	a.Status = coord.AgentStatus(status)
	a.SwarmID = swarmID.String
	a.CurrentTaskID = currentTaskID.String
	if capabilities.Valid {
		if err := decodeJSON(&capabilities.String, &a.Capabilities); err != nil {
			return nil, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	if memory.Valid {
		if err := decodeJSON(&memory.String, &a.Memory); err != nil {
			return nil, fmt.Errorf("decode memory: %w", err)
		}
	}
	if context.Valid {
		if err := decodeJSON(&context.String, &a.Context); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
	}
	return a, nil
}

const agentColumns = `id, name, type, role, capabilities, priority, status, swarm_id,
	current_task_id, tasks_completed, last_active, memory, context, created_at`

func (s *Store) GetAgent(id string) (*coord.Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Store) ListAgents() ([]*coord.Agent, error) {
	rows, err := s.db.Query(`SELECT ` + agentColumns + ` FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*coord.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) DeleteAgent(id string) error {
	if _, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	_, err := s.db.Exec(`DELETE FROM agent_messages WHERE agent_id = ?`, id)
	return err
}
