package store

import (
	"database/sql"
	"fmt"

	"github.com/prompted365/hive/internal/coord"
)

func (s *Store) SaveTask(t *coord.Task) error {
	assignedAgents, err := encodeJSON(t.AssignedAgents)
	if err != nil {
		return err
	}
	dependencies, err := encodeJSON(t.Dependencies)
	if err != nil {
		return err
	}
	requiredCaps, err := encodeJSON(t.RequiredCapabilities)
	if err != nil {
		return err
	}
	result, err := encodeJSON(t.Result)
	if err != nil {
		return err
	}
	context, err := encodeJSON(t.Context)
	if err != nil {
		return err
	}
	subtaskIDs, err := encodeJSON(t.SubtaskIDs)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, type, description, status, priority, swarm_id, assigned_agents,
		                   dependencies, required_capabilities, result, error, progress, context,
		                   deadline, parent_id, subtask_ids, created_at, assigned_at, completed_at, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			priority = excluded.priority,
			assigned_agents = excluded.assigned_agents,
			dependencies = excluded.dependencies,
			required_capabilities = excluded.required_capabilities,
			result = excluded.result,
			error = excluded.error,
			progress = excluded.progress,
			context = excluded.context,
			deadline = excluded.deadline,
			parent_id = excluded.parent_id,
			subtask_ids = excluded.subtask_ids,
			assigned_at = excluded.assigned_at,
			completed_at = excluded.completed_at,
			failed_at = excluded.failed_at`,
		t.ID, t.Type, t.Description, string(t.Status), t.Priority, t.SwarmID, assignedAgents,
		dependencies, requiredCaps, result, t.Error, t.Progress, context,
		t.Deadline, t.ParentID, subtaskIDs, t.CreatedAt, t.AssignedAt, t.CompletedAt, t.FailedAt)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

const taskColumns = `id, type, description, status, priority, swarm_id, assigned_agents,
	dependencies, required_capabilities, result, error, progress, context,
	deadline, parent_id, subtask_ids, created_at, assigned_at, completed_at, failed_at`

func scanStoredTask(scanner interface{ Scan(dest ...any) error }) (*coord.Task, error) {
	t := &coord.Task{}
	var status string
	var description, swarmID, assignedAgents, dependencies, requiredCaps sql.NullString
	var result, taskErr, context, parentID, subtaskIDs sql.NullString
	err := scanner.Scan(&t.ID, &t.Type, &description, &status, &t.Priority, &swarmID, &assignedAgents,
		&dependencies, &requiredCaps, &result, &taskErr, &t.Progress, &context,
		&t.Deadline, &parentID, &subtaskIDs, &t.CreatedAt, &t.AssignedAt, &t.CompletedAt, &t.FailedAt)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.Status = coord.TaskStatus(status)
	t.SwarmID = swarmID.String
	t.Error = taskErr.String
	t.ParentID = parentID.String
	for raw, dst := range map[*sql.NullString]any{
		&assignedAgents: &t.AssignedAgents,
		&dependencies:   &t.Dependencies,
		&requiredCaps:   &t.RequiredCapabilities,
		&result:         &t.Result,
		&context:        &t.Context,
		&subtaskIDs:     &t.SubtaskIDs,
	} {
		if raw.Valid {
			if err := decodeJSON(&raw.String, dst); err != nil {
				return nil, fmt.Errorf("decode task field: %w", err)
			}
		}
	}
	return t, nil
}

func (s *Store) GetTask(id string) (*coord.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanStoredTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Store) ListTasks() ([]*coord.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*coord.Task
	for rows.Next() {
		t, err := scanStoredTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}
