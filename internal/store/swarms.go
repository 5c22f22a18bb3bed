package store

import (
	"database/sql"
	"fmt"

	"github.com/prompted365/hive/internal/coord"
)

func (s *Store) SaveSwarm(sw *coord.Swarm) error {
	sharedMemory, err := encodeJSON(sw.SharedMemory)
	if err != nil {
		return err
	}
	agentIDs, err := encodeJSON(sw.AgentIDs)
	if err != nil {
		return err
	}
	taskIDs, err := encodeJSON(sw.TaskIDs)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO swarms (id, name, description, status, shared_memory, owner, agent_ids, task_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			shared_memory = excluded.shared_memory,
			owner = excluded.owner,
			agent_ids = excluded.agent_ids,
			task_ids = excluded.task_ids`,
		sw.ID, sw.Name, sw.Description, string(sw.Status), sharedMemory, sw.Owner, agentIDs, taskIDs, sw.CreatedAt)
	if err != nil {
		return fmt.Errorf("save swarm: %w", err)
	}
	return nil
}

func scanSwarm(scanner interface{ Scan(dest ...any) error }) (*coord.Swarm, error) {
	sw := &coord.Swarm{}
	var status string
	var description, sharedMemory, owner, agentIDs, taskIDs sql.NullString
	err := scanner.Scan(&sw.ID, &sw.Name, &description, &status, &sharedMemory, &owner,
		&agentIDs, &taskIDs, &sw.CreatedAt)
	if err != nil {
		return nil, err
	}
	sw.Description = description.String
	sw.Status = coord.SwarmStatus(status)
	sw.Owner = owner.String
	if sharedMemory.Valid {
		if err := decodeJSON(&sharedMemory.String, &sw.SharedMemory); err != nil {
			return nil, fmt.Errorf("decode shared memory: %w", err)
		}
	}
	if agentIDs.Valid {
		if err := decodeJSON(&agentIDs.String, &sw.AgentIDs); err != nil {
			return nil, fmt.Errorf("decode agent ids: %w", err)
		}
	}
	if taskIDs.Valid {
		if err := decodeJSON(&taskIDs.String, &sw.TaskIDs); err != nil {
			return nil, fmt.Errorf("decode task ids: %w", err)
		}
	}
	sw.AgentCount = len(sw.AgentIDs)
	return sw, nil
}

func (s *Store) GetSwarm(id string) (*coord.Swarm, error) {
	row := s.db.QueryRow(`SELECT id, name, description, status, shared_memory, owner, agent_ids, task_ids, created_at FROM swarms WHERE id = ?`, id)
	sw, err := scanSwarm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swarm: %w", err)
	}
	return sw, nil
}

func (s *Store) ListSwarms() ([]*coord.Swarm, error) {
	rows, err := s.db.Query(`SELECT id, name, description, status, shared_memory, owner, agent_ids, task_ids, created_at FROM swarms ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list swarms: %w", err)
	}
	defer rows.Close()

	var swarms []*coord.Swarm
	for rows.Next() {
		sw, err := scanSwarm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swarm: %w", err)
		}
		swarms = append(swarms, sw)
	}
	return swarms, rows.Err()
}

func (s *Store) DeleteSwarm(id string) error {
	_, err := s.db.Exec(`DELETE FROM swarms WHERE id = ?`, id)
	return err
}
