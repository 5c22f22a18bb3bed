package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/schedule"
	"github.com/prompted365/hive/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Agents
	mux.HandleFunc("GET /api/agents", s.listAgents)
	mux.HandleFunc("POST /api/agents", s.registerAgent)
	mux.HandleFunc("GET /api/agents/{id}", s.getAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.deleteAgent)
	mux.HandleFunc("PUT /api/agents/{id}/status", s.updateAgentStatus)
	mux.HandleFunc("GET /api/agents/{id}/messages", s.getAgentMessages)
	mux.HandleFunc("POST /api/agents/{id}/messages", s.sendAgentMessage)

	// Swarms
	mux.HandleFunc("GET /api/swarms", s.listSwarms)
	mux.HandleFunc("POST /api/swarms", s.createSwarm)
	mux.HandleFunc("GET /api/swarms/{id}", s.getSwarm)
	mux.HandleFunc("PUT /api/swarms/{id}/memory", s.updateSwarmMemory)
	mux.HandleFunc("POST /api/swarms/{id}/broadcast", s.broadcastToSwarm)

	// Tasks
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("POST /api/tasks", s.submitTask)
	mux.HandleFunc("GET /api/tasks/ready", s.listReadyTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.getTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.updateTask)
	mux.HandleFunc("POST /api/tasks/{id}/subtasks", s.createSubtask)

	// Schedules
	mux.HandleFunc("GET /api/schedules", s.listSchedules)
	mux.HandleFunc("POST /api/schedules", s.createSchedule)
	mux.HandleFunc("PUT /api/schedules/{id}", s.updateSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.deleteSchedule)

	// Snapshots
	mux.HandleFunc("GET /api/snapshot", s.exportSnapshot)
	mux.HandleFunc("POST /api/snapshot", s.importSnapshot)

	// Status
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.coord.ListAgents(r.URL.Query().Get("swarm")))
}

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var spec coord.AgentSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if spec.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	jsonResponse(w, s.coord.RegisterAgent(spec))
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.coord.GetAgent(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, a)
}

func (s *Server) deleteAgent(w http.ResponseWriter, r *http.Request) {
	if !s.coord.DeleteAgent(r.PathValue("id")) {
		jsonError(w, "agent not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) updateAgentStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status coord.AgentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.coord.UpdateAgentStatus(r.PathValue("id"), body.Status); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) getAgentMessages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "message history unavailable", http.StatusServiceUnavailable)
		return
	}
	msgs, err := s.store.GetMessages(r.PathValue("id"), 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, msgs)
}

func (s *Server) sendAgentMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From    string `json:"from"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.From == "" || body.Content == "" {
		jsonError(w, "from and content are required", http.StatusBadRequest)
		return
	}
	if err := s.coord.SendAgentMessage(body.From, r.PathValue("id"), body.Content); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) listSwarms(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.coord.ListSwarms())
}

func (s *Server) createSwarm(w http.ResponseWriter, r *http.Request) {
	var spec coord.SwarmSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if spec.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	jsonResponse(w, s.coord.CreateSwarm(spec))
}

func (s *Server) getSwarm(w http.ResponseWriter, r *http.Request) {
	sw, err := s.coord.GetSwarm(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, sw)
}

func (s *Server) updateSwarmMemory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Patch   map[string]any `json:"patch"`
		AgentID string         `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	mem, err := s.coord.UpdateSwarmMemory(r.PathValue("id"), body.Patch, body.AgentID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, mem)
}

func (s *Server) broadcastToSwarm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
		Exclude string `json:"exclude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Content == "" {
		jsonError(w, "content is required", http.StatusBadRequest)
		return
	}
	if err := s.coord.BroadcastToSwarm(r.PathValue("id"), body.Content, body.Exclude); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "broadcast"})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jsonResponse(w, s.coord.ListTasks(q.Get("swarm"), coord.TaskStatus(q.Get("status"))))
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var spec coord.TaskSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if spec.Type == "" {
		jsonError(w, "type is required", http.StatusBadRequest)
		return
	}
	jsonResponse(w, s.coord.SubmitTask(spec))
}

func (s *Server) listReadyTasks(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.coord.GetReadyTasks())
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.coord.GetTask(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var patch coord.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	t, err := s.coord.UpdateTaskStatus(r.PathValue("id"), patch)
	if err != nil {
		code := http.StatusNotFound
		if err == coord.ErrInvalidTransition {
			code = http.StatusConflict
		}
		jsonError(w, err.Error(), code)
		return
	}
	jsonResponse(w, t)
}

func (s *Server) createSubtask(w http.ResponseWriter, r *http.Request) {
	var spec coord.TaskSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if spec.Type == "" {
		jsonError(w, "type is required", http.StatusBadRequest)
		return
	}
	t, err := s.coord.CreateSubtask(r.PathValue("id"), spec)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, t)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "schedules unavailable", http.StatusServiceUnavailable)
		return
	}
	recs, err := s.store.ListSchedules()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, recs)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "schedules unavailable", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		Name     string         `json:"name"`
		Schedule string         `json:"schedule"`
		TaskSpec coord.TaskSpec `json:"task_spec"`
		Enabled  *bool          `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || body.TaskSpec.Type == "" {
		jsonError(w, "name, schedule, and task_spec.type are required", http.StatusBadRequest)
		return
	}

	// Normalize schedule (handles plain cron strings)
	normalized, err := schedule.NormalizeSchedule(body.Schedule)
	if err != nil {
		jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
		return
	}

	status := "active"
	if body.Enabled != nil && !*body.Enabled {
		status = "paused"
	}

	rec := store.ScheduleRecord{
		ID:       uuid.New().String(),
		Name:     body.Name,
		Schedule: normalized,
		TaskSpec: body.TaskSpec,
		Status:   status,
	}
	if status == "active" {
		rec.NextRunAt = schedule.CalculateNextRun(normalized)
	}

	if err := s.store.SaveSchedule(&rec); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, rec)
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "schedules unavailable", http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")

	existing, err := s.store.GetSchedule(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		jsonError(w, "schedule not found", http.StatusNotFound)
		return
	}

	var body struct {
		Name     *string         `json:"name"`
		Schedule *string         `json:"schedule"`
		TaskSpec *coord.TaskSpec `json:"task_spec"`
		Enabled  *bool           `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != nil {
		existing.Name = *body.Name
	}
	if body.TaskSpec != nil {
		existing.TaskSpec = *body.TaskSpec
	}
	if body.Schedule != nil {
		normalized, err := schedule.NormalizeSchedule(*body.Schedule)
		if err != nil {
			jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
			return
		}
		existing.Schedule = normalized
		if existing.Status == "active" {
			existing.NextRunAt = schedule.CalculateNextRun(normalized)
		}
	}
	if body.Enabled != nil {
		if *body.Enabled {
			existing.Status = "active"
			existing.NextRunAt = schedule.CalculateNextRun(existing.Schedule)
		} else {
			existing.Status = "paused"
			existing.NextRunAt = nil
		}
	}

	if err := s.store.SaveSchedule(existing); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, existing)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "schedules unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := s.store.DeleteSchedule(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

// exportSnapshot streams the full coordination state as zstd-compressed
// JSON, suitable for re-import on another instance.
func (s *Server) exportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Snapshot()

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=hive-snapshot-%s.json.zst", time.Now().UTC().Format("20060102-150405")))

	zw, err := zstd.NewWriter(w)
	if err != nil {
		jsonError(w, fmt.Sprintf("create zstd writer: %v", err), http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return
	}
	zw.Close()
}

func (s *Server) importSnapshot(w http.ResponseWriter, r *http.Request) {
	zr, err := zstd.NewReader(r.Body)
	if err != nil {
		jsonError(w, fmt.Sprintf("create zstd reader: %v", err), http.StatusBadRequest)
		return
	}
	defer zr.Close()

	var snap coord.Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		jsonError(w, fmt.Sprintf("decode snapshot: %v", err), http.StatusBadRequest)
		return
	}

	s.coord.Restore(&snap)
	jsonResponse(w, map[string]any{
		"status": "restored",
		"agents": len(snap.Agents),
		"swarms": len(snap.Swarms),
		"tasks":  len(snap.Tasks),
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	agents := s.coord.ListAgents("")
	swarms := s.coord.ListSwarms()

	busy := 0
	for _, a := range agents {
		if a.Status == coord.AgentBusy {
			busy++
		}
	}
	pending := len(s.coord.ListTasks("", coord.TaskPending))
	running := len(s.coord.ListTasks("", coord.TaskRunning))

	jsonResponse(w, map[string]any{
		"status":        "ok",
		"agents_count":  len(agents),
		"busy_agents":   busy,
		"swarms_count":  len(swarms),
		"pending_tasks": pending,
		"running_tasks": running,
		"uptime":        formatUptime(time.Since(s.startedAt)),
		"timestamp":     time.Now().UTC(),
		"version":       s.version,
	})
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
