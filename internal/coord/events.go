package coord

// Event types published by the Coordinator. Subscribers may register
// exact types or a namespace prefix pattern such as "task:*".
const (
	EventAgentCreated   = "agent:created"
	EventAgentStatus    = "agent:status_changed"
	EventAgentDeleted   = "agent:deleted"
	EventAgentMessage   = "agent:message"
	EventSwarmCreated   = "swarm:created"
	EventSwarmBroadcast = "swarm:broadcast"
	EventSwarmMemory    = "swarm:memory_updated"
	EventTaskCreated    = "task:created"
	EventTaskAssigned   = "task:assigned"
	EventTaskUpdated    = "task:updated"
	EventTaskCompleted  = "task:completed"
	EventTaskFailed     = "task:failed"
	EventTaskCancelled  = "task:cancelled"
	EventTaskRequeued   = "task:requeued"
)
