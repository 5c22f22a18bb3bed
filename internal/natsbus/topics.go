package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// TopicEvents carries the cross-instance coordination event envelope.
// Every hive instance publishes and subscribes here; echo suppression
// happens at the event bus layer, keyed on the envelope origin.
const TopicEvents = "hive.events"

// TopicAgentInbox is a per-agent channel external processors can use
// for direct delivery alongside the shared event fan-out.
func TopicAgentInbox(agentID string) string {
	return fmt.Sprintf("hive.agent.%s.inbox", agentID)
}

// TopicSwarm scopes messages to a single swarm.
func TopicSwarm(swarmID string) string {
	return fmt.Sprintf("hive.swarm.%s", swarmID)
}
