// internal/types/agent.go
package types

import "time"

// Agent statuses tracked in the agent table.
const (
	StatusWorking = "working"
	StatusIdle    = "idle"
)

// AgentState is one entry in the agent table, created on the first hook
// event from an agent id and overwritten by every heartbeat-bearing event.
// Entries are never removed automatically; only an explicit cleanup drops
// entries whose heartbeat age exceeds a threshold.
type AgentState struct {
	ID            AgentID   `json:"id"`
	Status        string    `json:"status"`
	Role          string    `json:"role,omitempty"`
	Model         string    `json:"model,omitempty"`
	WorkingDir    string    `json:"working_dir,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	CurrentJobID  JobID     `json:"current_job_id,omitempty"`
}

// HeartbeatAge returns how long ago the agent was last seen.
func (a *AgentState) HeartbeatAge(now time.Time) time.Duration {
	return now.Sub(a.LastHeartbeat)
}
