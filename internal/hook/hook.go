// Package hook ingests agent lifecycle and instrumentation events: every
// event lands in the audit log and refreshes the agent's heartbeat in the
// agent table. The hook path is a best-effort side channel; it must never
// block or fail the caller's primary operation.
package hook

import (
	"errors"
	"time"

	"github.com/user/swarmd/internal/types"
)

// Ingestor applies one hook event to the shared state root.
type Ingestor struct {
	events types.EventLog
	agents types.AgentTable
	now    func() time.Time
}

// NewIngestor creates an ingestor over the event log and agent table.
func NewIngestor(events types.EventLog, agents types.AgentTable) *Ingestor {
	return &Ingestor{events: events, agents: agents, now: time.Now}
}

// Ingest appends the event and updates the agent table entry.
func (i *Ingestor) Ingest(agentID types.AgentID, eventType, data string) error {
	event := &types.Event{At: i.now().UTC(), AgentID: agentID, Type: eventType, Data: data}
	return errors.Join(i.events.Append(event), i.Track(agentID, eventType, data))
}

// Track updates the agent table entry without touching the event log; the
// coordinator uses it after claim/complete, which already log their own
// events. The entry is created on first sight of the agent id. Status
// transitions are derived from the event type; anything else is just a
// heartbeat.
func (i *Ingestor) Track(agentID types.AgentID, eventType, data string) error {
	now := i.now().UTC()
	event := &types.Event{At: now, AgentID: agentID, Type: eventType, Data: data}
	payload, _ := event.DecodePayload()
	return i.agents.Upsert(agentID, func(a *types.AgentState) {
		a.LastHeartbeat = now
		switch eventType {
		case types.EventAgentStartup:
			a.Status = types.StatusIdle
			if payload.Role != "" {
				a.Role = payload.Role
			}
			if payload.Model != "" {
				a.Model = payload.Model
			}
			if payload.Dir != "" {
				a.WorkingDir = payload.Dir
			}
		case types.EventModelChange:
			if payload.Model != "" {
				a.Model = payload.Model
			}
		case types.EventJobClaimed:
			a.Status = types.StatusWorking
			a.CurrentJobID = payload.JobID
		case types.EventJobCompleted:
			a.Status = types.StatusIdle
			a.CurrentJobID = ""
		}
	})
}
