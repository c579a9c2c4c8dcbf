// internal/types/event.go
package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types written by the coordinator, the hook path, and the daemon.
// The set is open: hook adapters may emit types not listed here (notably
// TOOL_<name> for per-tool instrumentation) and readers must pass unknown
// types through untouched.
const (
	EventAgentStartup    = "AGENT_STARTUP"
	EventModelChange     = "MODEL_CHANGE"
	EventJobCreated      = "JOB_CREATED"
	EventJobClaimed      = "JOB_CLAIMED"
	EventJobCompleted    = "JOB_COMPLETED"
	EventJobPRReady      = "JOB_PR_READY"
	EventJobPRMerged     = "JOB_PR_MERGED"
	EventGitCommit       = "GIT_COMMIT"
	EventTestStarted     = "TEST_STARTED"
	EventTestFailed      = "TEST_FAILED"
	EventAgentStale      = "AGENT_STALE"
	EventPatternTestFail = "PATTERN_TEST_FAILURES"
	EventPatternStuckJob = "PATTERN_STUCK_JOB"

	toolEventPrefix = "TOOL_"
)

// IsToolEvent reports whether the type is part of the open TOOL_* family.
func IsToolEvent(eventType string) bool {
	return strings.HasPrefix(eventType, toolEventPrefix)
}

// Event is one append-only fact in the coordination log. Data is an opaque
// string on the wire; for known event types it holds a compact JSON object
// (see Payload) so readers can recover structure without the log format
// itself needing a schema.
type Event struct {
	At      time.Time
	AgentID AgentID
	Type    string
	Data    string
}

// Payload is the structured shape of Data for the event types swarmd
// itself emits. Unknown or free-form events simply never decode.
type Payload struct {
	JobID   JobID  `json:"job_id,omitempty"`
	Issue   string `json:"issue,omitempty"`
	Score   int    `json:"score,omitempty"`
	Result  string `json:"result,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Model   string `json:"model,omitempty"`
	Role    string `json:"role,omitempty"`
	Dir     string `json:"dir,omitempty"`
	Detail  string `json:"detail,omitempty"`
	AgeMins int    `json:"age_mins,omitempty"`
}

// Encode renders the payload as the event's Data string.
func (p Payload) Encode() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodePayload parses an event's Data field. The ok result is false when
// the data is not a JSON payload, which is normal for foreign events.
func (e *Event) DecodePayload() (Payload, bool) {
	var p Payload
	if err := json.Unmarshal([]byte(e.Data), &p); err != nil {
		return Payload{}, false
	}
	return p, true
}

// JobID extracts the job id from the event payload, or "" when the event
// does not reference a job.
func (e *Event) JobID() JobID {
	p, ok := e.DecodePayload()
	if !ok {
		return ""
	}
	return p.JobID
}
