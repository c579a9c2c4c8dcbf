// internal/types/ids.go
package types

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

type JobID string
type AgentID string

// NewJobID generates a job id from the creation instant plus a random
// suffix so that ids stay unique even when two jobs are created in the
// same millisecond. Ids sort roughly by creation time, which keeps
// directory listings readable.
func NewJobID(now time.Time) JobID {
	return JobID(fmt.Sprintf("job-%d-%s", now.UnixMilli(), uuid.New().String()[:8]))
}

// AgentIDFromEnv resolves the calling agent's identity. Hook adapters and
// worker wrappers export SWARMD_AGENT_ID; a bare invocation falls back to
// AGENT_ID and finally to the hostname.
func AgentIDFromEnv() AgentID {
	if id := os.Getenv("SWARMD_AGENT_ID"); id != "" {
		return AgentID(id)
	}
	if id := os.Getenv("AGENT_ID"); id != "" {
		return AgentID(id)
	}
	host, err := os.Hostname()
	if err != nil {
		return AgentID("unknown")
	}
	return AgentID("agent-" + host)
}
