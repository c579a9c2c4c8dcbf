// internal/coordinator/errors.go
package coordinator

import (
	"errors"
	"fmt"

	"github.com/user/swarmd/internal/types"
)

// Expected contention outcomes. These are ordinary results of racing
// agents, surfaced as typed errors so callers can tell "nothing to do"
// apart from "something is broken".
var (
	// ErrNoJobAvailable means no eligible pending job exists. A steady
	// state, not a fault.
	ErrNoJobAvailable = errors.New("no eligible job available")

	// ErrAlreadyCompleted means the job already reached done. Completion
	// is idempotent from the caller's perspective.
	ErrAlreadyCompleted = errors.New("job already completed")
)

// AlreadyTakenError means another agent already created a job for the same
// external issue.
type AlreadyTakenError struct {
	Issue     string
	JobID     types.JobID
	ClaimedBy types.AgentID
}

func (e *AlreadyTakenError) Error() string {
	if e.ClaimedBy == "" {
		return fmt.Sprintf("issue %s already has job %s (unclaimed)", e.Issue, e.JobID)
	}
	return fmt.Sprintf("issue %s already taken by %s (job %s)", e.Issue, e.ClaimedBy, e.JobID)
}

// NotOwnerError means an agent tried to complete a job claimed by someone
// else without forcing.
type NotOwnerError struct {
	JobID     types.JobID
	ClaimedBy types.AgentID
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("job %s is claimed by %s", e.JobID, e.ClaimedBy)
}

// IsExpectedOutcome reports whether err is an expected contention outcome
// rather than a genuine failure. The CLI maps these to a distinct exit
// code.
func IsExpectedOutcome(err error) bool {
	var taken *AlreadyTakenError
	return errors.Is(err, ErrNoJobAvailable) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.As(err, &taken)
}
