// Package state provides filesystem-backed storage for the shared
// coordination root: the job store, the event log, and the agent table.
package state

import "github.com/user/swarmd/internal/types"

// Compile-time interface compliance checks.
var _ types.JobStore = (*JobStore)(nil)
var _ types.EventLog = (*EventLog)(nil)
var _ types.AgentTable = (*AgentTableFile)(nil)
