// internal/types/interfaces.go
package types

import "time"

// JobStore is durable, crash-safe storage of job records partitioned into
// the pending/active/done collections.
type JobStore interface {
	Create(collection Collection, job *Job) error
	List(collection Collection) ([]*Job, []*CorruptRecord, error)
	Read(id JobID) (*Job, Collection, error)
	Move(id JobID, from, to Collection, mutate func(*Job)) (*Job, error)
}

// EventLog is the append-only, multi-writer-safe audit feed. It is never
// used for coordination, only for observation.
type EventLog interface {
	Append(event *Event) error
	All() ([]*Event, error)
	Tail(limit int) ([]*Event, error)
}

// AgentTable is the keyed per-agent heartbeat store.
type AgentTable interface {
	Get(id AgentID) (*AgentState, error)
	List() ([]*AgentState, error)
	Upsert(id AgentID, update func(*AgentState)) error
	Cleanup(olderThan time.Duration, now time.Time, dryRun bool) ([]AgentID, error)
}

// CorruptRecord identifies a job file that failed to parse. Listings report
// these separately instead of aborting, so one bad hand-edit never takes
// down the queue.
type CorruptRecord struct {
	ID     JobID
	Reason string
}
