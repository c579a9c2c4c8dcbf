// Package report computes derived, read-only views over the job store,
// event log, and agent table. Everything here is recomputable at any time
// by replaying the on-disk state; nothing is an independent source of
// truth. The same computations back the one-shot CLI queries, the
// monitoring daemon's detectors, and the live dashboard.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/user/swarmd/internal/types"
)

// Reporter reads the shared state root. It never writes, so it needs no
// lock and can run concurrently with claiming agents.
type Reporter struct {
	jobs   types.JobStore
	events types.EventLog
	agents types.AgentTable
}

// New creates a reporter over the given stores.
func New(jobs types.JobStore, events types.EventLog, agents types.AgentTable) *Reporter {
	return &Reporter{jobs: jobs, events: events, agents: agents}
}

// Status is the one-glance system summary.
type Status struct {
	Agents  int
	Working int
	Idle    int
	Pending int
	Active  int
	Done    int
	Corrupt int
}

// Status summarizes agent and queue counts.
func (r *Reporter) Status() (*Status, error) {
	agents, err := r.agents.List()
	if err != nil {
		return nil, err
	}

	s := &Status{Agents: len(agents)}
	for _, agent := range agents {
		if agent.Status == types.StatusWorking {
			s.Working++
		} else {
			s.Idle++
		}
	}

	for _, collection := range types.Collections() {
		jobs, corrupt, err := r.jobs.List(collection)
		if err != nil {
			return nil, err
		}
		s.Corrupt += len(corrupt)
		switch collection {
		case types.Pending:
			s.Pending = len(jobs)
		case types.Active:
			s.Active = len(jobs)
		case types.Done:
			s.Done = len(jobs)
		}
	}
	return s, nil
}

// AgentReport is one agent's row in the agents view.
type AgentReport struct {
	ID           types.AgentID
	Status       string
	Role         string
	Model        string
	CurrentJobID types.JobID
	HeartbeatAge time.Duration
	WorkingFor   time.Duration
}

// Agents returns per-agent status with heartbeat age and, for working
// agents, elapsed time on the current job (from the active record's
// claimed_at).
func (r *Reporter) Agents(now time.Time) ([]AgentReport, error) {
	agents, err := r.agents.List()
	if err != nil {
		return nil, err
	}
	active, _, err := r.jobs.List(types.Active)
	if err != nil {
		return nil, err
	}

	claimedAt := make(map[types.JobID]*time.Time, len(active))
	for _, job := range active {
		claimedAt[job.ID] = job.ClaimedAt
	}

	reports := make([]AgentReport, 0, len(agents))
	for _, agent := range agents {
		report := AgentReport{
			ID:           agent.ID,
			Status:       agent.Status,
			Role:         agent.Role,
			Model:        agent.Model,
			CurrentJobID: agent.CurrentJobID,
			HeartbeatAge: agent.HeartbeatAge(now),
		}
		if at, ok := claimedAt[agent.CurrentJobID]; ok && at != nil {
			report.WorkingFor = now.Sub(*at)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// QueueReport lists a collection's records plus counts for all three.
type QueueReport struct {
	Pending int
	Active  int
	Done    int
	Jobs    []*types.Job
	Corrupt []*types.CorruptRecord
}

// Queue returns counts per collection and, when filter names a collection,
// its records sorted by creation time.
func (r *Reporter) Queue(filter types.Collection) (*QueueReport, error) {
	report := &QueueReport{}
	for _, collection := range types.Collections() {
		jobs, corrupt, err := r.jobs.List(collection)
		if err != nil {
			return nil, err
		}
		report.Corrupt = append(report.Corrupt, corrupt...)
		switch collection {
		case types.Pending:
			report.Pending = len(jobs)
		case types.Active:
			report.Active = len(jobs)
		case types.Done:
			report.Done = len(jobs)
		}
		if collection == filter {
			report.Jobs = jobs
		}
	}
	if filter != "" && report.Jobs == nil {
		valid := false
		for _, c := range types.Collections() {
			if c == filter {
				valid = true
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown collection %q", filter)
		}
		report.Jobs = []*types.Job{}
	}
	sort.Slice(report.Jobs, func(i, j int) bool {
		return report.Jobs[i].Created.Before(report.Jobs[j].Created)
	})
	return report, nil
}

// AgentStats aggregates one agent's throughput for the compare view.
type AgentStats struct {
	ID          types.AgentID
	Claimed     int
	Completed   int
	AvgDuration time.Duration
}

// Compare computes per-agent aggregates from the event log: jobs claimed,
// jobs completed, and average claim-to-complete duration.
func (r *Reporter) Compare() ([]AgentStats, error) {
	events, err := r.events.All()
	if err != nil {
		return nil, err
	}

	type pending struct {
		claimedAt time.Time
	}
	stats := make(map[types.AgentID]*AgentStats)
	open := make(map[types.JobID]pending)
	totals := make(map[types.AgentID]time.Duration)

	get := func(id types.AgentID) *AgentStats {
		if s, ok := stats[id]; ok {
			return s
		}
		s := &AgentStats{ID: id}
		stats[id] = s
		return s
	}

	for _, event := range events {
		switch event.Type {
		case types.EventJobClaimed:
			get(event.AgentID).Claimed++
			if jid := event.JobID(); jid != "" {
				open[jid] = pending{claimedAt: event.At}
			}
		case types.EventJobCompleted:
			s := get(event.AgentID)
			s.Completed++
			if jid := event.JobID(); jid != "" {
				if p, ok := open[jid]; ok {
					totals[event.AgentID] += event.At.Sub(p.claimedAt)
					delete(open, jid)
				}
			}
		}
	}

	result := make([]AgentStats, 0, len(stats))
	for id, s := range stats {
		if s.Completed > 0 {
			s.AvgDuration = totals[id] / time.Duration(s.Completed)
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
