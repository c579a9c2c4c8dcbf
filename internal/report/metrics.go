// internal/report/metrics.go
package report

import (
	"sort"
	"time"

	"github.com/user/swarmd/internal/types"
)

// Metrics holds queue-wide durations derived from event log timestamps
// paired by job id.
type Metrics struct {
	ClaimedJobs     int
	CompletedJobs   int
	MergedJobs      int
	AvgClaimToDone  time.Duration
	AvgClaimToMerge time.Duration
}

// Metrics pairs JOB_CLAIMED with JOB_COMPLETED and JOB_PR_MERGED events by
// job id and averages the elapsed times.
func (r *Reporter) Metrics() (*Metrics, error) {
	events, err := r.events.All()
	if err != nil {
		return nil, err
	}

	claimed := make(map[types.JobID]time.Time)
	m := &Metrics{}
	var doneTotal, mergeTotal time.Duration

	for _, event := range events {
		jid := event.JobID()
		if jid == "" {
			continue
		}
		switch event.Type {
		case types.EventJobClaimed:
			if _, ok := claimed[jid]; !ok {
				claimed[jid] = event.At
				m.ClaimedJobs++
			}
		case types.EventJobCompleted:
			if at, ok := claimed[jid]; ok {
				doneTotal += event.At.Sub(at)
				m.CompletedJobs++
			}
		case types.EventJobPRMerged:
			if at, ok := claimed[jid]; ok {
				mergeTotal += event.At.Sub(at)
				m.MergedJobs++
			}
		}
	}

	if m.CompletedJobs > 0 {
		m.AvgClaimToDone = doneTotal / time.Duration(m.CompletedJobs)
	}
	if m.MergedJobs > 0 {
		m.AvgClaimToMerge = mergeTotal / time.Duration(m.MergedJobs)
	}
	return m, nil
}

// JobActivity counts instrumentation events attributed to one job.
type JobActivity struct {
	JobID        types.JobID
	Files        int
	Commits      int
	TestFailures int
	ToolCalls    int
	LastEvent    time.Time
}

// Activity tallies per-job file/edit, commit, tool, and test-failure
// counters. Events carrying a job_id payload are attributed directly;
// events without one are attributed to the job currently claimed by the
// emitting agent, since tool hooks don't always know the job they serve.
func (r *Reporter) Activity() (map[types.JobID]*JobActivity, error) {
	events, err := r.events.All()
	if err != nil {
		return nil, err
	}
	active, _, err := r.jobs.List(types.Active)
	if err != nil {
		return nil, err
	}

	byClaimant := make(map[types.AgentID]*types.Job, len(active))
	for _, job := range active {
		byClaimant[job.ClaimedBy] = job
	}

	activity := make(map[types.JobID]*JobActivity)
	get := func(id types.JobID) *JobActivity {
		if a, ok := activity[id]; ok {
			return a
		}
		a := &JobActivity{JobID: id}
		activity[id] = a
		return a
	}

	for _, event := range events {
		jid := event.JobID()
		if jid == "" {
			job, ok := byClaimant[event.AgentID]
			if !ok || job.ClaimedAt == nil || event.At.Before(*job.ClaimedAt) {
				continue
			}
			jid = job.ID
		}

		a := get(jid)
		switch {
		case event.Type == types.EventGitCommit:
			a.Commits++
		case event.Type == types.EventTestFailed:
			a.TestFailures++
		case event.Type == "TOOL_EDIT" || event.Type == "TOOL_WRITE":
			a.Files++
			a.ToolCalls++
		case types.IsToolEvent(event.Type):
			a.ToolCalls++
		default:
			continue
		}
		if event.At.After(a.LastEvent) {
			a.LastEvent = event.At
		}
	}
	return activity, nil
}

// Timeline returns the chronological events for one job id.
func (r *Reporter) Timeline(id types.JobID) ([]*types.Event, error) {
	events, err := r.events.All()
	if err != nil {
		return nil, err
	}
	var timeline []*types.Event
	for _, event := range events {
		if event.JobID() == id {
			timeline = append(timeline, event)
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].At.Before(timeline[j].At) })
	return timeline, nil
}

// Thresholds parameterize bottleneck detection. The daemon's pattern
// detectors and the one-shot bottlenecks query share these.
type Thresholds struct {
	StaleAfter    time.Duration
	StuckAfter    time.Duration
	ActivityFloor int
	FailureLimit  int
}

// JobFlag identifies a job tripping a detector, with the evidence.
type JobFlag struct {
	JobID        types.JobID
	ClaimedBy    types.AgentID
	ClaimedFor   time.Duration
	TestFailures int
	Activity     int
}

// Bottlenecks is the combined output of all detectors.
type Bottlenecks struct {
	StaleAgents []AgentReport
	FailingJobs []JobFlag
	StuckJobs   []JobFlag
}

// Bottlenecks flags stale agents, active jobs with repeated test failures,
// and long-claimed jobs with little activity.
func (r *Reporter) Bottlenecks(now time.Time, t Thresholds) (*Bottlenecks, error) {
	b := &Bottlenecks{}

	agents, err := r.Agents(now)
	if err != nil {
		return nil, err
	}
	for _, agent := range agents {
		if agent.HeartbeatAge > t.StaleAfter {
			b.StaleAgents = append(b.StaleAgents, agent)
		}
	}

	active, _, err := r.jobs.List(types.Active)
	if err != nil {
		return nil, err
	}
	activity, err := r.Activity()
	if err != nil {
		return nil, err
	}

	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	for _, job := range active {
		a := activity[job.ID]
		failures, combined := 0, 0
		if a != nil {
			failures = a.TestFailures
			combined = a.Files + a.Commits
		}

		var claimedFor time.Duration
		if job.ClaimedAt != nil {
			claimedFor = now.Sub(*job.ClaimedAt)
		}
		flag := JobFlag{
			JobID:        job.ID,
			ClaimedBy:    job.ClaimedBy,
			ClaimedFor:   claimedFor,
			TestFailures: failures,
			Activity:     combined,
		}

		if failures >= t.FailureLimit {
			b.FailingJobs = append(b.FailingJobs, flag)
		}
		if claimedFor >= t.StuckAfter && combined < t.ActivityFloor {
			b.StuckJobs = append(b.StuckJobs, flag)
		}
	}
	return b, nil
}
