package report

import (
	"testing"
	"time"

	"github.com/user/swarmd/internal/types"
)

func appendEvent(t *testing.T, events types.EventLog, at time.Time, agent types.AgentID, eventType, data string) {
	t.Helper()
	if err := events.Append(&types.Event{At: at, AgentID: agent, Type: eventType, Data: data}); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestMetrics(t *testing.T) {
	reporter, _, events, _ := newTestReporter(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendEvent(t, events, base, "agent-a", types.EventJobClaimed, types.Payload{JobID: "job-1"}.Encode())
	appendEvent(t, events, base.Add(20*time.Minute), "agent-a", types.EventJobCompleted, types.Payload{JobID: "job-1"}.Encode())
	appendEvent(t, events, base.Add(time.Hour), "agent-a", types.EventJobPRMerged, types.Payload{JobID: "job-1"}.Encode())

	// Completion without a recorded claim contributes nothing.
	appendEvent(t, events, base, "agent-b", types.EventJobCompleted, types.Payload{JobID: "job-orphan"}.Encode())

	metrics, err := reporter.Metrics()
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	if metrics.ClaimedJobs != 1 || metrics.CompletedJobs != 1 || metrics.MergedJobs != 1 {
		t.Errorf("counts = %+v", metrics)
	}
	if metrics.AvgClaimToDone != 20*time.Minute {
		t.Errorf("AvgClaimToDone = %s, want 20m", metrics.AvgClaimToDone)
	}
	if metrics.AvgClaimToMerge != time.Hour {
		t.Errorf("AvgClaimToMerge = %s, want 1h", metrics.AvgClaimToMerge)
	}
}

func TestActivityAttribution(t *testing.T) {
	reporter, jobs, events, _ := newTestReporter(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	claimedAt := base
	seedJob(t, jobs, types.Active, &types.Job{
		ID:        "job-1",
		Created:   base.Add(-time.Hour),
		ClaimedBy: "agent-a",
		ClaimedAt: &claimedAt,
	})

	// Direct attribution via payload job_id.
	appendEvent(t, events, base.Add(time.Minute), "agent-a", types.EventTestFailed, types.Payload{JobID: "job-1"}.Encode())
	// Fallback attribution: no job_id, but agent-a holds job-1.
	appendEvent(t, events, base.Add(2*time.Minute), "agent-a", "TOOL_EDIT", "")
	appendEvent(t, events, base.Add(3*time.Minute), "agent-a", "TOOL_BASH", "")
	appendEvent(t, events, base.Add(4*time.Minute), "agent-a", types.EventGitCommit, "abc123")
	// Before the claim: not this job's work.
	appendEvent(t, events, base.Add(-time.Minute), "agent-a", "TOOL_EDIT", "")
	// Unclaimed emitter with no job_id: nowhere to attribute.
	appendEvent(t, events, base.Add(5*time.Minute), "agent-z", "TOOL_EDIT", "")

	activity, err := reporter.Activity()
	if err != nil {
		t.Fatalf("activity failed: %v", err)
	}
	a := activity["job-1"]
	if a == nil {
		t.Fatal("no activity for job-1")
	}
	if a.TestFailures != 1 || a.Files != 1 || a.Commits != 1 || a.ToolCalls != 2 {
		t.Errorf("activity = %+v", a)
	}
	if !a.LastEvent.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("LastEvent = %s", a.LastEvent)
	}
	if len(activity) != 1 {
		t.Errorf("unattributable events created %d extra entries", len(activity)-1)
	}
}

func TestTimeline(t *testing.T) {
	reporter, _, events, _ := newTestReporter(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendEvent(t, events, base.Add(time.Minute), "agent-a", types.EventJobCompleted, types.Payload{JobID: "job-1"}.Encode())
	appendEvent(t, events, base, "agent-a", types.EventJobClaimed, types.Payload{JobID: "job-1"}.Encode())
	appendEvent(t, events, base, "agent-b", types.EventJobClaimed, types.Payload{JobID: "job-2"}.Encode())

	timeline, err := reporter.Timeline("job-1")
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("got %d events, want 2", len(timeline))
	}
	if timeline[0].Type != types.EventJobClaimed || timeline[1].Type != types.EventJobCompleted {
		t.Errorf("timeline out of order: %s then %s", timeline[0].Type, timeline[1].Type)
	}
}

func TestBottlenecks(t *testing.T) {
	reporter, jobs, events, agents := newTestReporter(t)
	now := time.Now().UTC()
	thresholds := Thresholds{
		StaleAfter:    5 * time.Minute,
		StuckAfter:    time.Hour,
		ActivityFloor: 2,
		FailureLimit:  3,
	}

	seedAgent(t, agents, "agent-fresh", types.StatusWorking, now.Add(-time.Minute))
	seedAgent(t, agents, "agent-stale", types.StatusWorking, now.Add(-20*time.Minute))

	// job-failing trips the failure limit; job-stuck is long-claimed with
	// nothing to show; job-busy is long-claimed but productive.
	failingClaim := now.Add(-10 * time.Minute)
	seedJob(t, jobs, types.Active, &types.Job{ID: "job-failing", Created: now, ClaimedBy: "agent-fresh", ClaimedAt: &failingClaim})
	stuckClaim := now.Add(-2 * time.Hour)
	seedJob(t, jobs, types.Active, &types.Job{ID: "job-stuck", Created: now, ClaimedBy: "agent-stale", ClaimedAt: &stuckClaim})
	busyClaim := now.Add(-2 * time.Hour)
	seedJob(t, jobs, types.Active, &types.Job{ID: "job-busy", Created: now, ClaimedBy: "agent-b", ClaimedAt: &busyClaim})

	for i := 0; i < 3; i++ {
		appendEvent(t, events, now.Add(-time.Minute), "agent-fresh", types.EventTestFailed, types.Payload{JobID: "job-failing"}.Encode())
	}
	for i := 0; i < 4; i++ {
		appendEvent(t, events, now.Add(-time.Minute), "agent-b", types.EventGitCommit, types.Payload{JobID: "job-busy"}.Encode())
	}

	b, err := reporter.Bottlenecks(now, thresholds)
	if err != nil {
		t.Fatalf("bottlenecks failed: %v", err)
	}

	if len(b.StaleAgents) != 1 || b.StaleAgents[0].ID != "agent-stale" {
		t.Errorf("stale agents = %+v", b.StaleAgents)
	}
	if len(b.FailingJobs) != 1 || b.FailingJobs[0].JobID != "job-failing" {
		t.Errorf("failing jobs = %+v", b.FailingJobs)
	}
	if len(b.StuckJobs) != 1 || b.StuckJobs[0].JobID != "job-stuck" {
		t.Errorf("stuck jobs = %+v", b.StuckJobs)
	}
	if b.StuckJobs[0].ClaimedBy != "agent-stale" {
		t.Errorf("stuck job claimant = %s", b.StuckJobs[0].ClaimedBy)
	}
}
