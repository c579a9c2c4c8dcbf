// internal/daemon/detect.go
package daemon

import (
	"fmt"
	"time"

	"github.com/user/swarmd/internal/report"
	"github.com/user/swarmd/internal/types"
)

// Detectors runs the daemon's liveness and pattern checks over the shared
// state and emits detection events back into the event log. Each detector
// de-duplicates its own emissions: a condition that stays true is
// re-announced at most once per window, so a flapping job can't flood the
// audit feed.
type Detectors struct {
	reporter *report.Reporter
	events   types.EventLog

	thresholds       report.Thresholds
	staleLogInterval time.Duration
	rewarnWindow     time.Duration

	lastStaleWarn   map[types.AgentID]time.Time
	lastPatternWarn map[string]time.Time
}

// NewDetectors creates the detector set.
func NewDetectors(reporter *report.Reporter, events types.EventLog, thresholds report.Thresholds, staleLogInterval, rewarnWindow time.Duration) *Detectors {
	return &Detectors{
		reporter:         reporter,
		events:           events,
		thresholds:       thresholds,
		staleLogInterval: staleLogInterval,
		rewarnWindow:     rewarnWindow,
		lastStaleWarn:    make(map[types.AgentID]time.Time),
		lastPatternWarn:  make(map[string]time.Time),
	}
}

// CheckStale scans the agent table for heartbeats older than the stale
// threshold and appends AGENT_STALE for each, rate-limited to one warning
// per agent per staleLogInterval. Returns the agents warned about in this
// pass.
func (d *Detectors) CheckStale(now time.Time) ([]types.AgentID, error) {
	agents, err := d.reporter.Agents(now)
	if err != nil {
		return nil, err
	}

	var warned []types.AgentID
	for _, agent := range agents {
		if agent.HeartbeatAge <= d.thresholds.StaleAfter {
			delete(d.lastStaleWarn, agent.ID)
			continue
		}
		if last, ok := d.lastStaleWarn[agent.ID]; ok && now.Sub(last) < d.staleLogInterval {
			continue
		}
		d.lastStaleWarn[agent.ID] = now

		payload := types.Payload{
			JobID:   agent.CurrentJobID,
			AgeMins: int(agent.HeartbeatAge.Minutes()),
		}
		if err := d.events.Append(&types.Event{
			At:      now,
			AgentID: agent.ID,
			Type:    types.EventAgentStale,
			Data:    payload.Encode(),
		}); err != nil {
			return warned, err
		}
		warned = append(warned, agent.ID)
	}
	return warned, nil
}

// SweepPatterns runs the stuck-job and test-failure detectors over active
// jobs. Repeated detections of the same (job, pattern) condition are
// suppressed inside the rewarn window. Returns the number of pattern
// events emitted.
func (d *Detectors) SweepPatterns(now time.Time) (int, error) {
	bottlenecks, err := d.reporter.Bottlenecks(now, d.thresholds)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for _, flag := range bottlenecks.FailingJobs {
		detail := fmt.Sprintf("%d test failures", flag.TestFailures)
		ok, err := d.emitPattern(now, types.EventPatternTestFail, flag, detail)
		if err != nil {
			return emitted, err
		}
		if ok {
			emitted++
		}
	}
	for _, flag := range bottlenecks.StuckJobs {
		detail := fmt.Sprintf("claimed %dm ago with %d activity events", int(flag.ClaimedFor.Minutes()), flag.Activity)
		ok, err := d.emitPattern(now, types.EventPatternStuckJob, flag, detail)
		if err != nil {
			return emitted, err
		}
		if ok {
			emitted++
		}
	}
	return emitted, nil
}

func (d *Detectors) emitPattern(now time.Time, eventType string, flag report.JobFlag, detail string) (bool, error) {
	key := string(flag.JobID) + "|" + eventType
	if last, ok := d.lastPatternWarn[key]; ok && now.Sub(last) < d.rewarnWindow {
		return false, nil
	}
	d.lastPatternWarn[key] = now

	payload := types.Payload{JobID: flag.JobID, Detail: detail}
	err := d.events.Append(&types.Event{
		At:      now,
		AgentID: flag.ClaimedBy,
		Type:    eventType,
		Data:    payload.Encode(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
