// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/swarmd/internal/lock"
	"github.com/user/swarmd/internal/state"
	"github.com/user/swarmd/internal/types"
)

// Coordinator is the only component that mutates job store state in
// response to external requests. All create/claim operations are
// serialized by one exclusive lock scoped to the whole state root.
type Coordinator struct {
	jobs   types.JobStore
	events types.EventLog
	locker lock.Locker
	now    func() time.Time
}

// New creates a coordinator over the given store, event log, and lock.
func New(jobs types.JobStore, events types.EventLog, locker lock.Locker) *Coordinator {
	return &Coordinator{
		jobs:   jobs,
		events: events,
		locker: locker,
		now:    time.Now,
	}
}

// CreateParams describes a new job. CreatedBy identifies the originator.
type CreateParams struct {
	Title       string
	Description string
	Priority    types.Priority
	Complexity  types.Complexity
	Issue       string
	DependsOn   []types.JobID
	CreatedBy   types.AgentID
}

func (p CreateParams) build(now time.Time) *types.Job {
	return &types.Job{
		ID:               types.NewJobID(now),
		Created:          now,
		CreatedBy:        p.CreatedBy,
		Priority:         p.Priority,
		Complexity:       p.Complexity,
		RecommendedModel: types.RecommendedTier(p.Complexity),
		Title:            p.Title,
		Description:      p.Description,
		Issue:            p.Issue,
		DependsOn:        p.DependsOn,
	}
}

// CreateJob writes a new pending job under the coordination lock.
func (c *Coordinator) CreateJob(ctx context.Context, p CreateParams) (*types.Job, error) {
	release, err := c.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	job := p.build(c.now().UTC())
	if err := c.jobs.Create(types.Pending, job); err != nil {
		return nil, err
	}

	c.append(p.CreatedBy, types.EventJobCreated, types.Payload{JobID: job.ID, Issue: p.Issue})
	return job, nil
}

// ClaimBest claims the highest-scoring eligible pending job for the agent.
// Jobs with unfinished dependencies are filtered out regardless of score.
// Returns ErrNoJobAvailable when nothing is eligible.
func (c *Coordinator) ClaimBest(ctx context.Context, agentID types.AgentID, agentTier types.Tier) (*types.Job, error) {
	release, err := c.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	pending, corrupt, err := c.jobs.List(types.Pending)
	if err != nil {
		return nil, err
	}
	for _, rec := range corrupt {
		slog.Warn("skipping corrupt job record", "id", rec.ID, "reason", rec.Reason)
	}

	done, err := c.doneSet()
	if err != nil {
		return nil, err
	}

	eligible := pending[:0]
	for _, job := range pending {
		if depsSatisfied(job, done) {
			eligible = append(eligible, job)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoJobAvailable
	}

	best := Rank(agentTier, eligible)[0]
	score := Score(agentTier, best)

	now := c.now().UTC()
	claimed, err := c.jobs.Move(best.ID, types.Pending, types.Active, func(j *types.Job) {
		j.ClaimedBy = agentID
		j.ClaimedAt = &now
	})
	if err != nil {
		return nil, err
	}

	c.append(agentID, types.EventJobClaimed, types.Payload{JobID: claimed.ID, Score: score})
	return claimed, nil
}

// ClaimForIssue creates a job for an external issue directly in active,
// pre-claimed by the calling agent. The duplicate scan over pending and
// active happens under the same lock hold as the creation, so two agents
// can never start independent jobs for one issue.
func (c *Coordinator) ClaimForIssue(ctx context.Context, issue string, agentID types.AgentID, p CreateParams) (*types.Job, error) {
	if issue == "" {
		return nil, fmt.Errorf("issue reference must not be empty")
	}

	release, err := c.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, collection := range []types.Collection{types.Pending, types.Active} {
		jobs, corrupt, err := c.jobs.List(collection)
		if err != nil {
			return nil, err
		}
		for _, rec := range corrupt {
			slog.Warn("skipping corrupt job record", "id", rec.ID, "reason", rec.Reason)
		}
		for _, job := range jobs {
			if job.Issue == issue {
				return nil, &AlreadyTakenError{Issue: issue, JobID: job.ID, ClaimedBy: job.ClaimedBy}
			}
		}
	}

	now := c.now().UTC()
	p.Issue = issue
	p.CreatedBy = agentID
	job := p.build(now)
	job.ClaimedBy = agentID
	job.ClaimedAt = &now

	if err := c.jobs.Create(types.Active, job); err != nil {
		return nil, err
	}

	c.append(agentID, types.EventJobClaimed, types.Payload{JobID: job.ID, Issue: issue})
	return job, nil
}

// Complete moves a job from active to done, recording the result. Only the
// claimant may complete a job unless force is set. A second completion of
// the same id returns ErrAlreadyCompleted; the job store's atomic move
// makes the rest safe without the coordination lock.
func (c *Coordinator) Complete(ctx context.Context, id types.JobID, agentID types.AgentID, result string, force bool) (*types.Job, error) {
	job, collection, err := c.jobs.Read(id)
	if err != nil {
		return nil, err
	}
	switch collection {
	case types.Done:
		return nil, ErrAlreadyCompleted
	case types.Pending:
		return nil, fmt.Errorf("job %s has not been claimed", id)
	}
	if !force && job.ClaimedBy != agentID {
		return nil, &NotOwnerError{JobID: id, ClaimedBy: job.ClaimedBy}
	}

	now := c.now().UTC()
	completed, err := c.jobs.Move(id, types.Active, types.Done, func(j *types.Job) {
		j.CompletedAt = &now
		j.Result = result
	})
	if err != nil {
		var notFound *state.NotFoundError
		if errors.As(err, &notFound) {
			// Racing double-completion: the other caller won the move.
			if _, col, readErr := c.jobs.Read(id); readErr == nil && col == types.Done {
				return nil, ErrAlreadyCompleted
			}
		}
		return nil, err
	}

	c.append(agentID, types.EventJobCompleted, types.Payload{JobID: id, Result: result})
	return completed, nil
}

func (c *Coordinator) doneSet() (map[types.JobID]bool, error) {
	jobs, _, err := c.jobs.List(types.Done)
	if err != nil {
		return nil, err
	}
	done := make(map[types.JobID]bool, len(jobs))
	for _, job := range jobs {
		done[job.ID] = true
	}
	return done, nil
}

func depsSatisfied(job *types.Job, done map[types.JobID]bool) bool {
	for _, dep := range job.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// append records an audit event. The log is an observability feed, not the
// source of truth, so a failed append is logged rather than failing the
// operation that already succeeded.
func (c *Coordinator) append(agentID types.AgentID, eventType string, payload types.Payload) {
	event := &types.Event{
		At:      c.now().UTC(),
		AgentID: agentID,
		Type:    eventType,
		Data:    payload.Encode(),
	}
	if err := c.events.Append(event); err != nil {
		slog.Warn("event append failed", "type", eventType, "error", err)
	}
}
