// internal/coordinator/score.go
package coordinator

import (
	"sort"

	"github.com/user/swarmd/internal/types"
)

// Score ranks a pending job for a claiming agent. Pure function, no I/O.
//
// Base score: 100 for an exact tier match, 50 when the agent is
// overqualified, 0 when the job recommends a higher tier than the agent
// has. A zero-base job stays claimable when nothing better is pending.
func Score(agentTier types.Tier, job *types.Job) int {
	var base int
	switch {
	case job.RecommendedModel == agentTier:
		base = 100
	case job.RecommendedModel.Rank() < agentTier.Rank():
		base = 50
	default:
		base = 0
	}
	return base + job.Priority.Bonus()
}

// Rank sorts jobs for a claiming agent: score descending, then earliest
// created (FIFO among equals), then id lexical order so the ordering is
// total even for jobs created in the same instant. The input slice is
// sorted in place and returned.
func Rank(agentTier types.Tier, jobs []*types.Job) []*types.Job {
	sort.SliceStable(jobs, func(i, j int) bool {
		si, sj := Score(agentTier, jobs[i]), Score(agentTier, jobs[j])
		if si != sj {
			return si > sj
		}
		if !jobs[i].Created.Equal(jobs[j].Created) {
			return jobs[i].Created.Before(jobs[j].Created)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}
