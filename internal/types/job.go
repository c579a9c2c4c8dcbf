// internal/types/job.go
package types

import (
	"fmt"
	"time"
)

// Priority orders jobs within a score band.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Bonus returns the additive score contribution of the priority.
func (p Priority) Bonus() int {
	switch p {
	case PriorityUrgent:
		return 40
	case PriorityHigh:
		return 30
	case PriorityMedium:
		return 20
	case PriorityLow:
		return 10
	}
	return 0
}

// ParsePriority validates a user-supplied priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s), nil
	}
	return "", fmt.Errorf("invalid priority %q (want low, medium, high, or urgent)", s)
}

// Complexity describes how demanding a job is expected to be.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ParseComplexity validates a user-supplied complexity string.
func ParseComplexity(s string) (Complexity, error) {
	switch Complexity(s) {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return Complexity(s), nil
	}
	return "", fmt.Errorf("invalid complexity %q (want simple, moderate, or complex)", s)
}

// Tier is a capability level, used both as a job's recommended model tier
// and as an agent's strength. It is advisory for scoring only, never an
// access-control boundary.
type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// Rank maps a tier onto an ordinal so tiers can be compared.
func (t Tier) Rank() int {
	switch t {
	case Tier1:
		return 1
	case Tier2:
		return 2
	case Tier3:
		return 3
	}
	return 0
}

// ParseTier validates a user-supplied tier string.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case Tier1, Tier2, Tier3:
		return Tier(s), nil
	}
	return "", fmt.Errorf("invalid tier %q (want tier1, tier2, or tier3)", s)
}

// RecommendedTier derives the advisory model tier from a job's complexity.
func RecommendedTier(c Complexity) Tier {
	switch c {
	case ComplexitySimple:
		return Tier1
	case ComplexityModerate:
		return Tier2
	default:
		return Tier3
	}
}

// Collection names one of the three job directories. A record's collection
// is its state: the file's location is the single source of truth.
type Collection string

const (
	Pending Collection = "pending"
	Active  Collection = "active"
	Done    Collection = "done"
)

// Collections lists all collections in lifecycle order.
func Collections() []Collection {
	return []Collection{Pending, Active, Done}
}

// Job is one unit of assignable work, serialized to a YAML file named by
// its id. Fields up to DependsOn are immutable after creation; the claim
// and completion fields are each set exactly once.
type Job struct {
	ID               JobID      `yaml:"id"`
	Created          time.Time  `yaml:"created"`
	CreatedBy        AgentID    `yaml:"created_by"`
	Priority         Priority   `yaml:"priority"`
	Complexity       Complexity `yaml:"complexity"`
	RecommendedModel Tier       `yaml:"recommended_model"`
	Title            string     `yaml:"title"`
	Description      string     `yaml:"description,omitempty"`
	Issue            string     `yaml:"issue,omitempty"`
	DependsOn        []JobID    `yaml:"depends_on,omitempty"`
	ClaimedBy        AgentID    `yaml:"claimed_by,omitempty"`
	ClaimedAt        *time.Time `yaml:"claimed_at,omitempty"`
	CompletedAt      *time.Time `yaml:"completed_at,omitempty"`
	Result           string     `yaml:"result,omitempty"`
}
