// internal/state/agents.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/swarmd/internal/types"
)

// AgentTableFile is a JSON-file-backed agent table at <root>/agents.json,
// one entry per agent id. It is fed by the fire-and-forget hook path, so
// concurrent writers from different processes are resolved last-writer-wins;
// a lost heartbeat update is repaired by the next one.
type AgentTableFile struct {
	path string
	mu   sync.RWMutex
}

// NewAgentTable creates an agent table rooted at the given state directory.
func NewAgentTable(root string) *AgentTableFile {
	return &AgentTableFile{path: filepath.Join(root, "agents.json")}
}

// Get returns the entry for an agent id, or NotFoundError-like error text.
func (t *AgentTableFile) Get(id types.AgentID) (*types.AgentState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	table, err := t.load()
	if err != nil {
		return nil, err
	}
	agent, ok := table[id]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", id)
	}
	return agent, nil
}

// List returns all entries sorted by agent id.
func (t *AgentTableFile) List() ([]*types.AgentState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	table, err := t.load()
	if err != nil {
		return nil, err
	}
	agents := make([]*types.AgentState, 0, len(table))
	for _, agent := range table {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

// Upsert creates the entry on first sight of an agent id and applies the
// update in place, then saves atomically.
func (t *AgentTableFile) Upsert(id types.AgentID, update func(*types.AgentState)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	table, err := t.load()
	if err != nil {
		return err
	}
	agent, ok := table[id]
	if !ok {
		agent = &types.AgentState{
			ID:           id,
			Status:       types.StatusIdle,
			RegisteredAt: time.Now().UTC(),
		}
		table[id] = agent
	}
	if update != nil {
		update(agent)
	}
	return t.save(table)
}

// Cleanup removes entries whose heartbeat age exceeds olderThan and
// returns the removed ids. With dryRun it only reports what would go.
func (t *AgentTableFile) Cleanup(olderThan time.Duration, now time.Time, dryRun bool) ([]types.AgentID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	table, err := t.load()
	if err != nil {
		return nil, err
	}

	var removed []types.AgentID
	for id, agent := range table {
		if agent.HeartbeatAge(now) > olderThan {
			removed = append(removed, id)
			if !dryRun {
				delete(table, id)
			}
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	if dryRun || len(removed) == 0 {
		return removed, nil
	}
	return removed, t.save(table)
}

func (t *AgentTableFile) load() (map[types.AgentID]*types.AgentState, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.AgentID]*types.AgentState), nil
		}
		return nil, fmt.Errorf("read agent table: %w", err)
	}

	var agents []*types.AgentState
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("unmarshal agent table: %w", err)
	}
	table := make(map[types.AgentID]*types.AgentState, len(agents))
	for _, agent := range agents {
		table[agent.ID] = agent
	}
	return table, nil
}

// save converts the map to a sorted slice, marshals with indentation, and
// writes atomically (temp file + rename).
func (t *AgentTableFile) save(table map[types.AgentID]*types.AgentState) error {
	agents := make([]*types.AgentState, 0, len(table))
	for _, agent := range table {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	data, err := json.MarshalIndent(agents, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent table: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp agent table: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp agent table: %w", err)
	}
	return nil
}
