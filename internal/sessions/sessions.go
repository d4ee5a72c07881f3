// Package sessions persists the session file: a JSON-encoded record of
// the episodic turn history and the last executed Plan, loaded on
// startup if present and cleared on an explicit "clear history" command.
package sessions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/ProdByBuddha/agency/internal/orch"
)

// State is the persisted record: EpisodicMemory plus the last Plan that
// was executed (nil if none).
type State struct {
	Turns    []orch.Turn `json:"turns"`
	LastPlan *orch.Plan  `json:"last_plan,omitempty"`
}

// Manager persists State to a single JSON file, guarded against
// concurrent writers.
type Manager struct {
	mu   sync.Mutex
	path string
}

// NewManager roots persistence at path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Save atomically writes state to the configured path (tmp file +
// rename).
func (m *Manager) Save(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// Load reads State from the configured path. Returns a zero State with no
// error if the file does not exist yet (a fresh session).
func (m *Manager) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Clear removes the session file, implementing the "clear history"
// command. Missing file is not an error.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
