package sessions

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ProdByBuddha/agency/internal/orch"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	m := NewManager(path)

	state := State{
		Turns: []orch.Turn{
			{Role: orch.RoleUser, Content: "hi", Timestamp: time.Now()},
			{Role: orch.RoleAssistant, Content: "hello", Timestamp: time.Now()},
		},
		LastPlan: &orch.Plan{Steps: []*orch.Step{
			{StepNum: 1, Description: "do a thing", AgentRole: orch.RoleCoder, Status: orch.StepCompleted},
		}},
	}

	if err := m.Save(state); err != nil {
		t.Fatal(err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Turns) != 2 || loaded.Turns[0].Content != "hi" {
		t.Fatalf("unexpected turns: %+v", loaded.Turns)
	}
	if loaded.LastPlan == nil || len(loaded.LastPlan.Steps) != 1 {
		t.Fatalf("unexpected plan: %+v", loaded.LastPlan)
	}
}

func TestLoadMissingFileIsEmptyNotError(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "does-not-exist.json"))
	state, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Turns) != 0 || state.LastPlan != nil {
		t.Fatalf("expected zero-value state, got %+v", state)
	}
}

func TestClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	m := NewManager(path)

	if err := m.Save(State{Turns: []orch.Turn{{Role: orch.RoleUser, Content: "x"}}}); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}

	state, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Turns) != 0 {
		t.Fatalf("expected empty state after clear, got %+v", state)
	}

	// Clearing an already-cleared session is not an error.
	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
}
