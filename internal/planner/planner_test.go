package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/ProdByBuddha/agency/internal/errs"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error) {
	return s.reply, s.err
}

func TestShouldSkipPlanning(t *testing.T) {
	cases := map[string]bool{
		"hi":     true,
		"thanks": true,
		"short":  true,
		"Search for Rust and save it to a file somewhere": false,
	}
	for q, want := range cases {
		if got := ShouldSkipPlanning(q); got != want {
			t.Errorf("ShouldSkipPlanning(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestDecomposeValidPlan(t *testing.T) {
	reply := `{"steps": [
		{"step_num": 1, "description": "search for rust", "agent_role": "Researcher", "expected_output": "summary", "depends_on": []},
		{"step_num": 2, "description": "save result", "agent_role": "Coder", "expected_output": "saved file", "depends_on": [1]}
	]}`
	p := New(&stubProvider{reply: reply}, "m1")

	plan, err := p.Decompose(context.Background(), "Search for Rust and save it")
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	for _, s := range plan.Steps {
		for _, d := range s.DependsOn {
			if d >= s.StepNum {
				t.Fatalf("step %d depends_on %d is not a back-reference", s.StepNum, d)
			}
		}
	}

	ready := plan.ReadySteps()
	if len(ready) != 1 || ready[0].StepNum != 1 {
		t.Fatalf("expected only step 1 ready, got %+v", ready)
	}
}

func TestDecomposeRejectsForwardReference(t *testing.T) {
	reply := `{"steps": [
		{"step_num": 1, "description": "a", "agent_role": "Coder", "expected_output": "x", "depends_on": [2]},
		{"step_num": 2, "description": "b", "agent_role": "Coder", "expected_output": "y", "depends_on": []}
	]}`
	p := New(&stubProvider{reply: reply}, "m1")

	_, err := p.Decompose(context.Background(), "whatever")
	if err == nil {
		t.Fatal("expected an error for a forward reference")
	}
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecomposeRejectsUnknownRole(t *testing.T) {
	reply := `{"steps": [{"step_num": 1, "description": "a", "agent_role": "Wizard", "expected_output": "x", "depends_on": []}]}`
	p := New(&stubProvider{reply: reply}, "m1")

	if _, err := p.Decompose(context.Background(), "whatever"); err == nil {
		t.Fatal("expected an error for an unknown agent role")
	}
}

func TestDecomposeMalformedOutputFails(t *testing.T) {
	p := New(&stubProvider{reply: "not json at all"}, "m1")
	if _, err := p.Decompose(context.Background(), "whatever"); err == nil {
		t.Fatal("expected an error for malformed output")
	}
}
