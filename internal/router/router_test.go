package router

import (
	"context"
	"testing"

	"github.com/ProdByBuddha/agency/internal/orch"
)

type stubProvider struct {
	reply string
	err   error
	calls int
}

func (s *stubProvider) Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestIsSimpleQuery(t *testing.T) {
	cases := map[string]bool{
		"hi":                                 true,
		"Hello":                              true,
		"THANKS":                             true,
		"ok":                                 true,
		"short":                              true,
		"a question over fifteen chars long": false,
	}
	for q, want := range cases {
		if got := IsSimpleQuery(q); got != want {
			t.Errorf("IsSimpleQuery(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestClassifyShortQueryStillClassifies(t *testing.T) {
	p := &stubProvider{reply: `{"agent_role":"Reasoner","should_search_memory":true,"reason":"puzzle"}`}
	r := New(p, "m1")

	d, err := r.Classify(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Fatalf("expected the classifier model to be invoked for a short query, got %d calls", p.calls)
	}
	if d.AgentRole != orch.RoleReasoner {
		t.Fatalf("expected the model's classification to stand, got %+v", d)
	}
	if d.ShouldSearchMemory {
		t.Fatalf("expected the heuristic to suppress memory search for a short query, got %+v", d)
	}
}

func TestClassifyParsesStructuredReply(t *testing.T) {
	reply := `Sure, here you go: {"agent_role":"Coder","should_search_memory":true,"reason":"code task"}`
	r := New(&stubProvider{reply: reply}, "m1")

	d, err := r.Classify(context.Background(), "please write a function to reverse a string")
	if err != nil {
		t.Fatal(err)
	}
	if d.AgentRole != orch.RoleCoder || !d.ShouldSearchMemory {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestClassifyMalformedOutputDefaults(t *testing.T) {
	r := New(&stubProvider{reply: "not json at all"}, "m1")
	d, err := r.Classify(context.Background(), "please write a function to reverse a string")
	if err != nil {
		t.Fatal(err)
	}
	if d.AgentRole != orch.RoleGeneralChat || d.ShouldSearchMemory {
		t.Fatalf("expected default decision on malformed output, got %+v", d)
	}
}

func TestClassifyUnknownRoleDefaults(t *testing.T) {
	reply := `{"agent_role":"Wizard","should_search_memory":true,"reason":"nope"}`
	r := New(&stubProvider{reply: reply}, "m1")
	d, err := r.Classify(context.Background(), "please write a function to reverse a string")
	if err != nil {
		t.Fatal(err)
	}
	if d.AgentRole != orch.RoleGeneralChat {
		t.Fatalf("expected fallback to GeneralChat for unknown role, got %+v", d)
	}
}
