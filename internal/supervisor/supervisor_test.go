package supervisor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ProdByBuddha/agency/internal/memory"
	"github.com/ProdByBuddha/agency/internal/sessions"
	"github.com/ProdByBuddha/agency/internal/tools"
)

// scriptedProvider dispatches on substrings of the prompt/systemPrompt so
// the several components (router, planner, reflector, the Agent Loop)
// sharing one fake provider each get the canned reply their own template
// would realistically produce.
type scriptedProvider struct {
	rules []rule
}

type rule struct {
	match    func(prompt, systemPrompt string) bool
	response string
}

func (p *scriptedProvider) Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error) {
	for _, r := range p.rules {
		if r.match(prompt, systemPrompt) {
			return r.response, nil
		}
	}
	return "[ANSWER] unmatched", nil
}

func contains(sub string) func(prompt, systemPrompt string) bool {
	return func(prompt, systemPrompt string) bool { return strings.Contains(prompt, sub) }
}

func containsAll(subs ...string) func(prompt, systemPrompt string) bool {
	return func(prompt, systemPrompt string) bool {
		for _, s := range subs {
			if !strings.Contains(prompt, s) {
				return false
			}
		}
		return true
	}
}

type stubTool struct {
	name   string
	output tools.Output
}

func (t *stubTool) Name() string               { return t.name }
func (t *stubTool) Description() string        { return "a stub tool" }
func (t *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *stubTool) RequiresConfirmation() bool { return false }
func (t *stubTool) Execute(ctx context.Context, parameters map[string]any) (tools.Output, error) {
	return t.output, nil
}

// noopMemory satisfies memory.Store with empty results everywhere, so
// tests that route through ShouldSearchMemory=true don't need a real
// vector store.
type noopMemory struct{}

func (noopMemory) Write(ctx context.Context, entry memory.Entry) error { return nil }
func (noopMemory) Search(ctx context.Context, query string, topK int, f memory.Filter) ([]memory.Entry, error) {
	return nil, nil
}
func (noopMemory) Consolidate(ctx context.Context) (int, error) { return 0, nil }
func (noopMemory) ColdMemories(ctx context.Context, limit int) ([]memory.Entry, error) {
	return nil, nil
}
func (noopMemory) Prune(ctx context.Context, ids []string) error { return nil }
func (noopMemory) Count(ctx context.Context) (int, error)        { return 0, nil }
func (noopMemory) Persist(ctx context.Context) error             { return nil }
func (noopMemory) Hibernate(ctx context.Context) error           { return nil }
func (noopMemory) Wake(ctx context.Context) error                { return nil }

func TestHandleSimpleChatScenario(t *testing.T) {
	p := &scriptedProvider{rules: []rule{
		{contains("Classify the following"), `{"agent_role":"GeneralChat","should_search_memory":false,"reason":"casual"}`},
		{func(prompt, sp string) bool { return prompt == "Tell me a short joke about Rust" },
			"Why did the Rust developer break up? Too many lifetime commitments."},
	}}

	sup := New(p, tools.NewRegistry(), Config{ModelID: "m1"})
	result, err := sup.Handle(context.Background(), "Tell me a short joke about Rust")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || !strings.Contains(result.Answer, "lifetime") {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.AgentResponses) != 1 || len(result.AgentResponses[0].Steps) != 0 {
		t.Fatalf("expected a single steps-empty GeneralChat response, got %+v", result.AgentResponses)
	}
}

func TestHandleComplexPlanScenario(t *testing.T) {
	p := &scriptedProvider{rules: []rule{
		{contains("Classify the following"), `{"agent_role":"Planner","should_search_memory":true,"reason":"multi-step"}`},
		{contains("Decompose the following"), `{"steps":[
			{"step_num":1,"description":"Search for Rust","agent_role":"Researcher","expected_output":"search results","depends_on":[]},
			{"step_num":2,"description":"Save the result as rust.txt","agent_role":"Coder","expected_output":"saved file","depends_on":[1]}
		]}`},
		{containsAll("Task: Search for Rust", "Prior steps:"), "[ANSWER] Found Rust info"},
		{contains("Task: Search for Rust"), `[THOUGHT] searching` + "\n" + `[ACTION] {"name":"web_search","parameters":{"query":"Rust"}}`},
		{containsAll("Task: Save the result", "Prior steps:"), "[ANSWER] Saved."},
		{contains("Task: Save the result"), `[THOUGHT] saving` + "\n" + `[ACTION] {"name":"artifact_manager","parameters":{"name":"rust.txt","content":"Found Rust info"}}`},
		{contains("Review the following agent answer"), `{"analysis":"looks correct","should_retry":false}`},
	}}

	reg := tools.NewRegistry(
		&stubTool{name: "web_search", output: tools.Output{Success: true, Summary: "found it"}},
		&stubTool{name: "artifact_manager", output: tools.Output{Success: true, Summary: "Saved."}},
	)

	sup := New(p, reg, Config{ModelID: "m1", Critic1ModelID: "c1", Critic2ModelID: "c2"}).WithMemory(noopMemory{})
	result, err := sup.Handle(context.Background(), "Search for Rust and save it")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected overall success, got %+v", result)
	}
	if result.Plan == nil || !result.Plan.IsComplete() {
		t.Fatalf("expected a complete plan, got %+v", result.Plan)
	}
	if !strings.Contains(result.Answer, "Saved.") {
		t.Fatalf("expected final answer to mention Saved., got %q", result.Answer)
	}
}

func TestHandlePersistsSession(t *testing.T) {
	p := &scriptedProvider{rules: []rule{
		{contains("Classify the following"), `{"agent_role":"GeneralChat","should_search_memory":false,"reason":"casual"}`},
		{func(prompt, sp string) bool { return true }, "hello there"},
	}}

	path := filepath.Join(t.TempDir(), "session.json")
	mgr := sessions.NewManager(path)
	sup := New(p, tools.NewRegistry(), Config{ModelID: "m1"}).WithSessions(mgr)

	if _, err := sup.Handle(context.Background(), "hi there friend"); err != nil {
		t.Fatal(err)
	}

	state, err := mgr.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Turns) != 2 {
		t.Fatalf("expected 2 persisted turns (user + assistant), got %+v", state.Turns)
	}
}

func TestTruncateNeverSplitsCodepoint(t *testing.T) {
	s := strings.Repeat("héllo wörld ", 200)
	out := truncate(s, 1000)
	if !utf8.ValidString(out) {
		t.Fatalf("truncation produced invalid UTF-8")
	}
	if got := len([]rune(strings.TrimSuffix(out, "... [truncated]"))); got != 1000 {
		t.Fatalf("expected 1000 runes kept, got %d", got)
	}

	short := "héllo"
	if truncate(short, 1000) != short {
		t.Fatalf("expected short strings returned unchanged")
	}
}
