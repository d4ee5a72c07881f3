// Package reactloop implements the Agent Loop: a stepwise
// reason-act-observe loop over a tool catalog, with a bounded iteration
// count, a laziness filter and a permissioned-tool confirmation flow.
package reactloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/provider"
	"github.com/ProdByBuddha/agency/internal/tools"
)

// MaxIterDefault is the hard cap on ReAct iterations.
const MaxIterDefault = 5

// actionKeywords drives the laziness filter: a query containing any of
// these is expected to use a tool before answering.
var actionKeywords = []string{
	"create", "write", "search", "analyze", "run", "execute", "list",
	"find", "build", "forge", "calculate", "read", "check", "entropy",
}

// ContainsActionKeyword reports whether query contains any action keyword,
// case-insensitively, driving the laziness filter.
func ContainsActionKeyword(query string) bool {
	q := strings.ToLower(query)
	for _, k := range actionKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// lazinessHint is the prefix the laziness filter's injected observation
// begins with.
const lazinessHint = "SYSTEM HINT: this request requires using a tool, not a bare answer. Use an available tool before giving your final answer."

// lazinessHintToolName names the synthetic, non-executed pseudo-action
// the loop injects so a rewritten lazy step keeps |actions| ==
// |observations| even though nothing was really invoked.
const lazinessHintToolName = "__laziness_hint__"

// deniedPrefix is the prefix of an observation produced when the
// external supervisor denies a permissioned tool call.
const deniedPrefix = "USER DENIED PERMISSION: "

// PermissionFunc asks the external supervisor (user) whether to proceed
// with a permissioned ToolCall. Returning false denies it.
type PermissionFunc func(ctx context.Context, call orch.ToolCall) bool

// AutoApprove is the default PermissionFunc used when none is supplied:
// it approves every call. Callers that need the real confirmation prompt
// (e.g. an interactive CLI) must supply their own PermissionFunc.
func AutoApprove(ctx context.Context, call orch.ToolCall) bool { return true }

// Loop runs the ReAct reason-act-observe cycle for a single agent
// invocation.
type Loop struct {
	provider provider.Provider
	modelID  string
	tools    *tools.Registry
	maxIter  int
	confirm  PermissionFunc
}

// New constructs a Loop. A nil confirm defaults to AutoApprove.
func New(p provider.Provider, modelID string, reg *tools.Registry, confirm PermissionFunc) *Loop {
	if confirm == nil {
		confirm = AutoApprove
	}
	return &Loop{provider: p, modelID: modelID, tools: reg, maxIter: MaxIterDefault, confirm: confirm}
}

// WithMaxIter overrides the default iteration cap.
func (l *Loop) WithMaxIter(n int) *Loop {
	l.maxIter = n
	return l
}

var systemPromptByRole = map[orch.AgentRole]string{
	orch.RoleGeneralChat: "You are a helpful conversational assistant.",
	orch.RoleCoder:       "You are an expert software engineer. Prefer precise, working code.",
	orch.RoleResearcher:  "You are a meticulous researcher. Use tools to verify facts before answering.",
	orch.RoleReasoner:    "You are a careful, step-by-step reasoner.",
	orch.RolePlanner:     "You decompose and coordinate multi-step work.",
	orch.RoleReviewer:    "You critically review prior work for correctness.",
}

// Run executes the ReAct loop for description under role, with contextStr
// as prior conversation/memory context, and returns the terminal
// AgentResponse.
func (l *Loop) Run(ctx context.Context, role orch.AgentRole, description, contextStr string) (orch.AgentResponse, error) {
	var steps []orch.ReActStep
	lazinessFired := false

	for iter := 0; iter < l.maxIter; iter++ {
		prompt := buildPrompt(description, contextStr, l.tools, steps)
		text, err := l.provider.Generate(ctx, l.modelID, prompt, systemPromptByRole[role])
		if err != nil {
			return orch.AgentResponse{Success: false, Steps: steps, AgentRole: role, Error: fmt.Sprintf("generate: %v", err)}, nil
		}

		step, perr := parseReActReply(text)
		if perr != nil {
			// Validation-grade error inside an iteration: retry with an
			// injected hint rather than failing the whole loop.
			steps = append(steps, orch.ReActStep{
				Thought:      "(malformed model reply, retrying with a hint)",
				Actions:      []orch.ToolCall{{Name: lazinessHintToolName}},
				Observations: []string{"SYSTEM HINT: respond using [THOUGHT]/[ACTION] {json}/[ANSWER] segments only."},
			})
			continue
		}

		if step.IsFinal && len(steps) == 0 && !lazinessFired && ContainsActionKeyword(description) {
			lazinessFired = true
			steps = append(steps, orch.ReActStep{
				Thought:      step.Thought,
				Actions:      []orch.ToolCall{{Name: lazinessHintToolName}},
				Observations: []string{lazinessHint},
				IsFinal:      false,
			})
			continue
		}

		if step.IsFinal {
			steps = append(steps, step)
			return orch.AgentResponse{Success: true, Answer: step.Answer, Steps: steps, AgentRole: role}, nil
		}

		step.Observations = l.executeActions(ctx, step.Actions)
		steps = append(steps, step)
	}

	return orch.AgentResponse{
		Success:   false,
		Steps:     steps,
		AgentRole: role,
		Error:     "Max iterations reached",
	}, nil
}

// executeActions runs each ToolCall sequentially, order-preserving, and
// returns one observation per call so non-terminal steps keep
// |actions| == |observations|.
func (l *Loop) executeActions(ctx context.Context, actions []orch.ToolCall) []string {
	observations := make([]string, 0, len(actions))
	for _, call := range actions {
		tool, ok := l.tools.Get(call.Name)
		if !ok {
			observations = append(observations, fmt.Sprintf("tool %q not found", call.Name))
			continue
		}

		if tool.RequiresConfirmation() && !l.confirm(ctx, call) {
			observations = append(observations, deniedPrefix+"this action was blocked by the human supervisor. Try a different approach.")
			continue
		}

		out, err := tool.Execute(ctx, call.Parameters)
		switch {
		case err != nil:
			observations = append(observations, fmt.Sprintf("tool execution failed: %v", err))
		case !out.Success:
			observations = append(observations, fmt.Sprintf("tool %q failed: %s", call.Name, out.Error))
		default:
			observations = append(observations, out.Summary)
		}
	}
	return observations
}

func buildPrompt(description, contextStr string, reg *tools.Registry, history []orch.ReActStep) string {
	var b strings.Builder

	b.WriteString("Task: ")
	b.WriteString(description)
	b.WriteString("\n\n")

	if contextStr != "" {
		b.WriteString("Context:\n")
		b.WriteString(contextStr)
		b.WriteString("\n\n")
	}

	if reg != nil {
		names := reg.Names()
		if len(names) > 0 {
			b.WriteString("Available tools:\n")
			for _, n := range names {
				t, _ := reg.Get(n)
				schema, _ := json.Marshal(t.Parameters())
				fmt.Fprintf(&b, "- %s: %s (parameters: %s)\n", t.Name(), t.Description(), schema)
			}
			b.WriteString("\n")
		}
	}

	if len(history) > 0 {
		b.WriteString("Prior steps:\n")
		for _, s := range history {
			fmt.Fprintf(&b, "[THOUGHT] %s\n", s.Thought)
			for j, a := range s.Actions {
				fmt.Fprintf(&b, "[ACTION] %s -> observation: %s\n", a.Name, safeObservation(s.Observations, j))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with [THOUGHT] your reasoning, then either one or more [ACTION] {json tool call} lines, or a single [ANSWER] with your final answer.\n")
	return b.String()
}

func safeObservation(observations []string, i int) string {
	if i < len(observations) {
		return observations[i]
	}
	return ""
}
