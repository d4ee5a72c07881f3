// Package planner decomposes a complex query into a Plan, a DAG of
// Steps expressed only through back-references, so a cycle cannot be
// produced by construction.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ProdByBuddha/agency/internal/errs"
	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/provider"
)

// skipStopSet mirrors the Router's simple-query heuristic: the same
// trivial queries that bypass memory search also bypass planning.
var skipStopSet = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "ok": true, "yes": true, "no": true,
}

const skipQueryLengthThreshold = 15

// ShouldSkipPlanning reports whether query is small/trivial enough to
// run directly instead of through the Planner.
func ShouldSkipPlanning(query string) bool {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < skipQueryLengthThreshold {
		return true
	}
	return skipStopSet[strings.ToLower(trimmed)]
}

const decompositionTemplate = `Decompose the following user request into an ordered list of concrete steps. Each step must be assigned to exactly one agent role from: GeneralChat, Coder, Researcher, Reasoner, Planner, Reviewer.

A step may depend on earlier steps by step number; dependencies may only reference steps with a smaller number (no cycles, no forward references).

Respond with ONLY a JSON object of the form:
{"steps": [{"step_num": 1, "description": "...", "agent_role": "...", "expected_output": "...", "depends_on": []}, ...]}

Request: %s`

var validRoles = map[orch.AgentRole]bool{
	orch.RoleGeneralChat: true,
	orch.RoleCoder:       true,
	orch.RoleResearcher:  true,
	orch.RoleReasoner:    true,
	orch.RolePlanner:     true,
	orch.RoleReviewer:    true,
}

// Planner decomposes queries into Plans using a model provider.
type Planner struct {
	provider provider.Provider
	modelID  string
}

// New constructs a Planner using the given provider and model id.
func New(p provider.Provider, modelID string) *Planner {
	return &Planner{provider: p, modelID: modelID}
}

type rawStep struct {
	StepNum        int            `json:"step_num"`
	Description    string         `json:"description"`
	AgentRole      orch.AgentRole `json:"agent_role"`
	ExpectedOutput string         `json:"expected_output"`
	DependsOn      []int          `json:"depends_on"`
}

type rawPlan struct {
	Steps []rawStep `json:"steps"`
}

// Decompose queries the model for a decomposition and returns a validated
// Plan. On parse failure or an invalid DAG (forward reference, duplicate
// or non-monotonic step numbers) the query fails without partial
// execution.
func (p *Planner) Decompose(ctx context.Context, query string) (*orch.Plan, error) {
	prompt := fmt.Sprintf(decompositionTemplate, query)
	text, err := p.provider.Generate(ctx, p.modelID, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("planner: generate: %w", err)
	}

	plan, err := parsePlan(text)
	if err != nil {
		return nil, fmt.Errorf("planner: %w: %w", errs.ErrValidation, err)
	}
	return plan, nil
}

func parsePlan(text string) (*orch.Plan, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object found in decomposition reply")
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse decomposition json: %w", err)
	}
	if len(raw.Steps) == 0 {
		return nil, fmt.Errorf("decomposition produced zero steps")
	}

	steps := make([]*orch.Step, 0, len(raw.Steps))
	seen := make(map[int]bool, len(raw.Steps))
	expectedNum := 1
	for _, rs := range raw.Steps {
		if rs.StepNum != expectedNum {
			return nil, fmt.Errorf("step numbers must be assigned 1..N in order: expected %d, got %d", expectedNum, rs.StepNum)
		}
		if seen[rs.StepNum] {
			return nil, fmt.Errorf("duplicate step_num %d", rs.StepNum)
		}
		seen[rs.StepNum] = true

		if !validRoles[rs.AgentRole] {
			return nil, fmt.Errorf("step %d: unknown agent role %q", rs.StepNum, rs.AgentRole)
		}

		for _, dep := range rs.DependsOn {
			// Only back-references are permitted: this is the sole
			// cycle-prevention mechanism.
			if dep >= rs.StepNum {
				return nil, fmt.Errorf("step %d: depends_on %d is not a back-reference", rs.StepNum, dep)
			}
			if !seen[dep] {
				return nil, fmt.Errorf("step %d: depends_on references unknown step %d", rs.StepNum, dep)
			}
		}

		steps = append(steps, &orch.Step{
			StepNum:        rs.StepNum,
			Description:    rs.Description,
			AgentRole:      rs.AgentRole,
			ExpectedOutput: rs.ExpectedOutput,
			DependsOn:      rs.DependsOn,
			Status:         orch.StepPending,
		})
		expectedNum++
	}

	return &orch.Plan{Steps: steps}, nil
}
