// Package router classifies a query into a RoutingDecision. The Router
// never mutates state; calls are idempotent given a deterministic
// provider.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/provider"
)

// simpleStopSet short-circuits greeting/acknowledgement queries.
var simpleStopSet = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "ok": true, "yes": true, "no": true,
}

const simpleQueryLengthThreshold = 15

// IsSimpleQuery reports whether query bypasses memory search by heuristic:
// trimmed length under 15 chars, or membership (case-insensitive) in a
// small greeting/acknowledgement stop-set.
func IsSimpleQuery(query string) bool {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < simpleQueryLengthThreshold {
		return true
	}
	return simpleStopSet[strings.ToLower(trimmed)]
}

const classificationTemplate = `Classify the following user query into exactly one agent role and decide whether memory context is needed.

Agent roles: GeneralChat, Coder, Researcher, Reasoner, Planner, Reviewer.

Respond with ONLY a JSON object of the form:
{"agent_role": "<role>", "should_search_memory": <bool>, "reason": "<short reason>"}

Query: %s`

var validRoles = map[orch.AgentRole]bool{
	orch.RoleGeneralChat: true,
	orch.RoleCoder:       true,
	orch.RoleResearcher:  true,
	orch.RoleReasoner:    true,
	orch.RolePlanner:     true,
	orch.RoleReviewer:    true,
}

// Router classifies queries using a model provider.
type Router struct {
	provider provider.Provider
	modelID  string
}

// New constructs a Router using the given provider and model id.
func New(p provider.Provider, modelID string) *Router {
	return &Router{provider: p, modelID: modelID}
}

// Classify returns a RoutingDecision for query. Classification always
// goes through the model; the simple-query heuristic gates only memory
// search, never the classification itself. On malformed model output it
// defaults to {GeneralChat, memory=false}.
func (r *Router) Classify(ctx context.Context, query string) (orch.RoutingDecision, error) {
	prompt := fmt.Sprintf(classificationTemplate, query)
	text, err := r.provider.Generate(ctx, r.modelID, prompt, "")
	if err != nil {
		return orch.RoutingDecision{}, fmt.Errorf("router: generate: %w", err)
	}

	decision, ok := parseDecision(text)
	if !ok {
		decision = orch.RoutingDecision{
			AgentRole:          orch.RoleGeneralChat,
			ShouldSearchMemory: false,
			Reason:             "malformed router output",
		}
	}
	if IsSimpleQuery(query) {
		decision.ShouldSearchMemory = false
	}
	return decision, nil
}

func parseDecision(text string) (orch.RoutingDecision, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return orch.RoutingDecision{}, false
	}

	var raw struct {
		AgentRole          orch.AgentRole `json:"agent_role"`
		ShouldSearchMemory bool           `json:"should_search_memory"`
		Reason             string         `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return orch.RoutingDecision{}, false
	}
	if !validRoles[raw.AgentRole] {
		return orch.RoutingDecision{}, false
	}
	return orch.RoutingDecision(raw), true
}
