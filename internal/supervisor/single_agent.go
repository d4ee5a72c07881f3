package supervisor

import (
	"context"
	"fmt"

	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/reactloop"
)

var systemPromptByRole = map[orch.AgentRole]string{
	orch.RoleGeneralChat: "You are a helpful conversational assistant.",
	orch.RoleCoder:       "You are an expert software engineer. Prefer precise, working code.",
	orch.RoleResearcher:  "You are a meticulous researcher. Use tools to verify facts before answering.",
	orch.RoleReasoner:    "You are a careful, step-by-step reasoner.",
	orch.RolePlanner:     "You decompose and coordinate multi-step work.",
	orch.RoleReviewer:    "You critically review prior work for correctness.",
}

// handleSingleAgent runs the unplanned path: GeneralChat gets a single
// direct model call (no ReAct grammar, no tool use), every other role
// runs the full Agent Loop with failure-reflection retries and, on
// success, consensus review.
func (s *Supervisor) handleSingleAgent(ctx context.Context, query string, role orch.AgentRole, contextStr string) (Result, error) {
	if role == orch.RoleGeneralChat {
		text, err := s.provider.Generate(ctx, s.cfg.ModelID, query, systemPromptByRole[role]+"\n\nContext:\n"+contextStr)
		if err != nil {
			return Result{}, fmt.Errorf("supervisor: general chat generate: %w", err)
		}
		resp := orch.AgentResponse{Success: true, Answer: text, AgentRole: role}
		return Result{Answer: text, AgentResponses: []orch.AgentResponse{resp}, Success: true}, nil
	}

	loop := reactloop.New(s.provider, s.cfg.ModelID, s.tools, s.cfg.Confirm)

	var reflections []string
	workingContext := contextStr

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return Result{}, fmt.Errorf("supervisor: acquire permit: %w", err)
		}
		resp, err := loop.Run(ctx, role, query, workingContext)
		s.sem.Release(1)
		if err != nil {
			return Result{}, fmt.Errorf("supervisor: agent loop: %w", err)
		}

		if !resp.Success {
			analysis, aerr := s.reflector.AnalyzeFailure(ctx, s.cfg.ModelID, query, resp.Steps, resp.Error)
			if aerr != nil {
				return Result{}, fmt.Errorf("supervisor: analyze failure: %w", aerr)
			}
			reflections = append(reflections, analysis.Analysis)
			if !analysis.ShouldRetry {
				return finalizeSingleAgent(resp, reflections), nil
			}
			continue
		}

		shouldRetry, reviews := s.reflector.ConsensusReview(ctx, s.cfg.Critic1ModelID, s.cfg.Critic2ModelID, query, resp.Answer, resp.Steps)
		if !shouldRetry {
			return finalizeSingleAgent(resp, reflections), nil
		}

		reflection := fmt.Sprintf("CRITICAL REVIEW FINDING: Previous response rejected.\nCritic1: %s\nCritic2: %s", reviews[0].Analysis, reviews[1].Analysis)
		reflections = append(reflections, "Consensus review finding: "+reflection)

		if attempt == s.cfg.MaxRetries-1 {
			resp.Success = false
			resp.Error = fmt.Sprintf("Consensus review failed after %d attempts. Last reason: %s", s.cfg.MaxRetries, reflection)
			return finalizeSingleAgent(resp, reflections), nil
		}
		workingContext = contextStr + "\n\n## Feedback from Previous Attempt\n" + reflection
	}

	failed := orch.AgentResponse{Success: false, AgentRole: role, Error: "Failed after retries"}
	return finalizeSingleAgent(failed, reflections), nil
}

func finalizeSingleAgent(resp orch.AgentResponse, reflections []string) Result {
	answer := resp.Answer
	if !resp.Success && answer == "" {
		answer = resp.Error
	}
	return Result{
		Answer:         answer,
		AgentResponses: []orch.AgentResponse{resp},
		Success:        resp.Success,
		Reflections:    reflections,
	}
}
