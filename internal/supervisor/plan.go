package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/reactloop"
)

// sharedContext is the execution-context string concurrent plan-step
// agents read from and append to, guarded by an RWMutex so readers
// observe a monotonically growing string.
type sharedContext struct {
	mu   sync.RWMutex
	text string
}

func newSharedContext(initial string) *sharedContext {
	return &sharedContext{text: initial}
}

func (c *sharedContext) snapshot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text
}

func (c *sharedContext) append(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text += s
}

type stepOutcome struct {
	stepNum int
	resp    orch.AgentResponse
	err     error
}

// handlePlanned decomposes query into a Plan and executes it round by
// round over the ready-set, permit-bounded by s.sem and advisorially
// throttled by the attached Governor.
func (s *Supervisor) handlePlanned(ctx context.Context, query, contextStr string) (Result, error) {
	plan, err := s.planner.Decompose(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("supervisor: decompose: %w", err)
	}

	release := s.reserveGovernorCapacity(ctx)
	defer release()

	execCtx := newSharedContext(contextStr)
	var agentResponses []orch.AgentResponse
	var finalAnswer string
	overallSuccess := true

	for !plan.IsComplete() {
		ready := plan.ReadySteps()
		if len(ready) == 0 {
			break
		}

		slog.Info("supervisor: executing ready plan steps", "count", len(ready))
		outcomes := s.runStepsConcurrently(ctx, ready, execCtx)

		stepFailed := false
		for _, oc := range outcomes {
			switch {
			case oc.err != nil:
				slog.Warn("supervisor: plan step errored", "step", oc.stepNum, "error", oc.err)
				plan.FailStep(oc.stepNum)
				stepFailed = true
				overallSuccess = false
				finalAnswer = fmt.Sprintf("Task failed at step %d: %v", oc.stepNum, oc.err)
			case !oc.resp.Success:
				slog.Warn("supervisor: plan step failed", "step", oc.stepNum, "error", oc.resp.Error)
				plan.FailStep(oc.stepNum)
				stepFailed = true
				overallSuccess = false
				finalAnswer = fmt.Sprintf("Step %d failed: %s", oc.stepNum, oc.resp.Error)
			default:
				plan.CompleteStep(oc.stepNum, oc.resp.Answer)
				execCtx.append(fmt.Sprintf("\n\nStep %d Result: %s", oc.stepNum, oc.resp.Answer))
			}
			agentResponses = append(agentResponses, oc.resp)
			if stepFailed {
				break
			}
		}

		if stepFailed {
			break
		}
	}

	if overallSuccess {
		finalAnswer = lastStepOutput(plan)
	}

	return Result{
		Answer:         finalAnswer,
		AgentResponses: agentResponses,
		Plan:           plan,
		Success:        overallSuccess,
	}, nil
}

// runStepsConcurrently launches one Agent Loop per ready Step, bounded by
// s.sem, and waits for all of them (the ready-set round is itself a
// barrier: the next round's readiness depends on this round completing).
func (s *Supervisor) runStepsConcurrently(ctx context.Context, ready []*orch.Step, execCtx *sharedContext) []stepOutcome {
	outcomes := make([]stepOutcome, len(ready))
	var wg sync.WaitGroup

	for i, step := range ready {
		wg.Add(1)
		go func(i int, step *orch.Step) {
			defer wg.Done()

			if err := s.sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = stepOutcome{stepNum: step.StepNum, err: fmt.Errorf("semaphore: %w", err)}
				return
			}
			defer s.sem.Release(1)

			loop := reactloop.New(s.provider, s.cfg.ModelID, s.tools, s.cfg.Confirm)
			resp, err := loop.Run(ctx, step.AgentRole, step.Description, execCtx.snapshot())
			if err != nil {
				outcomes[i] = stepOutcome{stepNum: step.StepNum, err: err}
				return
			}

			if resp.Success {
				shouldRetry, _ := s.reflector.ConsensusReview(ctx, s.cfg.Critic1ModelID, s.cfg.Critic2ModelID, step.Description, resp.Answer, resp.Steps)
				if shouldRetry {
					outcomes[i] = stepOutcome{stepNum: step.StepNum, err: fmt.Errorf("step review failed: consensus rejection")}
					return
				}
			}

			outcomes[i] = stepOutcome{stepNum: step.StepNum, resp: resp}
		}(i, step)
	}

	wg.Wait()
	return outcomes
}

// reserveGovernorCapacity reserves (maxPermits - target) units of the
// concurrency semaphore for the duration of one Handle call, so this
// round's real parallelism never exceeds the Governor's current advisory
// target. Returns a function that releases the reservation.
func (s *Supervisor) reserveGovernorCapacity(ctx context.Context) func() {
	if s.governor == nil {
		return func() {}
	}

	target := s.governor.TargetPermitCount()
	reserve := int64(s.cfg.MaxPermits - target)
	if reserve <= 0 {
		return func() {}
	}

	if err := s.sem.Acquire(ctx, reserve); err != nil {
		return func() {}
	}
	return func() { s.sem.Release(reserve) }
}

func lastStepOutput(plan *orch.Plan) string {
	if len(plan.Steps) == 0 {
		return "Plan completed successfully."
	}
	last := plan.Steps[len(plan.Steps)-1]
	if last.Output != nil {
		return *last.Output
	}
	return "Plan completed successfully."
}
