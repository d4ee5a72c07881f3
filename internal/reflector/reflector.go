// Package reflector implements failure analysis driving the retry loop,
// and dual-model consensus review of successful answers.
package reflector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/provider"
)

// ReviewTimeout bounds each critic's review call; an expired timeout
// contributes a no-retry vote. A var, not a const, so tests can shrink
// it instead of sleeping past the real 120s bound.
var ReviewTimeout = 120 * time.Second

// FailureAnalysis is the result of analyzing a failed Agent Loop run.
type FailureAnalysis struct {
	Analysis    string `json:"analysis"`
	ShouldRetry bool   `json:"should_retry"`
}

// Review is the result of a single critic's pass over a successful answer.
type Review struct {
	Analysis    string `json:"analysis"`
	ShouldRetry bool   `json:"should_retry"`
}

// Reflector wraps a model provider with the two reflection prompts.
type Reflector struct {
	provider provider.Provider
}

// New constructs a Reflector using the given provider.
func New(p provider.Provider) *Reflector {
	return &Reflector{provider: p}
}

const failureTemplate = `A step in an agent execution failed. Analyze why and decide whether retrying is worthwhile.

Query: %s
Error: %s
Trace:
%s

Respond with ONLY a JSON object of the form:
{"analysis": "...", "should_retry": <bool>}`

// AnalyzeFailure analyzes a failed run: given the query, step trace and
// error, returns whether the Supervisor should retry.
func (r *Reflector) AnalyzeFailure(ctx context.Context, modelID, query string, steps []orch.ReActStep, errMsg string) (FailureAnalysis, error) {
	prompt := fmt.Sprintf(failureTemplate, query, errMsg, formatTrace(steps))
	text, err := r.provider.Generate(ctx, modelID, prompt, "")
	if err != nil {
		return FailureAnalysis{}, fmt.Errorf("reflector: analyze failure: %w", err)
	}

	analysis, ok := parseFailureAnalysis(text)
	if !ok {
		// A malformed verdict from the critic is itself a Validation-grade
		// condition; default to not retrying rather than looping forever
		// on an uninterpretable signal.
		return FailureAnalysis{Analysis: "reflector: malformed analysis output", ShouldRetry: false}, nil
	}
	return analysis, nil
}

const reviewTemplate = `Review the following agent answer for correctness and completeness. Decide whether it should be rejected and retried.

Query: %s
Answer: %s
Trace:
%s

Respond with ONLY a JSON object of the form:
{"analysis": "...", "should_retry": <bool>}`

// reviewOnce runs a single critic model over (query, answer, steps),
// bounded by ReviewTimeout. An expired timeout is reported as a no-retry
// vote (strict-OR rejection prefers a false negative here to blocking
// forever).
func (r *Reflector) reviewOnce(ctx context.Context, modelID, query, answer string, steps []orch.ReActStep) Review {
	ctx, cancel := context.WithTimeout(ctx, ReviewTimeout)
	defer cancel()

	type result struct {
		review Review
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		prompt := fmt.Sprintf(reviewTemplate, query, answer, formatTrace(steps))
		text, err := r.provider.Generate(ctx, modelID, prompt, "")
		if err != nil {
			ch <- result{err: err}
			return
		}
		review, ok := parseReview(text)
		if !ok {
			ch <- result{review: Review{Analysis: "malformed review output", ShouldRetry: false}}
			return
		}
		ch <- result{review: review}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return Review{Analysis: fmt.Sprintf("critic error: %v", res.err), ShouldRetry: false}
		}
		return res.review
	case <-ctx.Done():
		return Review{Analysis: fmt.Sprintf("critic %q timed out", modelID), ShouldRetry: false}
	}
}

// ConsensusReview invokes two distinct critic models and rejects the
// response iff either reports ShouldRetry=true (strict-OR, preferring
// false rejection to silent acceptance).
func (r *Reflector) ConsensusReview(ctx context.Context, critic1ModelID, critic2ModelID, query, answer string, steps []orch.ReActStep) (shouldRetry bool, reviews []Review) {
	r1 := r.reviewOnce(ctx, critic1ModelID, query, answer, steps)
	r2 := r.reviewOnce(ctx, critic2ModelID, query, answer, steps)
	return r1.ShouldRetry || r2.ShouldRetry, []Review{r1, r2}
}

func formatTrace(steps []orch.ReActStep) string {
	var b strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&b, "Step %d: thought=%q", i+1, s.Thought)
		for j, obs := range s.Observations {
			fmt.Fprintf(&b, "\n  observation[%d]: %s", j, obs)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func parseFailureAnalysis(text string) (FailureAnalysis, bool) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return FailureAnalysis{}, false
	}
	var a FailureAnalysis
	if err := json.Unmarshal(obj, &a); err != nil {
		return FailureAnalysis{}, false
	}
	return a, true
}

func parseReview(text string) (Review, bool) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return Review{}, false
	}
	var rv Review
	if err := json.Unmarshal(obj, &rv); err != nil {
		return Review{}, false
	}
	return rv, true
}

func extractJSONObject(text string) ([]byte, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, false
	}
	return []byte(text[start : end+1]), true
}
