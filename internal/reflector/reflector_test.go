package reflector

import (
	"context"
	"testing"
	"time"

	"github.com/ProdByBuddha/agency/internal/orch"
)

type stubProvider struct {
	repliesByModel map[string]string
	delay          time.Duration
}

func (s *stubProvider) Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.repliesByModel[modelID], nil
}

func TestAnalyzeFailureParsesVerdict(t *testing.T) {
	p := &stubProvider{repliesByModel: map[string]string{
		"m1": `{"analysis": "transient network blip", "should_retry": true}`,
	}}
	r := New(p)

	a, err := r.AnalyzeFailure(context.Background(), "m1", "q", nil, "boom")
	if err != nil {
		t.Fatal(err)
	}
	if !a.ShouldRetry {
		t.Fatalf("expected ShouldRetry=true, got %+v", a)
	}
}

func TestConsensusReviewStrictOR(t *testing.T) {
	cases := []struct {
		name      string
		c1, c2    string
		wantRetry bool
	}{
		{"both accept", `{"analysis":"fine","should_retry":false}`, `{"analysis":"fine","should_retry":false}`, false},
		{"one rejects", `{"analysis":"bad","should_retry":true}`, `{"analysis":"fine","should_retry":false}`, true},
		{"other rejects", `{"analysis":"fine","should_retry":false}`, `{"analysis":"bad","should_retry":true}`, true},
		{"both reject", `{"analysis":"bad","should_retry":true}`, `{"analysis":"bad","should_retry":true}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubProvider{repliesByModel: map[string]string{"c1": tc.c1, "c2": tc.c2}}
			r := New(p)

			retry, reviews := r.ConsensusReview(context.Background(), "c1", "c2", "q", "a", []orch.ReActStep{})
			if retry != tc.wantRetry {
				t.Fatalf("got retry=%v, want %v (reviews=%+v)", retry, tc.wantRetry, reviews)
			}
			if len(reviews) != 2 {
				t.Fatalf("expected 2 reviews, got %d", len(reviews))
			}
		})
	}
}

func TestConsensusReviewTimeoutContributesNoRetryVote(t *testing.T) {
	orig := ReviewTimeout
	defer func() { ReviewTimeoutForTest(orig) }()
	ReviewTimeoutForTest(20 * time.Millisecond)

	p := &stubProvider{
		repliesByModel: map[string]string{
			"slow": `{"analysis":"bad","should_retry":true}`,
			"fast": `{"analysis":"fine","should_retry":false}`,
		},
		delay: 50 * time.Millisecond,
	}
	r := New(p)

	// Both models share the stub's delay, which outlasts the shortened
	// timeout, so we run reviewOnce directly on the "slow" model (whose
	// reply would vote retry) to exercise the timeout path deterministically.
	rv := r.reviewOnce(context.Background(), "slow", "q", "a", nil)
	if rv.ShouldRetry {
		t.Fatalf("expected a timed-out review to contribute ShouldRetry=false, got %+v", rv)
	}
}

// ReviewTimeoutForTest sets the package-level ReviewTimeout; the test above
// uses it to shrink the timeout and to restore it afterward.
func ReviewTimeoutForTest(d time.Duration) {
	ReviewTimeout = d
}
