// Package supervisor implements the composition root: the single entry
// point that ties the Router, Planner, Agent Loop, Reflector, Tiered
// Memory, session persistence and Governor together for one session's
// query handling.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ProdByBuddha/agency/internal/events"
	"github.com/ProdByBuddha/agency/internal/governor"
	"github.com/ProdByBuddha/agency/internal/memory"
	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/planner"
	"github.com/ProdByBuddha/agency/internal/provider"
	"github.com/ProdByBuddha/agency/internal/reactloop"
	"github.com/ProdByBuddha/agency/internal/reflector"
	"github.com/ProdByBuddha/agency/internal/router"
	"github.com/ProdByBuddha/agency/internal/sessions"
	"github.com/ProdByBuddha/agency/internal/tools"
)

// toolReloadInterval bounds how often dynamic tools are reloaded.
const toolReloadInterval = 5 * time.Minute

// recentTurnWindow is the number of trailing turns that enter the
// immediate prompt context.
const recentTurnWindow = 5

// memorySearchTopK is the number of memory entries the speculative search
// requests.
const memorySearchTopK = 3

// memoryContextCharLimit bounds both a single memory entry's content and
// the joined memory-context block.
const memoryContextCharLimit = 1000

// consolidationTurnThreshold: once the turn history holds at least this
// many turns, every handled query starts a background Consolidate of the
// Tiered Memory store. The episodic turns themselves are not distilled or
// trimmed.
const consolidationTurnThreshold = 10

// Result is the outcome of handling one query.
type Result struct {
	Answer         string
	AgentResponses []orch.AgentResponse
	Plan           *orch.Plan
	Success        bool
	Reflections    []string
}

// Config bundles the Supervisor's tunables.
type Config struct {
	ModelID        string
	Critic1ModelID string
	Critic2ModelID string
	MaxPermits     int
	MaxRetries     int
	Confirm        reactloop.PermissionFunc
	ToolReloader   func(ctx context.Context) error
}

// Supervisor is the composition root for a single session.
type Supervisor struct {
	provider provider.Provider
	cfg      Config

	router    *router.Router
	planner   *planner.Planner
	reflector *reflector.Reflector
	tools     *tools.Registry

	memoryStore memory.Store
	sessionMgr  *sessions.Manager
	governor    *governor.Governor
	bus         *events.Bus

	sem *semaphore.Weighted

	mu             sync.Mutex
	turns          []orch.Turn
	lastToolReload time.Time
}

// New constructs a Supervisor. reg may be an empty registry for a
// tool-free deployment.
func New(p provider.Provider, reg *tools.Registry, cfg Config) *Supervisor {
	if cfg.MaxPermits <= 0 {
		cfg.MaxPermits = 2
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Confirm == nil {
		cfg.Confirm = reactloop.AutoApprove
	}

	return &Supervisor{
		provider:  p,
		cfg:       cfg,
		router:    router.New(p, cfg.ModelID),
		planner:   planner.New(p, cfg.ModelID),
		reflector: reflector.New(p),
		tools:     reg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxPermits)),
	}
}

// WithMemory attaches a Tiered Memory store.
func (s *Supervisor) WithMemory(store memory.Store) *Supervisor {
	s.memoryStore = store
	return s
}

// WithSessions attaches session persistence.
func (s *Supervisor) WithSessions(mgr *sessions.Manager) *Supervisor {
	s.sessionMgr = mgr
	return s
}

// WithGovernor attaches a resource Governor; its target permit count
// advisorially reserves capacity out of the concurrency semaphore rather
// than ever revoking permits already held (governor.go's doc comment).
func (s *Supervisor) WithGovernor(g *governor.Governor) *Supervisor {
	s.governor = g
	return s
}

// WithEventBus attaches an event bus for lifecycle notifications.
func (s *Supervisor) WithEventBus(bus *events.Bus) *Supervisor {
	s.bus = bus
	return s
}

// LoadSession restores episodic turns from the attached session manager,
// if any.
func (s *Supervisor) LoadSession() error {
	if s.sessionMgr == nil {
		return nil
	}
	state, err := s.sessionMgr.Load()
	if err != nil {
		return fmt.Errorf("supervisor: load session: %w", err)
	}
	s.mu.Lock()
	s.turns = state.Turns
	s.mu.Unlock()
	slog.Info("supervisor: restored session turns", "count", len(state.Turns))
	return nil
}

// ClearHistory clears in-memory episodic turns and the persisted session.
func (s *Supervisor) ClearHistory() error {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
	if s.sessionMgr != nil {
		return s.sessionMgr.Clear()
	}
	return nil
}

// ConversationHistory returns the full formatted turn history.
func (s *Supervisor) ConversationHistory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return formatTurns(s.turns)
}

// Handle processes one user query end to end: routing, optional planning,
// agent execution, reflection/review, and episodic bookkeeping.
func (s *Supervisor) Handle(ctx context.Context, query string) (Result, error) {
	start := time.Now()
	slog.Info("supervisor: handling query", "query", query)

	s.maybeReloadTools(ctx)
	s.maybeBackgroundPersist()

	s.mu.Lock()
	s.turns = append(s.turns, orch.Turn{Role: orch.RoleUser, Content: query, Timestamp: time.Now()})
	s.mu.Unlock()

	routingCh := make(chan routingResult, 1)
	go func() {
		rd, err := s.router.Classify(ctx, query)
		routingCh <- routingResult{rd, err}
	}()

	var memCh chan memoryResult
	if s.memoryStore != nil && !router.IsSimpleQuery(query) {
		memCh = make(chan memoryResult, 1)
		go func() {
			memCh <- s.searchMemory(ctx, query)
		}()
	}

	rr := <-routingCh
	if rr.err != nil {
		return Result{}, fmt.Errorf("supervisor: routing: %w", rr.err)
	}
	routing := rr.decision

	var memoryContext string
	if routing.ShouldSearchMemory && memCh != nil {
		mr := <-memCh
		memoryContext = mr.context
	}

	contextStr := s.buildContext(memoryContext)

	var (
		result Result
		err    error
	)
	if routing.AgentRole == orch.RolePlanner && !planner.ShouldSkipPlanning(query) {
		result, err = s.handlePlanned(ctx, query, contextStr)
	} else {
		result, err = s.handleSingleAgent(ctx, query, routing.AgentRole, contextStr)
	}
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	s.turns = append(s.turns, orch.Turn{Role: orch.RoleAssistant, Content: result.Answer, Timestamp: time.Now()})
	turnCount := len(s.turns)
	snapshot := append([]orch.Turn(nil), s.turns...)
	s.mu.Unlock()

	if turnCount >= consolidationTurnThreshold && s.memoryStore != nil {
		go func() {
			if _, cerr := s.memoryStore.Consolidate(context.Background()); cerr != nil {
				slog.Warn("supervisor: background consolidation failed", "error", cerr)
			}
		}()
	}

	if s.sessionMgr != nil {
		if serr := s.sessionMgr.Save(sessions.State{Turns: snapshot, LastPlan: result.Plan}); serr != nil {
			slog.Warn("supervisor: session save failed", "error", serr)
		}
	}

	if s.bus != nil {
		if perr := s.bus.PublishAsync(ctx, events.NewEvent(events.EventTaskCompleted, events.SourceSupervisor, map[string]any{
			"success": result.Success,
		})); perr != nil {
			slog.Warn("supervisor: publish event failed", "error", perr)
		}
	}

	slog.Info("supervisor: handled query", "elapsed", time.Since(start), "success", result.Success)
	return result, nil
}

type routingResult struct {
	decision orch.RoutingDecision
	err      error
}

type memoryResult struct {
	context string
}

func (s *Supervisor) searchMemory(ctx context.Context, query string) memoryResult {
	entries, err := s.memoryStore.Search(ctx, query, memorySearchTopK, memory.Filter{})
	if err != nil || len(entries) == 0 {
		return memoryResult{}
	}

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		content := truncate(e.Content, memoryContextCharLimit)
		parts = append(parts, fmt.Sprintf("[Memory %s]:\n%s\n", e.Timestamp.Format(time.RFC3339), content))
	}
	return memoryResult{context: strings.Join(parts, "\n---\n")}
}

func (s *Supervisor) buildContext(memoryContext string) string {
	s.mu.Lock()
	recent := lastN(s.turns, recentTurnWindow)
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString(formatTurns(recent))

	if memoryContext != "" {
		b.WriteString("\n\n## Relevant Past Information (Summary)\n")
		b.WriteString(truncate(memoryContext, memoryContextCharLimit))
	}
	return b.String()
}

// maybeReloadTools reloads dynamic tools at most once per
// toolReloadInterval.
func (s *Supervisor) maybeReloadTools(ctx context.Context) {
	if s.cfg.ToolReloader == nil {
		return
	}
	s.mu.Lock()
	due := s.lastToolReload.IsZero() || time.Since(s.lastToolReload) > toolReloadInterval
	if due {
		s.lastToolReload = time.Now()
	}
	s.mu.Unlock()

	if due {
		if err := s.cfg.ToolReloader(ctx); err != nil {
			slog.Warn("supervisor: dynamic tool reload failed", "error", err)
		}
	}
}

// maybeBackgroundPersist snapshots the memory store off the request path,
// detached with best-effort semantics, mirroring the original's
// backgrounded spawn.
func (s *Supervisor) maybeBackgroundPersist() {
	if s.memoryStore == nil {
		return
	}
	go func() {
		if err := s.memoryStore.Persist(context.Background()); err != nil {
			slog.Warn("supervisor: background memory persist failed", "error", err)
		}
	}()
}

func lastN(turns []orch.Turn, n int) []orch.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func formatTurns(turns []orch.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		role := "System"
		switch t.Role {
		case orch.RoleUser:
			role = "User"
		case orch.RoleAssistant:
			role = "Assistant"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", role, t.Content))
	}
	return strings.Join(parts, "\n\n")
}

// truncate cuts s to at most max runes, appending a truncation marker.
// Operates on runes rather than bytes so a cut never splits a multibyte
// codepoint.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "... [truncated]"
}
