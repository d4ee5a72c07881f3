// Package scheduler implements the cron-like Habit Scheduler: a small
// set of recurring background behaviors that enqueue Tasks onto the Task
// Queue rather than executing anything directly.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ProdByBuddha/agency/internal/queue"
)

// TaskEnqueuer is the subset of *queue.Queue the Scheduler depends on,
// narrowed for testability.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any, priority int) (string, error)
}

var _ TaskEnqueuer = (*queue.Queue)(nil)

// Habit is one recurring, cron-triggered enqueue action.
type Habit struct {
	Name     string
	Cron     *CronExpr
	Kind     string
	Payload  any
	Priority int

	lastFired time.Time
}

// defaultHabits are the three built-in background behaviors.
func defaultHabits() []*Habit {
	hourly, _ := ParseCron("0 * * * *")
	daily, _ := ParseCron("0 0 * * *")
	fiveMin, _ := ParseCron("*/5 * * * *")

	return []*Habit{
		{
			Name:     "hourly-self-health-check",
			Cron:     hourly,
			Kind:     "autonomous_goal",
			Payload:  map[string]string{"goal": "Review recent task queue activity and report on system health."},
			Priority: 1,
		},
		{
			Name:     "daily-memory-consolidation",
			Cron:     daily,
			Kind:     "memory_consolidation",
			Payload:  map[string]string{"reason": "scheduled_nightly"},
			Priority: 2,
		},
		{
			Name:     "visual-observation-tick",
			Cron:     fiveMin,
			Kind:     "visual_observation",
			Payload:  map[string]string{},
			Priority: 0,
		},
	}
}

// Scheduler ticks once a minute, matching each registered Habit's cron
// expression against the current time and enqueuing its Task on a match.
// A Habit fires at most once per matching minute even if the tick loop is
// delayed and re-checks the same minute twice.
type Scheduler struct {
	queue TaskEnqueuer

	mu     sync.Mutex
	habits []*Habit

	tickInterval time.Duration
	done         chan struct{}
	wg           sync.WaitGroup
}

// New constructs a Scheduler with the three default habits registered.
// Pass a TaskEnqueuer (normally a *queue.Queue) it will enqueue onto.
func New(q TaskEnqueuer) *Scheduler {
	return &Scheduler{
		queue:        q,
		habits:       defaultHabits(),
		tickInterval: time.Minute,
		done:         make(chan struct{}),
	}
}

// WithTickInterval overrides the tick period (used by tests to avoid
// waiting on real wall-clock minutes).
func (s *Scheduler) WithTickInterval(d time.Duration) *Scheduler {
	s.tickInterval = d
	return s
}

// AddHabit registers an additional habit at runtime.
func (s *Scheduler) AddHabit(h *Habit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.habits = append(s.habits, h)
}

// Start begins the tick loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("scheduler started", "habits", len(s.habits))
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.done)
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// tick checks each habit against now and enqueues Tasks for those that
// match and have not already fired this minute.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	due := make([]*Habit, 0, len(s.habits))
	for _, h := range s.habits {
		if h.lastFired.Equal(minute) {
			continue
		}
		if h.Cron.Matches(now) {
			h.lastFired = minute
			due = append(due, h)
		}
	}
	s.mu.Unlock()

	for _, h := range due {
		id, err := s.queue.Enqueue(ctx, h.Kind, h.Payload, h.Priority)
		if err != nil {
			slog.Error("scheduler: enqueue failed", "habit", h.Name, "error", err)
			continue
		}
		slog.Info("scheduler: habit fired", "habit", h.Name, "task_id", id)
	}
}
