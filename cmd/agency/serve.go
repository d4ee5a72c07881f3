package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ProdByBuddha/agency/internal/queue"
	"github.com/ProdByBuddha/agency/internal/reactloop"
	"github.com/ProdByBuddha/agency/internal/scheduler"
)

// dequeuePollInterval bounds how often an idle worker re-polls the Task
// Queue for new work.
const dequeuePollInterval = 2 * time.Second

// goalPayload is the payload shape for the "autonomous_goal" task kind
// (the hourly self-health report, and any other ad hoc goal a caller
// enqueues directly).
type goalPayload struct {
	Goal string `json:"goal"`
}

// newServeCommand returns the serve subcommand: starts the Governor, the
// Habit Scheduler, and a worker pool draining the Task Queue, running
// until the process receives an interrupt.
func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the Governor, Habit Scheduler and Task Queue workers in the background",
		Action: func(ctx context.Context, _ *cli.Command) error {
			a, err := buildApp(ctx, reactloop.AutoApprove)
			if err != nil {
				return err
			}
			defer a.Close()

			a.governor.Start(ctx)
			defer a.governor.Stop()

			sched := scheduler.New(a.q)
			sched.Start(ctx)
			defer sched.Stop()

			slog.Info("agency: serving", "permits", a.cfg.MaxConcurrencyPermits)
			runWorkers(ctx, a, 2)
			return ctx.Err()
		},
	}
}

// runWorkers starts n goroutines dequeuing and processing Tasks until ctx
// is cancelled, then waits for them to drain.
func runWorkers(ctx context.Context, a *app, n int) {
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func(id int) {
			worker(ctx, a, id)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
}

func worker(ctx context.Context, a *app, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := a.q.Dequeue(ctx)
		if err != nil {
			slog.Warn("agency: dequeue failed", "worker", id, "error", err)
			sleepOrDone(ctx, dequeuePollInterval)
			continue
		}
		if task == nil {
			sleepOrDone(ctx, dequeuePollInterval)
			continue
		}

		if err := processTask(ctx, a, task); err != nil {
			slog.Warn("agency: task failed", "worker", id, "kind", task.Kind, "error", err)
			if ferr := a.q.Fail(ctx, task.ID); ferr != nil {
				slog.Warn("agency: mark task failed", "id", task.ID, "error", ferr)
			}
			continue
		}
		if cerr := a.q.Complete(ctx, task.ID); cerr != nil {
			slog.Warn("agency: mark task complete", "id", task.ID, "error", cerr)
		}
	}
}

// processTask dispatches a dequeued Task by kind. "visual_observation"
// is a no-op completion: the observer runs out of process, so the
// habit's tick is acknowledged without action.
func processTask(ctx context.Context, a *app, task *queue.Task) error {
	switch task.Kind {
	case "autonomous_goal":
		var p goalPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("decode goal payload: %w", err)
		}
		_, err := a.supervisor.Handle(ctx, p.Goal)
		return err

	case "memory_consolidation":
		if a.memStore == nil {
			return nil
		}
		pruned, err := a.memStore.Consolidate(ctx)
		if err != nil {
			return err
		}
		slog.Info("agency: consolidated memory", "pruned", pruned)
		return a.memStore.Persist(ctx)

	case "visual_observation":
		return nil

	default:
		return fmt.Errorf("unknown task kind: %s", task.Kind)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
