package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ProdByBuddha/agency/internal/errs"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestEnqueueDequeueComplete(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	id, err := q.Enqueue(ctx, "autonomous_goal", map[string]string{"x": "y"}, 0)
	if err != nil {
		t.Fatal(err)
	}

	task, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if task == nil || task.ID != id {
		t.Fatalf("expected to dequeue %s, got %+v", id, task)
	}
	if task.Status != StatusRunning {
		t.Fatalf("expected Running, got %s", task.Status)
	}

	if err := q.Complete(ctx, id); err != nil {
		t.Fatal(err)
	}
	// complete -> complete is idempotent
	if err := q.Complete(ctx, id); err != nil {
		t.Fatal(err)
	}

	n, err := q.Count(ctx, StatusCompleted, "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completed task, got %d", n)
	}
}

func TestDequeueEmptyReturnsNil(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if task != nil {
		t.Fatalf("expected nil task from empty queue, got %+v", task)
	}
}

func TestDequeuePriorityOrder(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	low, _ := q.Enqueue(ctx, "k", nil, 0)
	high, _ := q.Enqueue(ctx, "k", nil, 10)

	task, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if task.ID != high {
		t.Fatalf("expected higher-priority task %s first, got %s (low was %s)", high, task.ID, low)
	}
}

func TestFailIncrementsAttempts(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	id, _ := q.Enqueue(ctx, "k", nil, 0)
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatal(err)
	}
	if err := q.Fail(ctx, id); err != nil {
		t.Fatal(err)
	}

	n, _ := q.Count(ctx, StatusFailed, "")
	if n != 1 {
		t.Fatalf("expected 1 failed task, got %d", n)
	}
}

func TestConcurrentDequeueIsLinearizable(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	const numTasks = 20
	for i := 0; i < numTasks; i++ {
		if _, err := q.Enqueue(ctx, "k", nil, 0); err != nil {
			t.Fatal(err)
		}
	}

	const numWorkers = 5
	seen := make(chan string, numTasks)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := q.Dequeue(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				if task == nil {
					return
				}
				seen <- task.ID
			}
		}()
	}
	wg.Wait()
	close(seen)

	ids := make(map[string]bool)
	count := 0
	for id := range seen {
		if ids[id] {
			t.Fatalf("task %s dequeued more than once", id)
		}
		ids[id] = true
		count++
	}
	if count != numTasks {
		t.Fatalf("expected exactly %d distinct dequeues, got %d", numTasks, count)
	}
}

func TestCompleteNeverDequeuedIsInconsistent(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	id, _ := q.Enqueue(ctx, "k", nil, 0)
	err := q.Complete(ctx, id)
	if err == nil {
		t.Fatal("expected an error completing a task that was never dequeued")
	}
	if !errors.Is(err, errs.ErrQueueInconsistent) {
		t.Fatalf("expected ErrQueueInconsistent, got %v", err)
	}

	n, _ := q.Count(ctx, StatusPending, "")
	if n != 1 {
		t.Fatalf("expected the row left Pending, got %d pending", n)
	}
}
