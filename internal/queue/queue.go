// Package queue implements a durable FIFO-with-priority Task Queue
// backed by SQLite. Enqueued tasks survive process restart.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ProdByBuddha/agency/internal/errs"
)

// Status is a Task's lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Task is one row of the queue.
type Task struct {
	ID         string
	Kind       string
	Payload    json.RawMessage
	Status     Status
	EnqueuedAt time.Time
	Priority   int
	Attempts   uint32
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	payload     BLOB,
	status      TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	enqueued_at TEXT NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_dequeue ON tasks(status, priority DESC, enqueued_at ASC);
`

// Queue is a SQLite-backed Task Queue. The pool is capped at a single
// connection, so the select-then-update transaction in Dequeue is fully
// serialized and at most one worker observes a given row transition to
// Running (sqlite has no SELECT-FOR-UPDATE; connection-level
// serialization stands in for it).
type Queue struct {
	db *sql.DB
}

// Open creates (idempotently) the schema at path and returns a Queue.
func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("queue: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: one writer at a time, linearizes dequeue

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: create schema: %w", err)
	}

	return &Queue{db: db}, nil
}

// Close closes the underlying database connection.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue inserts a new Pending task and returns its id.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any, priority int) (string, error) {
	id := "task_" + uuid.New().String()[:8]

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("queue: marshal payload: %w", err)
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO tasks (id, kind, payload, status, priority, enqueued_at, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		id, kind, raw, StatusPending, priority, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return id, nil
}

// Dequeue atomically transitions the oldest highest-priority Pending task
// to Running and returns it. Returns (nil, nil) if the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, kind, payload, status, priority, enqueued_at, attempts
		 FROM tasks WHERE status = ?
		 ORDER BY priority DESC, enqueued_at ASC LIMIT 1`, StatusPending)

	var t Task
	var enqueuedAt string
	if err := row.Scan(&t.ID, &t.Kind, &t.Payload, &t.Status, &t.Priority, &enqueuedAt, &t.Attempts); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: dequeue scan: %w", err)
	}
	t.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enqueuedAt)

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, StatusRunning, t.ID); err != nil {
		return nil, fmt.Errorf("queue: dequeue update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("queue: dequeue commit: %w", err)
	}

	t.Status = StatusRunning
	return &t, nil
}

// Complete transitions a Running task to Completed. Idempotent: completing
// an already-Completed task is a no-op. Completing a row in any other
// state is a queue inconsistency; the row is left untouched.
func (q *Queue) Complete(ctx context.Context, id string) error {
	status, err := q.statusOf(ctx, id)
	if err != nil {
		return err
	}
	switch status {
	case StatusCompleted:
		return nil
	case StatusRunning:
	default:
		return fmt.Errorf("queue: complete task %s in state %s: %w", id, status, errs.ErrQueueInconsistent)
	}
	_, err = q.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, StatusCompleted, id)
	if err != nil {
		return fmt.Errorf("queue: complete: %w", err)
	}
	return nil
}

// Fail transitions a Running task to Failed and increments attempts.
func (q *Queue) Fail(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, attempts = attempts + 1 WHERE id = ?`, StatusFailed, id)
	if err != nil {
		return fmt.Errorf("queue: fail: %w", err)
	}
	return nil
}

func (q *Queue) statusOf(ctx context.Context, id string) (Status, error) {
	var s Status
	err := q.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&s)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("queue: task %s not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("queue: status lookup: %w", err)
	}
	return s, nil
}

// Count returns the number of tasks in status, optionally filtered by
// kind (empty kind matches all). The kind filter gives the hourly
// health-check habit a per-kind figure to report.
func (q *Queue) Count(ctx context.Context, status Status, kind string) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = ?`, status).Scan(&n)
	} else {
		err = q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = ? AND kind = ?`, status, kind).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("queue: count: %w", err)
	}
	return n, nil
}

// ReclaimStale resets Running tasks whose enqueued_at is older than maxAge
// back to Pending, recovering work orphaned by a worker crash. The age is
// measured from enqueue time, not from when the task started running, so
// a task enqueued long ago and dequeued recently is reset as well.
func (q *Queue) ReclaimStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339Nano)
	res, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE status = ? AND enqueued_at < ?`,
		StatusPending, StatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("queue: reclaim: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
