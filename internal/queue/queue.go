// Package queue is the durable sqlite-backed job queue feeding the pipeline.
// Jobs are retried with exponential backoff up to an attempt cap, then
// dead-lettered.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusDead    = "dead"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	attempts    INTEGER NOT NULL DEFAULT 0,
	progress    INTEGER NOT NULL DEFAULT 0,
	next_run_at TIMESTAMP NOT NULL,
	last_error  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);`

// ErrEmpty is returned by Claim when no job is ready.
var ErrEmpty = errors.New("no pending jobs")

// Job is one queued unit of work.
type Job struct {
	ID        string
	Payload   []byte
	Status    string
	Attempts  int
	Progress  int
	LastError string
	CreatedAt time.Time
}

// Config tunes retry scheduling.
type Config struct {
	// MaxAttempts before a job is dead-lettered.
	MaxAttempts int
	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
	// RetryCap bounds the computed delay.
	RetryCap time.Duration
}

// DefaultConfig matches the queue-level retry contract: a small attempt cap
// with exponential backoff.
var DefaultConfig = Config{
	MaxAttempts: 3,
	RetryBase:   30 * time.Second,
	RetryCap:    10 * time.Minute,
}

// Queue wraps the jobs table.
type Queue struct {
	db  *sql.DB
	cfg Config
}

// Open opens (and migrates) the queue database at path.
func Open(path string, cfg Config) (*Queue, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	q, err := NewFromDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

// NewFromDB wraps an already opened database, migrating the schema.
func NewFromDB(db *sql.DB, cfg Config) (*Queue, error) {
	if cfg.MaxAttempts < 1 {
		cfg = DefaultConfig
	}
	if _, err := db.Exec(jobsSchema); err != nil {
		return nil, fmt.Errorf("migrate jobs table: %w", err)
	}
	return &Queue{db: db, cfg: cfg}, nil
}

// DB exposes the underlying pool so the ledger can share the same file.
func (q *Queue) DB() *sql.DB { return q.db }

// Close releases the underlying pool.
func (q *Queue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Enqueue adds a new pending job. Enqueueing the same id twice is a no-op,
// so producers can retry submissions safely.
func (q *Queue) Enqueue(ctx context.Context, id string, payload []byte) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs (id, payload, status, next_run_at, created_at, updated_at)
VALUES (?, ?, 'pending', ?, ?, ?);`, id, string(payload), now, now, now)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Claim atomically takes the oldest ready pending job and marks it running.
// Returns ErrEmpty when nothing is due.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now().UTC()

	var job Job
	var payload string
	var created time.Time
	err := q.db.QueryRowContext(ctx, `
SELECT id, payload, attempts, progress, last_error, created_at
FROM jobs
WHERE status = 'pending' AND next_run_at <= ?
ORDER BY created_at
LIMIT 1;`, now).Scan(&job.ID, &payload, &job.Attempts, &job.Progress, &job.LastError, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("select pending job: %w", err)
	}

	res, err := q.db.ExecContext(ctx, `
UPDATE jobs SET status = 'running', attempts = attempts + 1, updated_at = ?
WHERE id = ? AND status = 'pending';`, now, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the claim to a sibling worker.
		return nil, ErrEmpty
	}

	job.Payload = []byte(payload)
	job.Status = StatusRunning
	job.Attempts++
	job.CreatedAt = created
	return &job, nil
}

// Complete marks a job done.
func (q *Queue) Complete(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE jobs SET status = 'done', progress = 100, updated_at = ? WHERE id = ?;`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records a failed run. The job is rescheduled with exponential backoff
// until the attempt cap, then dead-lettered. retryable=false dead-letters
// immediately (validation rejections are not fixed by retrying).
func (q *Queue) Fail(ctx context.Context, job *Job, runErr error, retryable bool) error {
	now := time.Now().UTC()
	reason := ""
	if runErr != nil {
		reason = runErr.Error()
	}

	if !retryable || job.Attempts >= q.cfg.MaxAttempts {
		_, err := q.db.ExecContext(ctx, `
UPDATE jobs SET status = 'dead', last_error = ?, updated_at = ? WHERE id = ?;`,
			reason, now, job.ID)
		if err != nil {
			return fmt.Errorf("dead-letter job: %w", err)
		}
		return nil
	}

	delay := q.cfg.RetryBase
	for i := 1; i < job.Attempts; i++ {
		delay *= 2
		if q.cfg.RetryCap > 0 && delay >= q.cfg.RetryCap {
			delay = q.cfg.RetryCap
			break
		}
	}

	_, err := q.db.ExecContext(ctx, `
UPDATE jobs SET status = 'pending', last_error = ?, next_run_at = ?, updated_at = ?
WHERE id = ?;`, reason, now.Add(delay), now, job.ID)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}

// SetProgress stores the latest pipeline checkpoint for external monitors.
func (q *Queue) SetProgress(ctx context.Context, id string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := q.db.ExecContext(ctx, `
UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?;`,
		percent, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set job progress: %w", err)
	}
	return nil
}

// DeadLettered lists jobs that exhausted their attempts.
func (q *Queue) DeadLettered(ctx context.Context) ([]*Job, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, payload, attempts, progress, last_error, created_at
FROM jobs WHERE status = 'dead' ORDER BY created_at;`)
	if err != nil {
		return nil, fmt.Errorf("query dead-lettered jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var job Job
		var payload string
		if err := rows.Scan(&job.ID, &payload, &job.Attempts, &job.Progress, &job.LastError, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Payload = []byte(payload)
		job.Status = StatusDead
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// Requeue returns a dead-lettered job to the pending state with a fresh
// attempt budget.
func (q *Queue) Requeue(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx, `
UPDATE jobs SET status = 'pending', attempts = 0, last_error = '', next_run_at = ?, updated_at = ?
WHERE id = ? AND status = 'dead';`, now, now, id)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not dead-lettered", id)
	}
	return nil
}

// Discard deletes a dead-lettered job permanently.
func (q *Queue) Discard(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND status = 'dead';`, id)
	if err != nil {
		return fmt.Errorf("discard job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not dead-lettered", id)
	}
	return nil
}
