package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/applyflow/applyflow/internal/util"
)

const (
	defaultWorkers      = 5
	defaultPollInterval = 2 * time.Second
	defaultJobBudget    = 10 * time.Minute
)

// Handler processes one claimed job. Returning an error reschedules the job
// (or dead-letters it, when the error is marked non-retryable or the attempt
// cap is hit).
type Handler func(ctx context.Context, job *Job) error

// NonRetryable wraps errors that must not trigger a queue-level retry.
type NonRetryable struct {
	Err error
}

func (e *NonRetryable) Error() string { return e.Err.Error() }
func (e *NonRetryable) Unwrap() error { return e.Err }

// Pool consumes jobs with a fixed number of concurrent workers. Each job runs
// under an overall wall-clock budget.
type Pool struct {
	queue        *Queue
	handler      Handler
	workers      int
	pollInterval time.Duration
	jobBudget    time.Duration
	logger       *zap.Logger
}

// NewPool builds a worker pool. Zero values fall back to the defaults.
func NewPool(q *Queue, handler Handler, workers int, pollInterval, jobBudget time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if jobBudget <= 0 {
		jobBudget = defaultJobBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:        q,
		handler:      handler,
		workers:      workers,
		pollInterval: pollInterval,
		jobBudget:    jobBudget,
		logger:       logger,
	}
}

// Run blocks, processing jobs until the context is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			logger := p.logger.With(zap.Int("worker", worker))
			for {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				job, err := p.queue.Claim(ctx)
				if errors.Is(err, ErrEmpty) {
					if werr := util.WaitFor(ctx, p.pollInterval); werr != nil {
						return werr
					}
					continue
				}
				if err != nil {
					logger.Error("claiming job failed", zap.Error(err))
					if werr := util.WaitFor(ctx, p.pollInterval); werr != nil {
						return werr
					}
					continue
				}

				p.process(ctx, logger, job)
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) process(ctx context.Context, logger *zap.Logger, job *Job) {
	logger.Info("processing job",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempts),
	)

	jobCtx, cancel := context.WithTimeout(ctx, p.jobBudget)
	err := p.handler(jobCtx, job)
	cancel()

	// Status updates must survive pool shutdown.
	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelUpdate()

	if err == nil {
		if cerr := p.queue.Complete(updateCtx, job.ID); cerr != nil {
			logger.Error("marking job done failed", zap.String("job_id", job.ID), zap.Error(cerr))
		}
		return
	}

	var permanent *NonRetryable
	retryable := !errors.As(err, &permanent)

	logger.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempts),
		zap.Bool("retryable", retryable),
		zap.Error(err),
	)

	if ferr := p.queue.Fail(updateCtx, job, err, retryable); ferr != nil {
		logger.Error("recording job failure failed", zap.String("job_id", job.ID), zap.Error(ferr))
	}
}
