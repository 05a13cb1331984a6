package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/extraction"
	"github.com/applyflow/applyflow/internal/letter"
	"github.com/applyflow/applyflow/internal/util"
)

const (
	defaultBatchSize   = 3
	defaultBatchDelay  = 5 * time.Second
	defaultSendTimeout = 30 * time.Second
)

// Batcher processes targets in fixed-size parallel batches. A failure of one
// target never cancels or delays its siblings.
type Batcher struct {
	courier     Courier
	batchSize   int
	batchDelay  time.Duration
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewBatcher builds a Batcher. Zero values fall back to the defaults.
func NewBatcher(courier Courier, batchSize int, batchDelay, sendTimeout time.Duration, logger *zap.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = defaultBatchDelay
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{
		courier:     courier,
		batchSize:   batchSize,
		batchDelay:  batchDelay,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Run dispatches every target, returning results in target list order.
// onOutcome (optional) is called as soon as each target's outcome is known,
// possibly from concurrent goroutines within a batch, so the record status
// update never waits for siblings.
func (b *Batcher) Run(
	ctx context.Context,
	req *application.Request,
	applicant *extraction.Applicant,
	artifacts map[string]*letter.Artifact,
	fallback *letter.Artifact,
	onOutcome func(Result),
) []Result {
	results := make([]Result, len(req.Targets))

	for start := 0; start < len(req.Targets); start += b.batchSize {
		end := start + b.batchSize
		if end > len(req.Targets) {
			end = len(req.Targets)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				result := b.sendOne(ctx, req, applicant, artifacts, fallback, req.Targets[i])
				results[i] = result
				if onOutcome != nil {
					onOutcome(result)
				}
				return nil
			})
		}
		_ = g.Wait()

		if end < len(req.Targets) {
			if err := util.WaitFor(ctx, b.batchDelay); err != nil {
				// Shutdown mid-dispatch: record the remaining targets as
				// failed rather than leaving them unreported.
				for i := end; i < len(req.Targets); i++ {
					result := Result{
						TargetID: req.Targets[i].ID,
						Reason:   fmt.Sprintf("dispatch aborted: %v", err),
					}
					results[i] = result
					if onOutcome != nil {
						onOutcome(result)
					}
				}
				return results
			}
		}
	}

	return results
}

func (b *Batcher) sendOne(
	ctx context.Context,
	req *application.Request,
	applicant *extraction.Applicant,
	artifacts map[string]*letter.Artifact,
	fallback *letter.Artifact,
	target application.TargetPosting,
) Result {
	if target.RecipientContact == "" {
		b.logger.Warn("skipping target without recipient contact",
			zap.String("request_id", req.ID),
			zap.String("target_id", target.ID),
		)
		return Result{TargetID: target.ID, Reason: "no recipient contact"}
	}

	artifact := artifacts[target.ID]
	if artifact == nil {
		artifact = fallback
	}

	notification := ComposeApplication(req.Document, target, applicant, artifact.Text)

	sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
	defer cancel()

	if err := b.courier.Send(sendCtx, notification); err != nil {
		b.logger.Warn("dispatch failed",
			zap.String("request_id", req.ID),
			zap.String("target_id", target.ID),
			zap.String("recipient", target.RecipientContact),
			zap.Error(err),
		)
		return Result{TargetID: target.ID, Reason: err.Error()}
	}

	b.logger.Info("application dispatched",
		zap.String("request_id", req.ID),
		zap.String("target_id", target.ID),
		zap.String("letter_source", artifact.Source),
	)
	return Result{TargetID: target.ID, Success: true}
}
