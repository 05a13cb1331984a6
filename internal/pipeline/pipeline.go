// Package pipeline coordinates one application fulfillment run: intake
// validation, applicant extraction, cover letter synthesis, record creation,
// batched dispatch, confirmation and cleanup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/catalog"
	"github.com/applyflow/applyflow/internal/dispatch"
	"github.com/applyflow/applyflow/internal/extraction"
	"github.com/applyflow/applyflow/internal/ledger"
	"github.com/applyflow/applyflow/internal/letter"
	"github.com/applyflow/applyflow/internal/metrics"
)

// Progress checkpoints reported to the queue layer, as percentages.
const (
	ProgressIntake     = 10
	ProgressExtracted  = 30
	ProgressLetters    = 50
	ProgressRecorded   = 70
	ProgressDispatched = 85
	ProgressConfirmed  = 95
	ProgressDone       = 100
)

const defaultPriorTTL = 24 * time.Hour

// ProgressFunc receives checkpoint updates for external monitors.
type ProgressFunc func(ctx context.Context, percent int)

// Deps aggregates the pipeline's collaborators. Text, Cascade, Synthesizer,
// Ledger, Batcher and Notifier are required; the rest are optional.
type Deps struct {
	Text       TextSource
	Cascade    *extraction.Cascade
	Prior      extraction.PriorRecorder
	// PriorTTL bounds how long an extracted identity stays reusable for the
	// same requester. Zero means the default.
	PriorTTL   time.Duration
	Synthesize *letter.Synthesizer
	Ledger     *ledger.Ledger
	Batcher    *dispatch.Batcher
	Notifier   Notifier
	Reaper     *Reaper
	Catalog    *catalog.Client
	Metrics    *metrics.Registry
	Logger     *zap.Logger
}

// Pipeline executes fulfillment runs.
type Pipeline struct {
	deps Deps
}

// New builds a Pipeline over the given collaborators.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if deps.PriorTTL <= 0 {
		deps.PriorTTL = defaultPriorTTL
	}
	return &Pipeline{deps: deps}
}

// Run processes one request end to end. IntakeError and ValidationError
// reject the run without an operator alert; any other failure (including a
// panic) produces a CatastrophicError plus an operator alert, leaving the
// queue layer to retry. The requester is deliberately not told about
// retryable failures to avoid duplicate messaging across retries.
func (p *Pipeline) Run(ctx context.Context, req *application.Request, progress ProgressFunc) (err error) {
	start := time.Now()
	logger := p.deps.Logger.With(
		zap.String("request_id", req.ID),
		zap.Int("targets", len(req.Targets)),
	)

	p.deps.Metrics.RunStarted()

	defer func() {
		if r := recover(); r != nil {
			err = &CatastrophicError{Stage: "unknown", Err: fmt.Errorf("panic: %v", r)}
		}
		p.conclude(ctx, logger, req, err, time.Since(start))
	}()

	if progress == nil {
		progress = func(context.Context, int) {}
	}

	// Intake: fail fast before any paid work.
	if err := ValidateIntake(req.Document); err != nil {
		return err
	}
	progress(ctx, ProgressIntake)

	text, err := p.deps.Text.ExtractText(ctx, req.Document)
	if err != nil {
		return &CatastrophicError{Stage: "text extraction", Err: err}
	}

	// Extraction cascade.
	applicant, err := p.deps.Cascade.Run(ctx, extraction.Input{Requester: req.Requester, Text: text})
	if err != nil {
		return &ValidationError{Err: err}
	}
	logger.Info("applicant identity extracted",
		zap.String("source", applicant.Source),
		zap.Float64("confidence", applicant.Confidence),
	)
	if p.deps.Prior != nil {
		p.deps.Prior.Put(ctx, req.Requester, applicant, p.deps.PriorTTL)
	}
	progress(ctx, ProgressExtracted)

	// Cover letters.
	artifacts, fallback := p.deps.Synthesize.Synthesize(ctx, applicant, text, req.Targets)
	progress(ctx, ProgressLetters)

	// Durable records, one per target.
	outcomes := p.deps.Ledger.CreateRecords(ctx, req, applicant, text)
	progress(ctx, ProgressRecorded)

	// Dispatch.
	results := p.dispatch(ctx, req, applicant, artifacts, fallback, outcomes)
	progress(ctx, ProgressDispatched)

	// Confirmation. Best-effort: a lost confirmation never fails a run whose
	// applications already went out.
	records, rerr := p.deps.Ledger.Records(ctx, req.ID)
	if rerr != nil {
		logger.Warn("loading records for confirmation failed", zap.Error(rerr))
	}
	subject, body := ComposeConfirmation(results, records)
	if nerr := p.deps.Notifier.NotifyRequester(ctx, req.Requester, subject, body); nerr != nil {
		logger.Warn("sending confirmation failed", zap.Error(nerr))
	}
	progress(ctx, ProgressConfirmed)

	if p.deps.Reaper != nil {
		p.deps.Reaper.Schedule(ctx, req.Document.Path)
	}
	progress(ctx, ProgressDone)

	return nil
}

// dispatch sends every target whose record exists and synthesizes failure
// results for targets whose record write exhausted retries. Record status
// updates happen as soon as each outcome is known.
func (p *Pipeline) dispatch(
	ctx context.Context,
	req *application.Request,
	applicant *extraction.Applicant,
	artifacts map[string]*letter.Artifact,
	fallback *letter.Artifact,
	outcomes []ledger.CreateOutcome,
) []dispatch.Result {
	recorded := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		recorded[o.TargetID] = o.Err == nil
	}

	eligible := make([]application.TargetPosting, 0, len(req.Targets))
	for _, target := range req.Targets {
		if recorded[target.ID] {
			eligible = append(eligible, p.enrich(ctx, target))
		}
	}

	dispatchReq := &application.Request{
		ID:        req.ID,
		Requester: req.Requester,
		Document:  req.Document,
		Targets:   eligible,
	}

	sent := p.deps.Batcher.Run(ctx, dispatchReq, applicant, artifacts, fallback, func(r dispatch.Result) {
		p.deps.Metrics.DispatchOutcome(r.Success)
		if err := p.deps.Ledger.MarkDispatched(ctx, req.ID, r.TargetID, r.Success, r.Reason); err != nil {
			p.deps.Logger.Error("recording dispatch outcome failed",
				zap.String("request_id", req.ID),
				zap.String("target_id", r.TargetID),
				zap.Error(err),
			)
		}
	})

	byTarget := make(map[string]dispatch.Result, len(sent))
	for _, r := range sent {
		byTarget[r.TargetID] = r
	}

	// Merge back into target list order.
	results := make([]dispatch.Result, 0, len(req.Targets))
	for _, target := range req.Targets {
		if r, ok := byTarget[target.ID]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, dispatch.Result{
			TargetID: target.ID,
			Reason:   "application record could not be persisted",
		})
	}

	return results
}

// enrich re-fetches a target lacking a recipient contact from the catalog.
// Best-effort: on failure the target goes to dispatch as-is and is recorded
// as a per-target failure there.
func (p *Pipeline) enrich(ctx context.Context, target application.TargetPosting) application.TargetPosting {
	if target.RecipientContact != "" || p.deps.Catalog == nil {
		return target
	}

	full, err := p.deps.Catalog.GetPosting(ctx, target.ID)
	if err != nil || full == nil {
		p.deps.Logger.Debug("catalog enrichment failed",
			zap.String("target_id", target.ID),
			zap.Error(err),
		)
		return target
	}

	target.RecipientContact = full.RecipientContact
	if target.Location == "" {
		target.Location = full.Location
	}
	return target
}

// conclude settles metrics and alerting for the finished run.
func (p *Pipeline) conclude(ctx context.Context, logger *zap.Logger, req *application.Request, err error, elapsed time.Duration) {
	if err == nil {
		p.deps.Metrics.RunSucceeded()
		logger.Info("pipeline run completed", zap.Duration("elapsed", elapsed))
		return
	}

	var intake *IntakeError
	var validation *ValidationError

	switch {
	case errors.As(err, &validation):
		p.deps.Metrics.RunRejected()
		logger.Warn("request rejected: no valid applicant identity", zap.Error(err))
		subject, body := ComposeRejection()
		if nerr := p.deps.Notifier.NotifyRequester(ctx, req.Requester, subject, body); nerr != nil {
			logger.Warn("sending rejection notice failed", zap.Error(nerr))
		}
	case errors.As(err, &intake):
		p.deps.Metrics.RunFailed()
		logger.Warn("request rejected at intake", zap.Error(err))
	default:
		p.deps.Metrics.RunFailed()
		logger.Error("pipeline run failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		subject, body := ComposeOperatorAlert(err, req.Requester, len(req.Targets), elapsed)
		if aerr := p.deps.Notifier.AlertOperator(ctx, subject, body); aerr != nil {
			logger.Error("sending operator alert failed", zap.Error(aerr))
		}
	}
}
