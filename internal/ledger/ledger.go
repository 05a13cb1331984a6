package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/extraction"
)

// Ledger coordinates record creation and status updates against the durable
// store, with bounded-retry writes and best-effort match scoring.
type Ledger struct {
	store   *Store
	scorer  Scorer
	backoff BackoffPolicy
	logger  *zap.Logger
}

// New builds a Ledger. A nil scorer records DefaultMatchScore everywhere.
func New(store *Store, scorer Scorer, backoff BackoffPolicy, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoff.MaxAttempts < 1 {
		backoff = DefaultBackoff
	}
	return &Ledger{store: store, scorer: scorer, backoff: backoff, logger: logger}
}

// CreateOutcome is the per-target result of record creation.
type CreateOutcome struct {
	TargetID string
	Record   *Record
	Err      error
}

// CreateRecords writes one submitted record per target. A failed write for
// one target never aborts the rest; the failure lands in that target's
// outcome and the caller decides what to dispatch.
func (l *Ledger) CreateRecords(ctx context.Context, req *application.Request, applicant *extraction.Applicant, cvText string) []CreateOutcome {
	outcomes := make([]CreateOutcome, 0, len(req.Targets))

	for _, target := range req.Targets {
		record := &Record{
			ID:             uuid.NewString(),
			RequestID:      req.ID,
			Requester:      req.Requester,
			TargetID:       target.ID,
			CVSnapshot:     cvText,
			MatchScore:     l.score(ctx, cvText, target),
			Status:         StatusSubmitted,
			AppliedAt:      time.Now().UTC(),
			ApplicantName:  applicant.Name,
			ApplicantEmail: applicant.Email,
			ApplicantPhone: applicant.Phone,
		}

		err := l.backoff.Retry(ctx, func() error {
			_, insertErr := l.store.Insert(ctx, record)
			return insertErr
		})
		if err != nil {
			l.logger.Error("application record write exhausted retries",
				zap.String("request_id", req.ID),
				zap.String("target_id", target.ID),
				zap.Int("max_attempts", l.backoff.MaxAttempts),
				zap.Error(err),
			)
			outcomes = append(outcomes, CreateOutcome{TargetID: target.ID, Err: err})
			continue
		}

		l.logger.Debug("application record created",
			zap.String("request_id", req.ID),
			zap.String("target_id", target.ID),
			zap.Int("match_score", record.MatchScore),
		)
		outcomes = append(outcomes, CreateOutcome{TargetID: target.ID, Record: record})
	}

	return outcomes
}

// MarkDispatched applies the single post-dispatch transition for one target,
// retried on the same bounded schedule as record creation.
func (l *Ledger) MarkDispatched(ctx context.Context, requestID, targetID string, sent bool, reason string) error {
	status := StatusEmailSent
	if !sent {
		status = StatusEmailFailed
	}

	return l.backoff.Retry(ctx, func() error {
		return l.store.UpdateDispatch(ctx, requestID, targetID, status, reason)
	})
}

// Records returns all rows for the request.
func (l *Ledger) Records(ctx context.Context, requestID string) ([]*Record, error) {
	return l.store.ByRequest(ctx, requestID)
}

func (l *Ledger) score(ctx context.Context, cvText string, target application.TargetPosting) int {
	if l.scorer == nil {
		return DefaultMatchScore
	}

	score, err := l.scorer.Score(ctx, cvText, target)
	if err != nil {
		l.logger.Warn("match scoring failed, using default",
			zap.String("target_id", target.ID),
			zap.Int("default_score", DefaultMatchScore),
			zap.Error(err),
		)
		return DefaultMatchScore
	}

	return score
}
