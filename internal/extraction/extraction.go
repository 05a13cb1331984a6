// Package extraction derives a structured applicant identity from raw
// document text. Strategies are tried in order; the first result passing the
// validity check wins. When no single strategy passes, partial results are
// merged before the request is rejected.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Source labels where an applicant identity came from.
const (
	SourceCache     = "cache"
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"
	SourceMerged    = "merged"
)

// Applicant is the extracted identity of the document owner.
type Applicant struct {
	Name       string
	Email      string
	Phone      string
	Confidence float64
	Source     string
}

// Input carries everything a strategy may need to extract an identity.
type Input struct {
	Requester string
	Text      string
}

// Strategy is a single extraction approach. A strategy returns its best
// effort, possibly with missing fields; the cascade decides whether the
// result is usable.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in Input) (*Applicant, error)
}

// ErrNoValidApplicant is wrapped into the rejection returned when every
// strategy and the final merge fail the validity check.
var ErrNoValidApplicant = errors.New("no strategy produced a valid applicant identity")

// Cascade runs strategies in order against a shared validity check.
type Cascade struct {
	steps     []Strategy
	validator *Validator
	logger    *zap.Logger
}

// NewCascade builds a cascade over the given ordered strategies.
func NewCascade(steps []Strategy, validator *Validator, logger *zap.Logger) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewValidator(nil)
	}
	return &Cascade{steps: steps, validator: validator, logger: logger}
}

// Run executes the cascade. The first strategy whose result passes the
// validity check wins. Strategy errors (timeouts, malformed responses) are
// logged and fall through to the next strategy; they never abort the run.
// Partial results are merged as a last resort.
func (c *Cascade) Run(ctx context.Context, in Input) (*Applicant, error) {
	partials := make([]*Applicant, 0, len(c.steps))

	for _, step := range c.steps {
		result, err := step.Extract(ctx, in)
		if err != nil {
			c.logger.Warn("extraction strategy failed",
				zap.String("strategy", step.Name()),
				zap.Error(err),
			)
			continue
		}
		if result == nil {
			continue
		}

		if verr := c.validator.Check(result); verr == nil {
			c.logger.Info("extraction strategy accepted",
				zap.String("strategy", step.Name()),
				zap.Float64("confidence", result.Confidence),
			)
			return result, nil
		} else {
			c.logger.Debug("extraction strategy result rejected",
				zap.String("strategy", step.Name()),
				zap.String("reason", verr.Error()),
			)
		}

		partials = append(partials, result)
	}

	merged := Merge(c.validator, partials)
	if merged != nil {
		if err := c.validator.Check(merged); err == nil {
			c.logger.Info("merged partial extractions accepted",
				zap.Int("partials", len(partials)),
			)
			return merged, nil
		} else {
			c.logger.Debug("merged extraction rejected", zap.String("reason", err.Error()))
		}
	}

	return nil, fmt.Errorf("%w (strategies tried: %d)", ErrNoValidApplicant, len(c.steps))
}
