package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/ai"
	"github.com/applyflow/applyflow/internal/application"
)

// DefaultMatchScore is recorded when scoring fails or is unavailable.
const DefaultMatchScore = 75

const scoreTimeout = 20 * time.Second

const scoringPrompt = `Rate how well this CV matches the job posting on a scale of 0-100.
Respond with a single JSON object and nothing else: {"score": <0-100>}

Job: %s at %s
CV excerpt:
%s`

// Scorer produces a CV/job match score in [0,100].
type Scorer interface {
	Score(ctx context.Context, cvText string, target application.TargetPosting) (int, error)
}

// AIScorer scores through the completion provider.
type AIScorer struct {
	completer ai.Completer
	logger    *zap.Logger
}

// NewAIScorer wraps the completion provider into a Scorer.
func NewAIScorer(completer ai.Completer, logger *zap.Logger) *AIScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIScorer{completer: completer, logger: logger}
}

// Score asks the model for a match score. The caller treats any error as
// best-effort and substitutes DefaultMatchScore.
func (s *AIScorer) Score(ctx context.Context, cvText string, target application.TargetPosting) (int, error) {
	if s.completer == nil {
		return 0, fmt.Errorf("completion provider is not configured")
	}

	excerpt := cvText
	if len(excerpt) > 2000 {
		excerpt = excerpt[:2000]
	}

	callCtx, cancel := context.WithTimeout(ctx, scoreTimeout)
	defer cancel()

	raw, err := s.completer.Complete(callCtx, fmt.Sprintf(scoringPrompt, target.Title, target.Company, excerpt))
	if err != nil {
		return 0, err
	}

	data, err := ai.ParseJSONObject(raw)
	if err != nil {
		return 0, err
	}

	score := ai.CoerceFloat(data["score"])
	if math.IsNaN(score) {
		return 0, fmt.Errorf("scoring response carried no numeric score")
	}

	return ClampScore(int(math.Round(score))), nil
}

// ClampScore bounds a score into [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
