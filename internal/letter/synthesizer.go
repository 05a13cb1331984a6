// Package letter produces one personalized cover letter per target posting,
// with a deterministic template fallback when generation is slow or empty.
package letter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/ai"
	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/extraction"
)

const (
	defaultGenTimeout = 30 * time.Second
	minLetterLength   = 120
	maxSummaryPrefix  = 3000
)

// Source labels how an artifact was produced.
const (
	SourceGenerated = "generated"
	SourceTemplate  = "template"
	SourceDefault   = "default"
)

// Artifact is one cover letter keyed by target posting id. The shared default
// artifact has an empty TargetID.
type Artifact struct {
	TargetID string
	Text     string
	Source   string
}

const generationPrompt = `Write a short professional cover letter (150-250 words) for the application below.
Write only the letter body, no subject line, no placeholders.

Applicant name: %s
Position: %s
Company: %s

CV summary:
%s`

// Synthesizer generates letters through the completion provider and falls
// back to templated text keyed off lightweight CV signals.
type Synthesizer struct {
	completer ai.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSynthesizer builds a Synthesizer. A nil completer disables generation;
// every letter then comes from the template.
func NewSynthesizer(completer ai.Completer, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = defaultGenTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{completer: completer, timeout: timeout, logger: logger}
}

// Synthesize produces one artifact per target plus the shared default
// artifact, which is built once up front and reused for any target whose
// personalized attempt fails entirely.
func (s *Synthesizer) Synthesize(ctx context.Context, applicant *extraction.Applicant, docText string, targets []application.TargetPosting) (map[string]*Artifact, *Artifact) {
	signals := ExtractSignals(docText)

	fallback := &Artifact{
		Source: SourceDefault,
		Text:   RenderTemplate(applicant.Name, "the advertised position", "your organization", signals),
	}

	artifacts := make(map[string]*Artifact, len(targets))
	for _, target := range targets {
		artifacts[target.ID] = s.forTarget(ctx, applicant, docText, signals, target)
	}

	return artifacts, fallback
}

func (s *Synthesizer) forTarget(ctx context.Context, applicant *extraction.Applicant, docText string, signals Signals, target application.TargetPosting) *Artifact {
	if s.completer != nil {
		text, err := s.generate(ctx, applicant.Name, docText, target)
		if err == nil && len(text) >= minLetterLength {
			return &Artifact{TargetID: target.ID, Text: text, Source: SourceGenerated}
		}

		if err != nil {
			s.logger.Warn("cover letter generation failed, using template",
				zap.String("target_id", target.ID),
				zap.Error(err),
			)
		} else {
			s.logger.Warn("generated cover letter too short, using template",
				zap.String("target_id", target.ID),
				zap.Int("length", len(text)),
			)
		}
	}

	return &Artifact{
		TargetID: target.ID,
		Text:     RenderTemplate(applicant.Name, target.Title, target.Company, signals),
		Source:   SourceTemplate,
	}
}

func (s *Synthesizer) generate(ctx context.Context, applicantName, docText string, target application.TargetPosting) (string, error) {
	summary := docText
	if len(summary) > maxSummaryPrefix {
		summary = summary[:maxSummaryPrefix]
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(generationPrompt, applicantName, target.Title, target.Company, summary)

	text, err := s.completer.Complete(callCtx, prompt)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}
