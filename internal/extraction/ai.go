package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/applyflow/applyflow/internal/ai"
)

const (
	defaultAITimeout  = 45 * time.Second
	maxDocumentPrefix = 6000
)

const extractionPrompt = `Extract the applicant's identity from the CV text below.
Respond with a single JSON object and nothing else:
{"name": "<full name>", "email": "<email or empty string>", "phone": "<phone or empty string>", "confidence": <0..1>}

Rules:
- "name" must be the person's own name, never a job title or section header.
- Use empty strings for fields that are not present in the text.

CV text:
%s`

// aiStrategy asks the completion provider to extract the identity. One call,
// raced against a timeout; on timeout or a malformed response the cascade
// falls through to the next strategy.
type aiStrategy struct {
	completer ai.Completer
	timeout   time.Duration
}

// NewAI creates the AI-assisted extraction strategy.
func NewAI(completer ai.Completer, timeout time.Duration) Strategy {
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	return &aiStrategy{completer: completer, timeout: timeout}
}

func (s *aiStrategy) Name() string { return "ai" }

func (s *aiStrategy) Extract(ctx context.Context, in Input) (*Applicant, error) {
	if s.completer == nil {
		return nil, fmt.Errorf("completion provider is not configured")
	}

	text := in.Text
	if len(text) > maxDocumentPrefix {
		text = text[:maxDocumentPrefix]
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.completer.Complete(callCtx, fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		return nil, err
	}

	data, err := ai.ParseJSONObject(raw)
	if err != nil {
		return nil, err
	}

	confidence := ai.CoerceFloat(data["confidence"])
	if confidence != confidence || confidence < 0 || confidence > 1 { // NaN or out of range
		confidence = 0.8
	}

	return &Applicant{
		Name:       ai.CoerceString(data["name"]),
		Email:      ai.CoerceString(data["email"]),
		Phone:      ai.CoerceString(data["phone"]),
		Confidence: confidence,
		Source:     SourceAI,
	}, nil
}
