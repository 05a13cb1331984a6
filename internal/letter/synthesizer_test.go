package letter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/extraction"
)

const testCV = `Jane A. Okoro
Accountant with 5 years experience in financial reporting.
BSc Accounting, University of Lagos.`

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testTargets() []application.TargetPosting {
	return []application.TargetPosting{
		{ID: "1", Title: "Accountant", Company: "Acme", RecipientContact: "hr@acme.test"},
	}
}

func TestSynthesizeUsesGeneratedLetter(t *testing.T) {
	generated := strings.Repeat("A compelling paragraph about the candidate. ", 10)
	s := NewSynthesizer(&stubCompleter{response: generated}, time.Second, zap.NewNop())

	applicant := &extraction.Applicant{Name: "Jane Okoro"}
	artifacts, fallback := s.Synthesize(context.Background(), applicant, testCV, testTargets())

	artifact := artifacts["1"]
	if artifact == nil {
		t.Fatal("expected artifact for target 1")
	}
	if artifact.Source != SourceGenerated {
		t.Fatalf("unexpected source: %q", artifact.Source)
	}
	if fallback == nil || fallback.Source != SourceDefault {
		t.Fatal("expected the shared default artifact")
	}
}

func TestSynthesizeFallsBackOnError(t *testing.T) {
	s := NewSynthesizer(&stubCompleter{err: errors.New("deadline exceeded")}, time.Second, zap.NewNop())

	applicant := &extraction.Applicant{Name: "Jane Okoro"}
	artifacts, _ := s.Synthesize(context.Background(), applicant, testCV, testTargets())

	artifact := artifacts["1"]
	if artifact.Source != SourceTemplate {
		t.Fatalf("unexpected source: %q", artifact.Source)
	}
	if !strings.Contains(artifact.Text, "Jane Okoro") {
		t.Fatal("expected the applicant's real name in the template letter")
	}
	if !strings.Contains(artifact.Text, "Accountant") || !strings.Contains(artifact.Text, "Acme") {
		t.Fatal("expected the posting title and company in the template letter")
	}
}

func TestSynthesizeFallsBackOnShortResponse(t *testing.T) {
	s := NewSynthesizer(&stubCompleter{response: "ok"}, time.Second, zap.NewNop())

	applicant := &extraction.Applicant{Name: "Jane Okoro"}
	artifacts, _ := s.Synthesize(context.Background(), applicant, testCV, testTargets())

	if artifacts["1"].Source != SourceTemplate {
		t.Fatalf("expected template fallback, got %q", artifacts["1"].Source)
	}
}

func TestExtractSignals(t *testing.T) {
	signals := ExtractSignals(testCV)

	if signals.YearsOfExperience != 5 {
		t.Fatalf("unexpected years: %d", signals.YearsOfExperience)
	}
	if signals.EducationLevel != "a bachelor's degree" {
		t.Fatalf("unexpected education: %q", signals.EducationLevel)
	}
	if signals.Category != "finance and accounting" {
		t.Fatalf("unexpected category: %q", signals.Category)
	}
}

func TestExtractSignalsDefaults(t *testing.T) {
	signals := ExtractSignals("short note")

	if signals.YearsOfExperience != 0 {
		t.Fatalf("unexpected years: %d", signals.YearsOfExperience)
	}
	if signals.EducationLevel != "" {
		t.Fatalf("unexpected education: %q", signals.EducationLevel)
	}
	if signals.Category != "my field" {
		t.Fatalf("unexpected category: %q", signals.Category)
	}
}

func TestRenderTemplateIsDeterministic(t *testing.T) {
	signals := ExtractSignals(testCV)
	first := RenderTemplate("Jane Okoro", "Accountant", "Acme", signals)
	second := RenderTemplate("Jane Okoro", "Accountant", "Acme", signals)

	if first != second {
		t.Fatal("expected deterministic template output")
	}
}
