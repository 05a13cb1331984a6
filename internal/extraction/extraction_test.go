package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newCascadeForTest(completer *stubCompleter, cache PriorCache) *Cascade {
	validator := NewValidator(nil)
	steps := []Strategy{
		NewPrior(cache),
		NewAI(completer, time.Second),
		NewHeuristic(validator),
	}
	return NewCascade(steps, validator, zap.NewNop())
}

func TestCascadeAcceptsAIResult(t *testing.T) {
	completer := &stubCompleter{
		response: `{"name": "Jane Okoro", "email": "jane.okoro@mail.com", "phone": "+2348012345678", "confidence": 0.95}`,
	}

	applicant, err := newCascadeForTest(completer, nil).Run(context.Background(), Input{Text: sampleCV})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Source != SourceAI {
		t.Fatalf("expected ai source, got %q", applicant.Source)
	}
	if applicant.Name != "Jane Okoro" {
		t.Fatalf("unexpected name: %q", applicant.Name)
	}
	if applicant.Confidence != 0.95 {
		t.Fatalf("unexpected confidence: %v", applicant.Confidence)
	}
}

func TestCascadeFallsThroughToHeuristic(t *testing.T) {
	completer := &stubCompleter{err: errors.New("deadline exceeded")}

	applicant, err := newCascadeForTest(completer, nil).Run(context.Background(), Input{Text: sampleCV})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Source != SourceHeuristic {
		t.Fatalf("expected heuristic source, got %q", applicant.Source)
	}
	if applicant.Name != "Jane A. Okoro" {
		t.Fatalf("unexpected name: %q", applicant.Name)
	}
}

func TestCascadePrefersCachedPrior(t *testing.T) {
	cache := NewMemoryPriorCache()
	cache.Put(context.Background(), "user-1", &Applicant{
		Name:       "Jane Okoro",
		Email:      "jane.okoro@mail.com",
		Confidence: 1,
	}, time.Minute)

	completer := &stubCompleter{response: `{"name": "Other Person", "email": "other@corp.io"}`}

	applicant, err := newCascadeForTest(completer, cache).Run(context.Background(), Input{
		Requester: "user-1",
		Text:      sampleCV,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Source != SourceCache {
		t.Fatalf("expected cache source, got %q", applicant.Source)
	}
	if completer.calls != 0 {
		t.Fatalf("expected no AI call, got %d", completer.calls)
	}
}

func TestCascadeMergesPartialResults(t *testing.T) {
	// AI returns a name without contacts, heuristic finds only an email.
	completer := &stubCompleter{response: `{"name": "Jane Okoro", "email": "", "phone": ""}`}
	text := "reach me at jane.okoro@mail.com for details"

	applicant, err := newCascadeForTest(completer, nil).Run(context.Background(), Input{Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Source != SourceMerged {
		t.Fatalf("expected merged source, got %q", applicant.Source)
	}
	if applicant.Name != "Jane Okoro" {
		t.Fatalf("unexpected name: %q", applicant.Name)
	}
	if applicant.Email != "jane.okoro@mail.com" {
		t.Fatalf("unexpected email: %q", applicant.Email)
	}
}

func TestCascadeRejectsUnusableDocument(t *testing.T) {
	completer := &stubCompleter{err: errors.New("service unavailable")}

	_, err := newCascadeForTest(completer, nil).Run(context.Background(), Input{Text: "Curriculum Vitae"})
	if !errors.Is(err, ErrNoValidApplicant) {
		t.Fatalf("expected ErrNoValidApplicant, got %v", err)
	}
}

func TestMergeDerivesNameFromEmail(t *testing.T) {
	merged := Merge(NewValidator(nil), []*Applicant{{Email: "jane.okoro@mail.com"}})
	if merged == nil {
		t.Fatal("expected merged applicant")
	}
	if merged.Name != "Jane Okoro" {
		t.Fatalf("unexpected derived name: %q", merged.Name)
	}
}

func TestMergeReturnsNilWithoutFields(t *testing.T) {
	if merged := Merge(NewValidator(nil), []*Applicant{{}, nil}); merged != nil {
		t.Fatalf("expected nil, got %+v", merged)
	}
	if merged := Merge(NewValidator(nil), nil); merged != nil {
		t.Fatalf("expected nil for no partials, got %+v", merged)
	}
}

func TestMergeSkipsInvalidNameForValidOne(t *testing.T) {
	// One partial carries a section-header name with a good email, a later
	// one carries a real name without contacts. The merged candidate must
	// take the valid name, not the first non-empty one.
	merged := Merge(NewValidator(nil), []*Applicant{
		{Name: "Team Leadership", Email: "jane.okoro@mail.com"},
		{Name: "Jane Okoro"},
	})
	if merged == nil {
		t.Fatal("expected merged applicant")
	}
	if merged.Name != "Jane Okoro" {
		t.Fatalf("unexpected name: %q", merged.Name)
	}
	if merged.Email != "jane.okoro@mail.com" {
		t.Fatalf("unexpected email: %q", merged.Email)
	}
}

func TestCascadeMergeRecoversFromInvalidAIName(t *testing.T) {
	// AI misreads a section header as the name but finds the email; the
	// heuristic finds only the name. Neither passes alone, the merge must.
	completer := &stubCompleter{response: `{"name": "Team Leadership", "email": "jane.okoro@mail.com", "phone": ""}`}
	text := "Jane Okoro\nTeam Leadership and mentoring since 2015"

	applicant, err := newCascadeForTest(completer, nil).Run(context.Background(), Input{Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Source != SourceMerged {
		t.Fatalf("expected merged source, got %q", applicant.Source)
	}
	if applicant.Name != "Jane Okoro" {
		t.Fatalf("unexpected name: %q", applicant.Name)
	}
	if applicant.Email != "jane.okoro@mail.com" {
		t.Fatalf("unexpected email: %q", applicant.Email)
	}
}
