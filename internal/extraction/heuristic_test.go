package extraction

import (
	"context"
	"testing"
)

const sampleCV = `Jane A. Okoro
jane.okoro@mail.com | +234 801 234 5678
Lagos, Nigeria

Professional Summary
Accountant with 5 years experience in financial reporting.

Education
BSc Accounting, University of Lagos
`

func TestHeuristicExtractsHeadName(t *testing.T) {
	s := NewHeuristic(NewValidator(nil))

	applicant, err := s.Extract(context.Background(), Input{Text: sampleCV})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Name != "Jane A. Okoro" {
		t.Fatalf("unexpected name: %q", applicant.Name)
	}
	if applicant.Email != "jane.okoro@mail.com" {
		t.Fatalf("unexpected email: %q", applicant.Email)
	}
	if applicant.Phone != "+2348012345678" {
		t.Fatalf("unexpected phone: %q", applicant.Phone)
	}
	if applicant.Source != SourceHeuristic {
		t.Fatalf("unexpected source: %q", applicant.Source)
	}
}

func TestHeuristicPrefersLabeledFields(t *testing.T) {
	text := `Curriculum Vitae

Name: Chidi Eze
Email: chidi.eze@corp.io
Phone: 0801-234-5679
`
	s := NewHeuristic(NewValidator(nil))

	applicant, err := s.Extract(context.Background(), Input{Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Name != "Chidi Eze" {
		t.Fatalf("unexpected name: %q", applicant.Name)
	}
	if applicant.Email != "chidi.eze@corp.io" {
		t.Fatalf("unexpected email: %q", applicant.Email)
	}
	if applicant.Phone != "08012345679" {
		t.Fatalf("unexpected phone: %q", applicant.Phone)
	}
}

func TestHeuristicSkipsSectionHeaders(t *testing.T) {
	text := `Curriculum Vitae

Professional Summary
No contact details here.
`
	s := NewHeuristic(NewValidator(nil))

	applicant, err := s.Extract(context.Background(), Input{Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if applicant.Name != "" {
		t.Fatalf("expected no name, got %q", applicant.Name)
	}
}

func TestHeuristicIsDeterministic(t *testing.T) {
	s := NewHeuristic(NewValidator(nil))

	first, err := s.Extract(context.Background(), Input{Text: sampleCV})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Extract(context.Background(), Input{Text: sampleCV})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *first != *second {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
}
