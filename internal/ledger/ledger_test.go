package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/extraction"
)

type fixedScorer struct {
	score int
	err   error
}

func (s *fixedScorer) Score(_ context.Context, _ string, _ application.TargetPosting) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.score, nil
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "applications.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRequest() *application.Request {
	return &application.Request{
		ID:        "req-1",
		Requester: "user-1",
		Document:  application.Document{Path: "/tmp/cv.pdf"},
		Targets: []application.TargetPosting{
			{ID: "1", Title: "Accountant", Company: "Acme", RecipientContact: "hr@acme.test"},
			{ID: "2", Title: "Auditor", Company: "Globex", RecipientContact: "jobs@globex.test"},
		},
	}
}

func testApplicant() *extraction.Applicant {
	return &extraction.Applicant{Name: "Jane Okoro", Email: "jane.okoro@mail.com", Phone: "+2348012345678"}
}

func quickBackoff() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
}

func TestCreateRecordsOnePerTarget(t *testing.T) {
	store := openTestStore(t)
	l := New(store, &fixedScorer{score: 88}, quickBackoff(), zap.NewNop())

	outcomes := l.CreateRecords(context.Background(), testRequest(), testApplicant(), "cv text")
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("unexpected outcome error for %s: %v", o.TargetID, o.Err)
		}
	}

	records, err := l.Records(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected exactly 2 rows, got %d", len(records))
	}

	seen := map[string]bool{}
	for _, r := range records {
		if seen[r.TargetID] {
			t.Fatalf("duplicate row for target %s", r.TargetID)
		}
		seen[r.TargetID] = true

		if r.Status != StatusSubmitted {
			t.Fatalf("unexpected status: %s", r.Status)
		}
		if r.MatchScore != 88 {
			t.Fatalf("unexpected score: %d", r.MatchScore)
		}
		if r.ApplicantName != "Jane Okoro" {
			t.Fatalf("unexpected applicant name: %s", r.ApplicantName)
		}
	}
}

func TestCreateRecordsIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	l := New(store, nil, quickBackoff(), zap.NewNop())

	l.CreateRecords(context.Background(), testRequest(), testApplicant(), "cv text")
	l.CreateRecords(context.Background(), testRequest(), testApplicant(), "cv text")

	records, err := l.Records(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 rows after re-run, got %d", len(records))
	}
}

func TestScoringFailureFallsBackToDefault(t *testing.T) {
	store := openTestStore(t)
	l := New(store, &fixedScorer{err: errors.New("timeout")}, quickBackoff(), zap.NewNop())

	l.CreateRecords(context.Background(), testRequest(), testApplicant(), "cv text")

	records, _ := l.Records(context.Background(), "req-1")
	for _, r := range records {
		if r.MatchScore != DefaultMatchScore {
			t.Fatalf("expected default score %d, got %d", DefaultMatchScore, r.MatchScore)
		}
	}
}

func TestMarkDispatchedIsMonotonic(t *testing.T) {
	store := openTestStore(t)
	l := New(store, nil, quickBackoff(), zap.NewNop())

	l.CreateRecords(context.Background(), testRequest(), testApplicant(), "cv text")

	if err := l.MarkDispatched(context.Background(), "req-1", "1", true, ""); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := l.MarkDispatched(context.Background(), "req-1", "2", false, "no recipient contact"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// A second transition attempt must not revert the status.
	if err := l.MarkDispatched(context.Background(), "req-1", "1", false, "late failure"); err != nil {
		t.Fatalf("second transition: %v", err)
	}

	records, _ := l.Records(context.Background(), "req-1")
	byTarget := map[string]*Record{}
	for _, r := range records {
		byTarget[r.TargetID] = r
	}

	if byTarget["1"].Status != StatusEmailSent {
		t.Fatalf("target 1 status reverted: %s", byTarget["1"].Status)
	}
	if byTarget["1"].EmailSentAt == nil {
		t.Fatal("expected email_sent_at timestamp for target 1")
	}
	if byTarget["2"].Status != StatusEmailFailed {
		t.Fatalf("target 2 status: %s", byTarget["2"].Status)
	}
	if byTarget["2"].ErrorMessage == "" {
		t.Fatal("expected non-empty failure reason for target 2")
	}
}

func TestBackoffDelayGrows(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	if d := p.Delay(1); d != 100*time.Millisecond {
		t.Fatalf("attempt 1 delay: %v", d)
	}
	if d := p.Delay(2); d != 200*time.Millisecond {
		t.Fatalf("attempt 2 delay: %v", d)
	}
	if d := p.Delay(10); d != time.Second {
		t.Fatalf("capped delay: %v", d)
	}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		return errors.New("persistent failure")
	})

	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}
