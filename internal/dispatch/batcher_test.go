package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/extraction"
	"github.com/applyflow/applyflow/internal/letter"
)

type recordingCourier struct {
	mu       sync.Mutex
	sent     []Notification
	failFor  map[string]error
	maxBatch int
	inFlight int
}

func (c *recordingCourier) Send(_ context.Context, n Notification) error {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxBatch {
		c.maxBatch = c.inFlight
	}
	c.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if err, ok := c.failFor[n.To]; ok {
		return err
	}
	c.sent = append(c.sent, n)
	return nil
}

func dispatchRequest(targets ...application.TargetPosting) *application.Request {
	return &application.Request{
		ID:        "req-1",
		Requester: "user-1",
		Document:  application.Document{Path: "/tmp/cv.pdf", OriginalName: "cv.pdf"},
		Targets:   targets,
	}
}

func dispatchApplicant() *extraction.Applicant {
	return &extraction.Applicant{Name: "Jane Okoro", Email: "jane.okoro@mail.com", Phone: "+2348012345678"}
}

func artifactsFor(targets []application.TargetPosting) (map[string]*letter.Artifact, *letter.Artifact) {
	artifacts := make(map[string]*letter.Artifact, len(targets))
	for _, t := range targets {
		artifacts[t.ID] = &letter.Artifact{TargetID: t.ID, Text: "letter for " + t.Title, Source: letter.SourceTemplate}
	}
	return artifacts, &letter.Artifact{Text: "default letter", Source: letter.SourceDefault}
}

func TestBatcherIsolatesFailures(t *testing.T) {
	targets := []application.TargetPosting{
		{ID: "1", Title: "Accountant", Company: "Acme"}, // no recipient contact
		{ID: "2", Title: "Auditor", Company: "Globex", RecipientContact: "jobs@globex.test"},
	}
	courier := &recordingCourier{}
	artifacts, fallback := artifactsFor(targets)

	b := NewBatcher(courier, 3, time.Millisecond, time.Second, zap.NewNop())
	results := b.Run(context.Background(), dispatchRequest(targets...), dispatchApplicant(), artifacts, fallback, nil)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Success {
		t.Fatal("target without recipient contact should fail")
	}
	if results[0].Reason == "" {
		t.Fatal("expected recorded failure reason")
	}
	if !results[1].Success {
		t.Fatalf("sibling target should still succeed: %+v", results[1])
	}
	if len(courier.sent) != 1 {
		t.Fatalf("expected exactly 1 delivered message, got %d", len(courier.sent))
	}
}

func TestBatcherRespectsBatchSize(t *testing.T) {
	var targets []application.TargetPosting
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		targets = append(targets, application.TargetPosting{
			ID: id, Title: "Role " + id, Company: "Acme", RecipientContact: "hr" + id + "@acme.test",
		})
	}
	courier := &recordingCourier{}
	artifacts, fallback := artifactsFor(targets)

	b := NewBatcher(courier, 2, time.Millisecond, time.Second, zap.NewNop())
	results := b.Run(context.Background(), dispatchRequest(targets...), dispatchApplicant(), artifacts, fallback, nil)

	for _, r := range results {
		if !r.Success {
			t.Fatalf("unexpected failure: %+v", r)
		}
	}
	if courier.maxBatch > 2 {
		t.Fatalf("batch size exceeded: %d concurrent sends", courier.maxBatch)
	}
}

func TestBatcherReportsOutcomesImmediately(t *testing.T) {
	targets := []application.TargetPosting{
		{ID: "1", Title: "Accountant", Company: "Acme", RecipientContact: "hr@acme.test"},
		{ID: "2", Title: "Auditor", Company: "Globex", RecipientContact: "bad@globex.test"},
	}
	courier := &recordingCourier{failFor: map[string]error{"bad@globex.test": errors.New("mailbox unavailable")}}
	artifacts, fallback := artifactsFor(targets)

	var mu sync.Mutex
	outcomes := map[string]Result{}

	b := NewBatcher(courier, 3, time.Millisecond, time.Second, zap.NewNop())
	b.Run(context.Background(), dispatchRequest(targets...), dispatchApplicant(), artifacts, fallback, func(r Result) {
		mu.Lock()
		outcomes[r.TargetID] = r
		mu.Unlock()
	})

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcome callbacks, got %d", len(outcomes))
	}
	if !outcomes["1"].Success {
		t.Fatal("target 1 should succeed")
	}
	if outcomes["2"].Success || outcomes["2"].Reason == "" {
		t.Fatalf("target 2 should fail with reason, got %+v", outcomes["2"])
	}
}

func TestComposeApplication(t *testing.T) {
	doc := application.Document{Path: "/tmp/abc123", OriginalName: "resume.docx"}
	target := application.TargetPosting{
		ID: "1", Title: "Accountant", Company: "Acme",
		Location: "Lagos", RecipientContact: "hr@acme.test",
	}

	n := ComposeApplication(doc, target, dispatchApplicant(), "the letter body")

	if n.Subject != "Application for Accountant Position - Jane Okoro" {
		t.Fatalf("unexpected subject: %q", n.Subject)
	}
	if n.To != "hr@acme.test" {
		t.Fatalf("unexpected recipient: %q", n.To)
	}
	if n.AttachmentName != "Jane_Okoro_CV.docx" {
		t.Fatalf("unexpected attachment name: %q", n.AttachmentName)
	}
	for _, want := range []string{"the letter body", "Acme", "Lagos", "jane.okoro@mail.com", "+2348012345678"} {
		if !strings.Contains(n.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, n.Body)
		}
	}
}
