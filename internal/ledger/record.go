// Package ledger persists exactly one application record per
// (request, target) pair and moves its status strictly forward.
package ledger

import "time"

// Status of an application record. Transitions are monotonic:
// submitted -> email_sent | email_failed, never back.
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusEmailSent   Status = "email_sent"
	StatusEmailFailed Status = "email_failed"
)

// Record is one durable application row. Rows outlive the pipeline run and
// are never deleted.
type Record struct {
	ID             string
	RequestID      string
	Requester      string
	TargetID       string
	CVSnapshot     string
	MatchScore     int
	Status         Status
	AppliedAt      time.Time
	EmailSentAt    *time.Time
	ErrorMessage   string
	ApplicantName  string
	ApplicantEmail string
	ApplicantPhone string
}
