package pipeline

import "fmt"

// IntakeError means the submitted document is missing or unreadable. The run
// is rejected before any external call; retrying cannot fix it.
type IntakeError struct {
	Err error
}

func (e *IntakeError) Error() string { return fmt.Sprintf("intake: %v", e.Err) }
func (e *IntakeError) Unwrap() error { return e.Err }

// ValidationError means no cascade strategy could produce a valid applicant
// identity. No application record exists for the request; not retried.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("applicant validation: %v", e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// CatastrophicError is any failure that prevented the run from reaching the
// confirmation stage. It triggers an operator alert and queue-level retry.
type CatastrophicError struct {
	Stage string
	Err   error
}

func (e *CatastrophicError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}
func (e *CatastrophicError) Unwrap() error { return e.Err }
