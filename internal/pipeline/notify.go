package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/applyflow/applyflow/internal/dispatch"
	"github.com/applyflow/applyflow/internal/ledger"
)

// Notifier delivers the requester-facing confirmation and the operator
// alerts. The messaging front end owns how a requester identifier maps to an
// actual channel.
type Notifier interface {
	NotifyRequester(ctx context.Context, requester, subject, body string) error
	AlertOperator(ctx context.Context, subject, body string) error
}

// ComposeConfirmation renders the single summary notification sent to the
// requester after all batches complete.
func ComposeConfirmation(results []dispatch.Result, records []*ledger.Record) (subject, body string) {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	byTarget := make(map[string]*ledger.Record, len(records))
	for _, rec := range records {
		byTarget[rec.TargetID] = rec
	}

	var b strings.Builder
	b.WriteString("Your application has been processed. Per-job status:\n\n")
	for _, r := range results {
		status := "SENT"
		detail := ""
		if !r.Success {
			status = "FAILED"
			detail = " (" + r.Reason + ")"
		}

		label := r.TargetID
		if rec := byTarget[r.TargetID]; rec != nil {
			label = fmt.Sprintf("%s [match score %d]", r.TargetID, rec.MatchScore)
		}
		fmt.Fprintf(&b, "- Job %s: %s%s\n", label, status, detail)
	}
	b.WriteString("\nEmployers normally respond within one to two weeks. Good luck!\n")

	subject = fmt.Sprintf("Application Confirmation - %d Jobs Applied Successfully", succeeded)
	return subject, b.String()
}

// ComposeRejection renders the explicit message a requester receives when no
// identity data could be extracted from the document.
func ComposeRejection() (subject, body string) {
	return "Application Could Not Be Processed",
		`We could not extract your name and contact details from the uploaded document.

Please upload a clearer CV that includes your full name and at least one of:
- an email address
- a phone number

Then submit your application again.`
}

// ComposeOperatorAlert renders the diagnostic alert for catastrophic
// failures. The requester identifier is truncated to avoid leaking the full
// value into the alerting channel.
func ComposeOperatorAlert(runErr error, requester string, targetCount int, elapsed time.Duration) (subject, body string) {
	errType := fmt.Sprintf("%T", runErr)
	if idx := strings.LastIndex(errType, "."); idx != -1 {
		errType = errType[idx+1:]
	}

	partial := requester
	if len(partial) > 8 {
		partial = partial[:8]
	}

	subject = fmt.Sprintf("Critical Error: %s - %s", errType, partial)
	body = fmt.Sprintf(`Pipeline run failed before confirmation.

Error type:   %s
Error:        %v
Elapsed:      %s
Target count: %d
Go version:   %s
OS/Arch:      %s/%s
Goroutines:   %d
`,
		errType, runErr, elapsed.Round(time.Millisecond), targetCount,
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumGoroutine(),
	)
	return subject, body
}

// CourierNotifier sends both notification kinds over an outbound courier.
// RequesterAddress resolves an opaque requester identifier to a deliverable
// address; identifiers that do not resolve are skipped silently since the
// front end has its own channel to the user.
type CourierNotifier struct {
	Courier          dispatch.Courier
	OperatorAddress  string
	RequesterAddress func(requester string) string
}

// NotifyRequester sends the requester-facing message when the identifier
// resolves to an address.
func (n *CourierNotifier) NotifyRequester(ctx context.Context, requester, subject, body string) error {
	if n.RequesterAddress == nil {
		return nil
	}
	addr := n.RequesterAddress(requester)
	if addr == "" {
		return nil
	}
	return n.Courier.Send(ctx, dispatch.Notification{To: addr, Subject: subject, Body: body})
}

// AlertOperator sends the diagnostic alert to the operator address.
func (n *CourierNotifier) AlertOperator(ctx context.Context, subject, body string) error {
	if n.OperatorAddress == "" {
		return nil
	}
	return n.Courier.Send(ctx, dispatch.Notification{To: n.OperatorAddress, Subject: subject, Body: body})
}
