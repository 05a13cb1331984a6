// Package dispatch sends one outbound notification per target posting in
// small parallel batches separated by throttling delays.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/extraction"
)

// Notification is one outbound message with the original document attached.
type Notification struct {
	To             string
	Subject        string
	Body           string
	AttachmentPath string
	AttachmentName string
}

// Courier delivers notifications over some outbound channel. Implementations
// must be safe for concurrent use; sibling sends within a batch run in
// parallel.
type Courier interface {
	Send(ctx context.Context, n Notification) error
}

// Result is the ephemeral per-target outcome used to update record status
// and compose the confirmation message.
type Result struct {
	TargetID string
	Success  bool
	Reason   string
}

// ComposeApplication builds the outbound notification for one target.
func ComposeApplication(doc application.Document, target application.TargetPosting, applicant *extraction.Applicant, letterText string) Notification {
	var contact strings.Builder
	contact.WriteString(applicant.Name)
	if applicant.Email != "" {
		contact.WriteString("\nEmail: " + applicant.Email)
	}
	if applicant.Phone != "" {
		contact.WriteString("\nPhone: " + applicant.Phone)
	}

	location := target.Location
	if location == "" {
		location = "Not specified"
	}

	body := fmt.Sprintf(`Position: %s
Company: %s
Location: %s

%s

--
%s`, target.Title, target.Company, location, letterText, contact.String())

	return Notification{
		To:             target.RecipientContact,
		Subject:        fmt.Sprintf("Application for %s Position - %s", target.Title, applicant.Name),
		Body:           body,
		AttachmentPath: doc.Path,
		AttachmentName: fmt.Sprintf("%s_CV.%s", strings.ReplaceAll(applicant.Name, " ", "_"), doc.Ext()),
	}
}
