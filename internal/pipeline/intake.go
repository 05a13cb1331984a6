package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/applyflow/applyflow/internal/application"
)

// TextSource turns the uploaded document into plain text. The heavy
// conversion service (PDF, DOCX) is an external collaborator; only its
// surface is specified here.
type TextSource interface {
	ExtractText(ctx context.Context, doc application.Document) (string, error)
}

// ValidateIntake confirms the referenced bytes exist and are non-empty
// before any paid or expensive work begins. No side effects beyond the
// existence/size check.
func ValidateIntake(doc application.Document) error {
	info, err := os.Stat(doc.Path)
	if err != nil {
		return &IntakeError{Err: fmt.Errorf("document %q is not readable: %w", doc.Path, err)}
	}
	if info.IsDir() {
		return &IntakeError{Err: fmt.Errorf("document path %q is a directory", doc.Path)}
	}
	if info.Size() == 0 {
		return &IntakeError{Err: errors.New("document is empty")}
	}
	return nil
}

// PlainTextSource reads the stored document as UTF-8 text. Deployments with
// binary uploads run a conversion sidecar and point the document path at its
// text output.
type PlainTextSource struct{}

// ExtractText reads the document bytes from disk.
func (PlainTextSource) ExtractText(_ context.Context, doc application.Document) (string, error) {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return "", fmt.Errorf("read document text: %w", err)
	}
	return string(data), nil
}
