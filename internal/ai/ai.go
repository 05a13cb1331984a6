// Package ai defines the narrow interfaces the pipeline uses to talk to an
// AI completion provider. Concrete providers live in subpackages.
package ai

import "context"

// Completer produces one textual completion for a prompt. Implementations
// must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
