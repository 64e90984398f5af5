package domain

import "context"

// CompletionService is the opaque text-completion capability of the model
// runtime. Implementations return ErrTimeout or ErrServiceUnavailable
// domain errors on failure.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
