package workflow

import "context"

// Workflow is an executable unit that records a Result per step.
type Workflow interface {
	// Execute runs the workflow to completion.
	// Returns an error describing the steps that failed, if any.
	Execute(ctx context.Context) error

	// GetAllResults returns all step results keyed by step number.
	// The returned map is a copy and safe for concurrent access.
	GetAllResults() map[int]*Result
}

var _ Workflow = (*Sequence)(nil)
