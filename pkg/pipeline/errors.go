package pipeline

import "fmt"

// PhaseError is a failed phase. Entity and ID locate the failing item when
// known (e.g. "page" 2, "movie" 550). Re-running the pipeline is always safe.
type PhaseError struct {
	Phase  Phase
	Entity string
	ID     int64
	Err    error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("phase %s: %s %d: %v", e.Phase, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PhaseError) Unwrap() error {
	return e.Err
}
