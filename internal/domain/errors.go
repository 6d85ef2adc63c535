package domain

import "fmt"

var (
	ErrNotFound  = errString("not found")
	ErrForbidden = errString("not allowed to change this recommendation")
	ErrConflict  = errString("recommendation was modified concurrently")
)

type errString string

func (e errString) Error() string { return string(e) }

// ValidationError is client-facing: a disallowed transition or bad input.
// Message is returned to the caller verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RecalculationError wraps a failed recalculation. It is logged, never
// surfaced to whoever triggered the recalculation.
type RecalculationError struct {
	RecommendationID string
	TriggerSource    string
	Err              error
}

func (e *RecalculationError) Error() string {
	return fmt.Sprintf("recalculate %s (trigger=%s): %v", e.RecommendationID, e.TriggerSource, e.Err)
}

func (e *RecalculationError) Unwrap() error { return e.Err }
