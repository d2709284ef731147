package draw

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasible matches any *InfeasibleError.
	ErrInfeasible = errors.New("draw: no valid assignment found")

	// ErrValidation matches any *ValidationError.
	ErrValidation = errors.New("draw: invalid input")
)

// InfeasibleError reports that the engine could not produce a complete
// assignment. It never carries a partial result.
type InfeasibleError struct {
	Participants int  // size of the group that was drawn
	Attempts     int  // randomized attempts spent before giving up
	Proven       bool // true when the feasibility check ruled out every assignment
}

func (e *InfeasibleError) Error() string {
	switch {
	case e.Participants < MinParticipants:
		return fmt.Sprintf("draw: %d participants cannot exchange gifts", e.Participants)
	case e.Proven:
		return fmt.Sprintf("draw: restrictions leave no valid assignment for %d participants", e.Participants)
	default:
		return fmt.Sprintf("draw: no valid assignment for %d participants after %d attempts", e.Participants, e.Attempts)
	}
}

// Is lets errors.Is(err, ErrInfeasible) match.
func (e *InfeasibleError) Is(target error) bool {
	return target == ErrInfeasible
}

// ValidationError describes input rejected before the engine runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "draw: " + e.Reason
	}
	return fmt.Sprintf("draw: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
