// Package promotion implements the staged evaluation pipeline:
// BACKTEST -> SIMULATED -> REAL, with a terminal RETIRED exit reachable from
// SIMULATED or REAL. Transitions are monotonic forward; RETIRED never
// re-enters the pipeline.
package promotion

import (
	"errors"
	"fmt"

	"pump-strategy-lab/internal/domain"
)

// ErrInvalidTransition is returned for a stage change the machine does not allow.
var ErrInvalidTransition = errors.New("invalid stage transition")

// CanTransition reports whether from -> to is a legal stage change.
// The switch is exhaustive over the stage enum.
func CanTransition(from, to domain.Stage) bool {
	switch from {
	case domain.StageBacktest:
		return to == domain.StageSimulated
	case domain.StageSimulated:
		return to == domain.StageReal || to == domain.StageRetired
	case domain.StageReal:
		return to == domain.StageRetired
	case domain.StageRetired:
		return false
	}
	return false
}

// Transition validates and returns the target stage.
func Transition(from, to domain.Stage) (domain.Stage, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
