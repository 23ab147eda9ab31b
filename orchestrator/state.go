package orchestrator

import (
	"errors"
	"fmt"
)

// State is a step of a documentation run.
type State string

const (
	StateIdle                 State = "idle"
	StateAnalyzing            State = "analyzing"
	StateGenerating           State = "generating"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateBackingUp            State = "backing_up"
	StateWriting              State = "writing"
	StateCompleted            State = "completed"
	StateRolledBack           State = "rolled_back"
	StateFailed               State = "failed"
)

// ErrIllegalTransition means the run tried to move between two states that are
// not connected. It is a programming error, never a user error.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	StateIdle:                 {StateAnalyzing, StateFailed},
	StateAnalyzing:            {StateGenerating, StateCompleted, StateFailed},
	StateGenerating:           {StateAwaitingConfirmation, StateCompleted, StateFailed},
	StateAwaitingConfirmation: {StateBackingUp, StateCompleted, StateFailed},
	StateBackingUp:            {StateWriting, StateFailed},
	StateWriting:              {StateCompleted, StateRolledBack, StateFailed},
}

// IsTerminal reports whether a run in state s is over.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateRolledBack || s == StateFailed
}

// CanTransition reports whether from -> to is part of the workflow.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}
