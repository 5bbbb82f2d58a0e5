package fsm

import (
	"errors"
	"fmt"
)

var (
	ErrNoInitialState      = errors.New("definition requires an initial state")
	ErrNoStates            = errors.New("definition requires at least one state")
	ErrEmptyState          = errors.New("state value cannot be empty")
	ErrEmptyTransitionName = errors.New("transition name cannot be empty")
	ErrNilConfig           = errors.New("dimension config cannot be nil")
	ErrEmptyDimension      = errors.New("dimension name cannot be empty")
	ErrUnknownDimension    = errors.New("no definition registered for dimension")
	ErrAlreadyRegistered   = errors.New("dimension already registered")
)

// ErrUndeclaredState indicates a state referenced by the configuration
// (the initial marker or a final marker) is missing from the declared set.
type ErrUndeclaredState struct {
	State State
	Role  string
}

func (e *ErrUndeclaredState) Error() string {
	return fmt.Sprintf("%s state '%s' is not in the declared state set", e.Role, e.State)
}

func newUndeclaredStateError(s State, role string) *ErrUndeclaredState {
	return &ErrUndeclaredState{State: s, Role: role}
}

// ErrIncompleteTransition indicates a registered transition is missing its
// from or to state.
type ErrIncompleteTransition struct {
	Name string
}

func (e *ErrIncompleteTransition) Error() string {
	return fmt.Sprintf("transition '%s' requires both from and to states", e.Name)
}

func newIncompleteTransitionError(name string) *ErrIncompleteTransition {
	return &ErrIncompleteTransition{Name: name}
}

func IsUndeclaredStateError(err error) bool {
	var e *ErrUndeclaredState
	return errors.As(err, &e)
}

func IsIncompleteTransitionError(err error) bool {
	var e *ErrIncompleteTransition
	return errors.As(err, &e)
}
