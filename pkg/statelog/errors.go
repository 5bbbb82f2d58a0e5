package statelog

import (
	"errors"
	"fmt"

	"github.com/aw-studio/go-states/pkg/fsm"
)

var (
	ErrNilStore          = errors.New("store cannot be nil")
	ErrNilEntity         = errors.New("entity cannot be nil")
	ErrNilRegistry       = errors.New("entity returned a nil dimension registry")
	ErrNilObserver       = errors.New("observer cannot be nil")
	ErrNilDefinition     = errors.New("definition cannot be nil")
	ErrNoObserverMethods = errors.New("observer has no matching methods")

	// ErrConflict marks a transaction that lost a concurrency race. Store
	// adapters wrap their native serialization failures with it; the engine
	// retries conflicted transactions up to its configured attempt budget
	// before surfacing the error.
	ErrConflict = errors.New("concurrent transition conflict")
)

// ErrUnknownTransition indicates the requested transition name is not
// registered for the dimension at all. Unlike a rejection this is always a
// caller bug and is never suppressed.
type ErrUnknownTransition struct {
	Dimension string
	Name      string
}

func (e *ErrUnknownTransition) Error() string {
	return fmt.Sprintf("unknown transition '%s' for dimension '%s'", e.Name, e.Dimension)
}

func NewErrUnknownTransition(dimension, name string) *ErrUnknownTransition {
	return &ErrUnknownTransition{Dimension: dimension, Name: name}
}

// ErrTransitionRejected indicates the transition is registered but not
// applicable from the entity's current state.
type ErrTransitionRejected struct {
	Dimension string
	Name      string
	From      fsm.State
}

func (e *ErrTransitionRejected) Error() string {
	return fmt.Sprintf("transition '%s' is not allowed from state '%s' of dimension '%s'", e.Name, e.From, e.Dimension)
}

func NewErrTransitionRejected(dimension, name string, from fsm.State) *ErrTransitionRejected {
	return &ErrTransitionRejected{Dimension: dimension, Name: name, From: from}
}

// ErrInvalidConfiguration indicates a transition references a state missing
// from the dimension's declared value set. Endpoint membership is not checked
// at registration, so the mismatch surfaces here, when the transition
// executes.
type ErrInvalidConfiguration struct {
	Dimension  string
	Transition string
	State      fsm.State
}

func (e *ErrInvalidConfiguration) Error() string {
	if e.Transition == "" {
		return fmt.Sprintf("state '%s' is not declared for dimension '%s'", e.State, e.Dimension)
	}
	return fmt.Sprintf("transition '%s' references state '%s' not declared for dimension '%s'", e.Transition, e.State, e.Dimension)
}

func NewErrInvalidConfiguration(dimension, transition string, state fsm.State) *ErrInvalidConfiguration {
	return &ErrInvalidConfiguration{Dimension: dimension, Transition: transition, State: state}
}

func IsUnknownTransitionError(err error) bool {
	var e *ErrUnknownTransition
	return errors.As(err, &e)
}

func IsTransitionRejectedError(err error) bool {
	var e *ErrTransitionRejected
	return errors.As(err, &e)
}

func IsInvalidConfigurationError(err error) bool {
	var e *ErrInvalidConfiguration
	return errors.As(err, &e)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}
