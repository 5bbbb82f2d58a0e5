package fsm

import (
	"fmt"
)

// Option configures a definition during construction.
type Option func(*Builder)

// New creates a definition with the given initial state and options. The
// initial state is declared automatically.
func New(initial State, opts ...Option) (*Definition, error) {
	b := NewBuilder().Initial(initial).States(initial)
	for _, opt := range opts {
		opt(b)
	}
	return b.Build()
}

// MustNew creates a definition with the given initial state and options,
// panicking if the configuration is invalid. Meant for package-level
// definitions where a bad configuration should stop the process.
func MustNew(initial State, opts ...Option) *Definition {
	d, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to build state definition: %v", err))
	}
	return d
}

// WithStates declares state values of the dimension.
func WithStates(states ...State) Option {
	return func(b *Builder) {
		b.States(states...)
	}
}

// WithFinal marks states as final.
func WithFinal(states ...State) Option {
	return func(b *Builder) {
		b.Final(states...)
	}
}

// WithTransition registers a single named transition.
func WithTransition(name string, from, to State) Option {
	return func(b *Builder) {
		b.Transition(name, from, to)
	}
}

// WithTransitions registers multiple transitions at once.
func WithTransitions(transitions ...Transition) Option {
	return func(b *Builder) {
		for _, t := range transitions {
			b.Transition(t.Name, t.From, t.To)
		}
	}
}
