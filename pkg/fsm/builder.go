package fsm

// Builder provides a fluent API for describing one state dimension.
type Builder struct {
	initial State
	states  []State
	finals  []State
	regs    []*TransitionBuilder
}

// NewBuilder creates an empty dimension builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Initial sets the state a never-transitioned entity is in.
func (b *Builder) Initial(s State) *Builder {
	b.initial = s
	return b
}

// States declares the state values of the dimension. Repeated declarations
// are merged, first occurrence keeps its position.
func (b *Builder) States(states ...State) *Builder {
	b.states = append(b.states, states...)
	return b
}

// Final marks states as final. Final states must also be declared via States.
func (b *Builder) Final(states ...State) *Builder {
	b.finals = append(b.finals, states...)
	return b
}

// Register starts a new named transition and appends it to the dimension's
// transition list. The returned TransitionBuilder sets its endpoints.
func (b *Builder) Register(name string) *TransitionBuilder {
	tb := &TransitionBuilder{name: name}
	b.regs = append(b.regs, tb)
	return tb
}

// Transition registers a complete transition in one call.
func (b *Builder) Transition(name string, from, to State) *Builder {
	b.Register(name).From(from).To(to)
	return b
}

// Build validates the declared configuration and returns the immutable
// Definition.
func (b *Builder) Build() (*Definition, error) {
	transitions := make([]Transition, 0, len(b.regs))
	for _, tb := range b.regs {
		transitions = append(transitions, Transition{Name: tb.name, From: tb.from, To: tb.to})
	}
	return newDefinition(b.initial, b.states, b.finals, transitions)
}

// TransitionBuilder configures the endpoints of a registered transition.
type TransitionBuilder struct {
	name string
	from State
	to   State
}

// From sets the source state of the transition.
func (tb *TransitionBuilder) From(s State) *TransitionBuilder {
	tb.from = s
	return tb
}

// To sets the target state of the transition.
func (tb *TransitionBuilder) To(s State) *TransitionBuilder {
	tb.to = s
	return tb
}
