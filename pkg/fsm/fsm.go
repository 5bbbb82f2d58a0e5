package fsm

// State is a single value of a state dimension, e.g. "pending" or "paid".
type State string

func (s State) String() string {
	return string(s)
}

// Transition is a named directed edge between two states of one dimension.
type Transition struct {
	Name string
	From State
	To   State
}

// Definition is the immutable description of one state dimension: its declared
// state values, the initial state, optional final states, and the registered
// transitions. A Definition is built once (via Builder, New, or a Registry)
// and is safe for concurrent use afterwards.
type Definition struct {
	initial     State
	states      []State
	stateSet    map[State]struct{}
	finals      []State
	finalSet    map[State]struct{}
	transitions []Transition
	byFrom      map[State]map[string]Transition
	names       map[string]struct{}
	nameOrder   []string
}

// Initial returns the state a never-transitioned entity is considered to be in.
func (d *Definition) Initial() State {
	return d.initial
}

// States returns the declared state values in declaration order.
func (d *Definition) States() []State {
	out := make([]State, len(d.states))
	copy(out, d.states)
	return out
}

// HasState reports whether the state value is declared in this definition.
func (d *Definition) HasState(s State) bool {
	_, ok := d.stateSet[s]
	return ok
}

// FinalStates returns the states marked final, in declaration order.
func (d *Definition) FinalStates() []State {
	out := make([]State, len(d.finals))
	copy(out, d.finals)
	return out
}

// IsFinal reports whether the state is marked final. No transitions are
// required to leave from a final state, but none are forbidden either; the
// marker is informational.
func (d *Definition) IsFinal(s State) bool {
	_, ok := d.finalSet[s]
	return ok
}

// Transitions returns every registered transition in registration order.
func (d *Definition) Transitions() []Transition {
	out := make([]Transition, len(d.transitions))
	copy(out, d.transitions)
	return out
}

// TransitionNames returns the distinct registered transition names in
// first-registration order.
func (d *Definition) TransitionNames() []string {
	out := make([]string, len(d.nameOrder))
	copy(out, d.nameOrder)
	return out
}

// HasTransition reports whether any transition with the given name is
// registered, regardless of source state.
func (d *Definition) HasTransition(name string) bool {
	_, ok := d.names[name]
	return ok
}

// Find returns the transition with the given name leaving from the given
// state. When several registrations share (from, name) the first one wins.
func (d *Definition) Find(from State, name string) (Transition, bool) {
	t, ok := d.byFrom[from][name]
	return t, ok
}

// Can reports whether the named transition is applicable from the given state.
func (d *Definition) Can(from State, name string) bool {
	_, ok := d.byFrom[from][name]
	return ok
}

// AllowedFrom returns the distinct names of transitions applicable from the
// given state, in registration order.
func (d *Definition) AllowedFrom(from State) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range d.transitions {
		if t.From != from {
			continue
		}
		if _, ok := seen[t.Name]; ok {
			continue
		}
		seen[t.Name] = struct{}{}
		out = append(out, t.Name)
	}
	return out
}

// newDefinition validates and indexes the declared configuration. Transition
// endpoints are deliberately not checked against the state set here; an
// undeclared endpoint surfaces when the transition is executed.
func newDefinition(initial State, states, finals []State, transitions []Transition) (*Definition, error) {
	if initial == "" {
		return nil, ErrNoInitialState
	}
	if len(states) == 0 {
		return nil, ErrNoStates
	}

	d := &Definition{
		initial:  initial,
		stateSet: make(map[State]struct{}, len(states)),
		finalSet: make(map[State]struct{}, len(finals)),
		byFrom:   make(map[State]map[string]Transition),
		names:    make(map[string]struct{}),
	}

	for _, s := range states {
		if s == "" {
			return nil, ErrEmptyState
		}
		if _, ok := d.stateSet[s]; ok {
			continue
		}
		d.stateSet[s] = struct{}{}
		d.states = append(d.states, s)
	}

	if !d.HasState(initial) {
		return nil, newUndeclaredStateError(initial, "initial")
	}

	for _, s := range finals {
		if !d.HasState(s) {
			return nil, newUndeclaredStateError(s, "final")
		}
		if _, ok := d.finalSet[s]; ok {
			continue
		}
		d.finalSet[s] = struct{}{}
		d.finals = append(d.finals, s)
	}

	for _, t := range transitions {
		if t.Name == "" {
			return nil, ErrEmptyTransitionName
		}
		if t.From == "" || t.To == "" {
			return nil, newIncompleteTransitionError(t.Name)
		}

		d.transitions = append(d.transitions, t)

		if _, ok := d.names[t.Name]; !ok {
			d.names[t.Name] = struct{}{}
			d.nameOrder = append(d.nameOrder, t.Name)
		}

		if _, ok := d.byFrom[t.From]; !ok {
			d.byFrom[t.From] = make(map[string]Transition)
		}
		// First registration wins for a (from, name) pair
		if _, ok := d.byFrom[t.From][t.Name]; !ok {
			d.byFrom[t.From][t.Name] = t
		}
	}

	return d, nil
}
