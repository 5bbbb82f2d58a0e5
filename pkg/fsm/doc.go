// Package fsm describes state dimensions: named finite-state machines with a
// designated initial state and named transitions between declared state
// values.
//
// A Definition is pure configuration. It answers questions such as "which
// transitions apply from this state" and "where does transition X lead from
// state Y", but it holds no current state and performs no persistence. The
// statelog package layers an append-only transition log on top of
// definitions; fsm stays usable on its own for in-memory validation.
//
// # Building definitions
//
// The functional options constructor covers most cases:
//
//	const (
//	    Pending = fsm.State("pending")
//	    Paid    = fsm.State("paid")
//	    Failed  = fsm.State("failed")
//	)
//
//	def := fsm.MustNew(Pending,
//	    fsm.WithStates(Paid, Failed),
//	    fsm.WithFinal(Failed),
//	    fsm.WithTransition("pay", Pending, Paid),
//	    fsm.WithTransition("fail", Pending, Failed),
//	)
//
// The fluent Builder offers the same configuration in registration style:
//
//	b := fsm.NewBuilder().Initial(Pending).States(Pending, Paid, Failed)
//	b.Register("pay").From(Pending).To(Paid)
//	b.Register("fail").From(Pending).To(Failed)
//	def, err := b.Build()
//
// Definitions can also be loaded from YAML documents via ParseYAML.
//
// # Registry
//
// A Registry maps dimension names to configurations and builds each
// Definition exactly once, on first use. Registration is cheap; validation
// runs lazily and its outcome (success or failure) is memoized:
//
//	reg := fsm.NewRegistry()
//	reg.MustRegister("payment_state", func(b *fsm.Builder) {
//	    b.Initial(Pending).States(Pending, Paid, Failed)
//	    b.Register("pay").From(Pending).To(Paid)
//	})
//
//	def, err := reg.Definition("payment_state")
//
// # Validation
//
// Build checks that an initial state is set, that at least one state is
// declared, that the initial and final states are members of the declared
// set, and that every registered transition has a name and both endpoints.
// Transition endpoints are not checked against the declared state set at
// build time; an undeclared endpoint surfaces when the transition executes.
//
// Lookup helpers never mutate the Definition, so a built Definition is safe
// for concurrent use without synchronization.
package fsm
