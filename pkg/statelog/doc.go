// Package statelog tracks entity state as an append-only transition log.
//
// Instead of mutating a status column, every state change appends one
// immutable Entry recording the transition name, the states before and
// after, an optional reason, and a timestamp. The current state of an
// entity's dimension is simply the To value of its highest-ID entry; an
// entity with no entries sits in the dimension's initial state, which is
// never materialized as a row. The full history comes for free.
//
// Dimensions are described by fsm.Definition values (see the fsm package)
// and entities expose them through the small Stateful interface:
//
//	var orderStates = fsm.NewRegistry()
//
//	func init() {
//	    orderStates.MustRegister("payment_state", func(b *fsm.Builder) {
//	        b.Initial(Pending).States(Pending, Paid, Failed)
//	        b.Register("pay").From(Pending).To(Paid)
//	        b.Register("fail").From(Pending).To(Failed)
//	    })
//	}
//
//	type Order struct{ ID string }
//
//	func (o *Order) StateRef() statelog.OwnerRef {
//	    return statelog.OwnerRef{Type: "order", ID: o.ID}
//	}
//
//	func (o *Order) StateDimensions() *fsm.Registry { return orderStates }
//
// An Engine binds definitions to a Store and hands out per-dimension
// handles:
//
//	engine := statelog.MustNew(statelog.NewMemoryStore())
//
//	payment, err := engine.State(order, "payment_state")
//	if err != nil { ... }
//
//	entry, err := payment.Transition(ctx, "pay", statelog.WithReason("card charged"))
//
// # Transition protocol
//
// A transition validates twice. The cheap pre-check rejects names the
// dimension never registered. The decisive check runs inside a store
// transaction after the per-scope lock is acquired: the latest entry is
// re-read, the transition is matched against that just-read state, and only
// then is the new entry appended. Two writers racing the same scope
// serialize at the lock; the loser re-validates against the winner's
// committed state and is rejected instead of double-applying.
//
// Store adapters report lost serialization races wrapped in ErrConflict and
// the engine retries them transparently (default 5 attempts with a linearly
// growing delay) before surfacing the error.
//
// # Failure taxonomy
//
// Four failures are worth telling apart, and each has a predicate:
//
//	IsUnknownTransitionError     name never registered; always an error
//	IsTransitionRejectedError    registered but not applicable right now
//	IsInvalidConfigurationError  transition touches an undeclared state
//	IsConflictError              concurrency retry budget exhausted
//
// TryTransition downgrades only the rejection case to a logged warning and
// a (nil, nil) return, for flows where "already moved on" is expected.
//
// # Events
//
// After an entry commits, the engine dispatches two synchronous
// notifications through its Router: first the named transition that fired,
// then the state that was reached. Handlers are registered explicitly or
// scanned once from an observer's method set (see Router.RegisterObserver).
// Events fire only after commit, so handlers never observe rolled-back
// transitions.
//
// # Batch loading
//
// Engine.Preload fetches the latest entry for a whole slice of entities in
// one query per owner type and fills the row caches of entities
// implementing CurrentRowCache, so list views render current states without
// N+1 queries.
//
// # Storage
//
// Store is a small interface; this package ships MemoryStore, and the
// pgstore, redisstore, and mongostore packages provide Postgres, Redis, and
// MongoDB adapters with the matching conflict semantics.
package statelog
