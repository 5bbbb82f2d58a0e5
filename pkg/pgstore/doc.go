// Package pgstore implements the transition log store on PostgreSQL.
//
// Entries live in a single append-only table (state_transitions by default)
// whose bigserial primary key orders them; the latest entry of an
// (owner, dimension) scope is the one with the highest id. Migrate provisions
// the table and its indexes from embedded goose migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pgstore.Migrate(ctx, pool, slog.Default()); err != nil {
//		return err
//	}
//	engine := statelog.MustNew(pgstore.MustNew(pool))
//
// # Locking
//
// The transition protocol serializes writers per scope with a transaction
// scoped advisory lock keyed on (table, owner type, owner id, dimension).
// A row lock alone cannot cover the first transition of a scope, because the
// initial state is virtual and has no row yet. Readers never take locks.
//
// Serialization failures, deadlocks, and unique violations surface from InTx
// wrapped in statelog.ErrConflict, which the engine retries.
//
// # Set predicates
//
// Beyond the statelog.Store contract, the package compiles set-membership
// predicates over entity collections into SQL fragments: "all orders whose
// payment is currently paid", "never shipped", and similar. Expressions
// combine with And, Or, and Not and splice into any host query:
//
//	expr := pgstore.And(
//		pgstore.CurrentIs("payment_state", paymentDef, Paid),
//		pgstore.Ever("shipping_state", shippingDef, Returned),
//	)
//	frag, args, err := store.Compile(expr, pgstore.Owner{Type: "order", IDExpr: "orders.id::text"})
//	// SELECT ... FROM orders WHERE tenant_id = $1 AND <frag>
//
// Owners with no entries for a dimension count as being in its initial
// state, matching how the engine reads current state everywhere else.
package pgstore
