// Package redisstore implements the transition log on Redis.
//
// # Key layout
//
// All keys live under a configurable prefix (default "statelog"):
//
//	<prefix>:seq                          counter handing out entry IDs
//	<prefix>:log:<type>:<id>:<dimension>  sorted set of JSON entries, scored by ID
//
// The latest entry of a scope is the member with the highest score, and an
// absent key is a scope still in its initial state. Owner types, owner IDs
// and dimension names become key segments verbatim, so they must not contain
// ':'. Entry IDs are carried in float64 scores, exact up to 2^53.
//
// # Concurrency
//
// The store is optimistic. LatestForUpdate issues WATCH on the scope's key
// instead of taking a lock, appends are staged in memory, and the commit is
// one MULTI/EXEC block. Any append that lands on a watched key between read
// and commit aborts the EXEC, which InTx reports wrapped in
// statelog.ErrConflict for the engine's retry loop. WATCH also covers keys
// that do not exist yet, so scopes without entries are guarded the same way.
//
// # Queries
//
// The log is sharded by scope, so Find and Count require the filter to set
// owner type, owner ID and dimension and return ErrScopeRequired otherwise.
// Cross-owner queries belong to the Postgres store.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := redisstore.MustNew(client, redisstore.WithPrefix("orders"))
//	engine := statelog.MustNew(store)
package redisstore
