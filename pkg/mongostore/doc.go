// Package mongostore implements the transition log on MongoDB.
//
// # Document layout
//
// Entries live in one collection (default "state_transitions") with their
// owner type, owner ID and dimension denormalized onto every document, so
// cross-owner queries work the same way they do on Postgres. Entry IDs are
// scope-local: each (owner, dimension) scope counts 1, 2, 3 on its own,
// which keeps ordering guarantees per scope without a global sequence.
//
// # Concurrency
//
// A new entry's ID is the scope's latest ID plus one, and the scope index
// created by EnsureIndexes is unique. Two writers that read the same latest
// entry therefore compute the same next ID and one of them loses at insert
// time with a duplicate key error. Plain Append absorbs the race by
// re-reading and retrying; InTx reports it wrapped in statelog.ErrConflict
// so the engine retries the whole transaction. InTx runs on driver
// transactions and needs a replica set deployment (a single-node replica
// set is enough).
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "app")
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := mongostore.MustNew(db)
//	if err := store.EnsureIndexes(ctx); err != nil {
//		log.Fatal(err)
//	}
//	engine := statelog.MustNew(store)
package mongostore
