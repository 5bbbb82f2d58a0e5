package statelog

import (
	"context"
)

// Store persists the append-only transition log. Implementations assign the
// monotonically increasing ID and the CreatedAt timestamp on append; within
// one (owner, dimension) scope committed IDs strictly increase, which is what
// makes "highest ID" mean "latest".
//
// Latest and LatestBatch return nil / omit the owner when no entry exists,
// without an error: an empty scope is the normal representation of the
// initial state, not a lookup failure.
type Store interface {
	// Append inserts one entry and returns it with ID and CreatedAt set.
	Append(ctx context.Context, e Entry) (Entry, error)

	// Latest returns the highest-ID entry of the scope, or nil.
	Latest(ctx context.Context, ref OwnerRef, dimension string) (*Entry, error)

	// LatestBatch returns the latest entry per owner ID for one owner type
	// and dimension. Owners without entries are absent from the map.
	LatestBatch(ctx context.Context, ownerType, dimension string, ownerIDs []string) (map[string]Entry, error)

	// Find returns entries matching the filter in ascending ID order.
	Find(ctx context.Context, f Filter) ([]Entry, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, f Filter) (int64, error)

	// InTx runs fn inside one transaction. A rolled-back serialization race
	// is reported wrapped in ErrConflict so the engine can retry.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional slice of a Store used by the transition protocol.
// LatestForUpdate acquires the per-scope write lock (or the adapter's
// equivalent conflict guard) before reading, covering the zero-entry case,
// then returns the latest entry or nil. The lock is held until InTx returns.
type Tx interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	LatestForUpdate(ctx context.Context, ref OwnerRef, dimension string) (*Entry, error)
}
