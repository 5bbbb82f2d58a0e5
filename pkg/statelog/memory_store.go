package statelog

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation for tests and
// single-process use. Entries are kept in one committed slice in ascending
// ID order; transactions stage their appends and commit atomically.
//
// Transactions are fully serialized by a single mutex, which makes the
// per-scope lock of LatestForUpdate implicit and means InTx never reports
// ErrConflict.
type MemoryStore struct {
	txMu    sync.Mutex   // serializes transactions and appends
	mu      sync.RWMutex // guards entries for readers
	entries []Entry
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, e Entry) (Entry, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	entry := s.stamp(e)
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return *cloneEntry(&entry), nil
}

func (s *MemoryStore) Latest(ctx context.Context, ref OwnerRef, dimension string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.OwnerType == ref.Type && e.OwnerID == ref.ID && e.Dimension == dimension {
			return cloneEntry(&e), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) LatestBatch(ctx context.Context, ownerType, dimension string, ownerIDs []string) (map[string]Entry, error) {
	want := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		want[id] = struct{}{}
	}

	out := make(map[string]Entry, len(want))
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Backward scan so the first hit per owner is its latest entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < len(want); i-- {
		e := s.entries[i]
		if e.OwnerType != ownerType || e.Dimension != dimension {
			continue
		}
		if _, ok := want[e.OwnerID]; !ok {
			continue
		}
		if _, ok := out[e.OwnerID]; ok {
			continue
		}
		out[e.OwnerID] = *cloneEntry(&e)
	}
	return out, nil
}

func (s *MemoryStore) Find(ctx context.Context, f Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if !f.Match(e) {
			continue
		}
		out = append(out, *cloneEntry(&e))
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if f.Match(e) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if len(tx.staged) > 0 {
		s.mu.Lock()
		s.entries = append(s.entries, tx.staged...)
		s.mu.Unlock()
	}
	return nil
}

// stamp assigns the next ID and timestamp and detaches the entry from
// caller-held pointers. Callers must hold txMu.
func (s *MemoryStore) stamp(e Entry) Entry {
	s.nextID++
	entry := *cloneEntry(&e)
	entry.ID = s.nextID
	entry.CreatedAt = time.Now().UTC()
	return entry
}

type memoryTx struct {
	store  *MemoryStore
	staged []Entry
}

func (t *memoryTx) Append(ctx context.Context, e Entry) (Entry, error) {
	entry := t.store.stamp(e)
	t.staged = append(t.staged, entry)
	return *cloneEntry(&entry), nil
}

func (t *memoryTx) LatestForUpdate(ctx context.Context, ref OwnerRef, dimension string) (*Entry, error) {
	for i := len(t.staged) - 1; i >= 0; i-- {
		e := t.staged[i]
		if e.OwnerType == ref.Type && e.OwnerID == ref.ID && e.Dimension == dimension {
			return cloneEntry(&e), nil
		}
	}
	return t.store.Latest(ctx, ref, dimension)
}
