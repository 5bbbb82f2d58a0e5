package statelog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aw-studio/go-states/pkg/fsm"
)

// Handle is a view over one dimension of one entity. It lazily loads the
// latest log entry on first read and caches it; every successful write
// through the handle refreshes the cache, while reads on other handles or
// processes do not. Checks like Can and Is therefore answer against the
// last state this handle observed, which is the intended cheap-read
// behavior; Transition re-validates under the store lock regardless.
type Handle struct {
	engine    *Engine
	entity    Stateful
	ref       OwnerRef
	dimension string
	def       *fsm.Definition

	mu     sync.Mutex
	cur    *Entry
	loaded bool
}

// Ref returns the owner reference the handle is scoped to.
func (h *Handle) Ref() OwnerRef {
	return h.ref
}

// Dimension returns the dimension name the handle is scoped to.
func (h *Handle) Dimension() string {
	return h.dimension
}

// Definition returns the dimension's definition.
func (h *Handle) Definition() *fsm.Definition {
	return h.def
}

// Current returns the entity's current state in this dimension: the To of
// the latest entry, or the initial state when no entry exists.
func (h *Handle) Current(ctx context.Context) (fsm.State, error) {
	latest, err := h.load(ctx)
	if err != nil {
		return "", err
	}
	return currentState(h.def, latest), nil
}

// CurrentEntry returns the latest log entry of the scope, or nil when the
// entity sits in the initial state.
func (h *Handle) CurrentEntry(ctx context.Context) (*Entry, error) {
	latest, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	return cloneEntry(latest), nil
}

// CachedEntry returns the cached latest entry without querying. It is nil
// both when the cache is unpopulated and when the entity has no entries;
// use CurrentEntry when the distinction matters.
func (h *Handle) CachedEntry() *Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return nil
	}
	return cloneEntry(h.cur)
}

// Is reports whether the current state equals s.
func (h *Handle) Is(ctx context.Context, s fsm.State) (bool, error) {
	cur, err := h.Current(ctx)
	if err != nil {
		return false, err
	}
	return cur == s, nil
}

// IsAnyOf reports whether the current state is one of the given states.
func (h *Handle) IsAnyOf(ctx context.Context, states ...fsm.State) (bool, error) {
	cur, err := h.Current(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(states, cur), nil
}

// Was reports whether the entity has ever been in state s in this
// dimension. The initial state always reports true: every entity starts
// there, entries or not.
func (h *Handle) Was(ctx context.Context, s fsm.State) (bool, error) {
	if s == h.def.Initial() {
		return true, nil
	}
	n, err := h.engine.store.Count(ctx, Filter{
		OwnerType: h.ref.Type,
		OwnerID:   h.ref.ID,
		Dimension: h.dimension,
		To:        &s,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Can reports whether the named transition applies from the current state.
// The answer is advisory: it can go stale the moment a concurrent writer
// commits. Transition re-validates under the store lock.
func (h *Handle) Can(ctx context.Context, name string) (bool, error) {
	cur, err := h.Current(ctx)
	if err != nil {
		return false, err
	}
	return h.def.Can(cur, name), nil
}

// Allowed returns the names of transitions applicable from the current
// state, in registration order.
func (h *Handle) Allowed(ctx context.Context) ([]string, error) {
	cur, err := h.Current(ctx)
	if err != nil {
		return nil, err
	}
	return h.def.AllowedFrom(cur), nil
}

// Transition applies the named transition and returns the appended entry.
// An unknown name, a rejection from the current state, an undeclared
// endpoint, or an exhausted conflict retry budget all surface as errors;
// use the package error predicates to distinguish them.
func (h *Handle) Transition(ctx context.Context, name string, opts ...TransitionOption) (*Entry, error) {
	cfg := newTransitionConfig(opts)
	saved, err := h.engine.execTransition(ctx, h.ref, h.def, h.dimension, name, cfg.reason)
	if err != nil {
		return nil, err
	}
	h.cache(saved)
	return cloneEntry(saved), nil
}

// TryTransition applies the named transition but treats a rejection as a
// no-op: it logs a warning and returns (nil, nil), leaving the log
// untouched. All other failures, including an unknown transition name,
// still return an error.
func (h *Handle) TryTransition(ctx context.Context, name string, opts ...TransitionOption) (*Entry, error) {
	entry, err := h.Transition(ctx, name, opts...)
	if err != nil {
		if IsTransitionRejectedError(err) {
			h.engine.logger.Warn("transition rejected",
				slog.String("owner", h.ref.String()),
				slog.String("dimension", h.dimension),
				slog.String("transition", name),
				slog.String("error", err.Error()))
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// Set records a direct jump to the target state without matching a
// transition; the appended entry carries a nil transition name. The target
// must be a declared state. Intended for seeding and administrative fixes.
func (h *Handle) Set(ctx context.Context, target fsm.State, opts ...TransitionOption) (*Entry, error) {
	cfg := newTransitionConfig(opts)
	saved, err := h.engine.execSet(ctx, h.ref, h.def, h.dimension, target, cfg.reason)
	if err != nil {
		return nil, err
	}
	h.cache(saved)
	return cloneEntry(saved), nil
}

// Reload drops the cached entry so the next read queries the store again.
func (h *Handle) Reload() {
	h.mu.Lock()
	h.cur = nil
	h.loaded = false
	h.mu.Unlock()
}

// History returns the scope's log entries in ascending ID order, optionally
// narrowed by history options.
func (h *Handle) History(ctx context.Context, opts ...HistoryOption) ([]Entry, error) {
	f := Filter{
		OwnerType: h.ref.Type,
		OwnerID:   h.ref.ID,
		Dimension: h.dimension,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return h.engine.store.Find(ctx, f)
}

// LockForUpdate acquires the scope's write lock inside the caller's
// transaction and returns the latest entry (nil when none exists). The lock
// is held until the transaction ends. The handle cache is left untouched,
// since the surrounding transaction may still roll back.
func (h *Handle) LockForUpdate(ctx context.Context, tx Tx) (*Entry, error) {
	return tx.LatestForUpdate(ctx, h.ref, h.dimension)
}

// load returns the cached latest entry, querying the store once on first
// use.
func (h *Handle) load(ctx context.Context) (*Entry, error) {
	h.mu.Lock()
	if h.loaded {
		cur := h.cur
		h.mu.Unlock()
		return cur, nil
	}
	h.mu.Unlock()

	latest, err := h.engine.store.Latest(ctx, h.ref, h.dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to load current state of %s '%s': %w", h.dimension, h.ref, err)
	}

	h.mu.Lock()
	if !h.loaded {
		h.cur = latest
		h.loaded = true
	}
	cur := h.cur
	h.mu.Unlock()
	return cur, nil
}

// cache records a newly committed entry, keeping the newest entry when
// writes race, and pushes it into the entity's row cache when present. Both
// caches update under the same lock so they cannot adopt different entries.
func (h *Handle) cache(e *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded && h.cur != nil && e.ID <= h.cur.ID {
		return
	}
	h.cur = cloneEntry(e)
	h.loaded = true

	if c, ok := h.entity.(CurrentRowCache); ok {
		c.SetCurrentRow(h.dimension, cloneEntry(e))
	}
}
