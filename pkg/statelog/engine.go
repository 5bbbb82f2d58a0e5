package statelog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aw-studio/go-states/pkg/fsm"
)

// Engine runs the transition protocol over a Store: lock the scope,
// re-validate against the just-read state, append, commit, then notify. It
// also exposes batch preloading for list views and a retry-wrapped
// transactional scope for callers that need their own multi-step updates.
type Engine struct {
	store      Store
	router     *Router
	logger     *slog.Logger
	txAttempts int
	retryDelay time.Duration
}

// New creates an engine on top of the given store.
func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	options := &engineOptions{
		router:     NewRouter(),
		logger:     slog.Default(),
		txAttempts: 5,
		retryDelay: 25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Engine{
		store:      store,
		router:     options.router,
		logger:     options.logger,
		txAttempts: options.txAttempts,
		retryDelay: options.retryDelay,
	}, nil
}

// MustNew creates an engine on top of the given store and panics on invalid
// configuration.
func MustNew(store Store, opts ...Option) *Engine {
	e, err := New(store, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create statelog engine: %v", err))
	}
	return e
}

// Store returns the underlying store, e.g. for direct Find/Count queries.
func (e *Engine) Store() Store {
	return e.store
}

// Router returns the event router handlers are registered on.
func (e *Engine) Router() *Router {
	return e.router
}

// State returns a handle on one dimension of the entity. The dimension's
// definition is built on first use by the entity's registry; a configuration
// error surfaces here. When the entity carries a populated row cache for the
// dimension the handle adopts it and starts loaded.
func (e *Engine) State(entity Stateful, dimension string) (*Handle, error) {
	if entity == nil {
		return nil, ErrNilEntity
	}
	reg := entity.StateDimensions()
	if reg == nil {
		return nil, ErrNilRegistry
	}
	def, err := reg.Definition(dimension)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		engine:    e,
		entity:    entity,
		ref:       entity.StateRef(),
		dimension: dimension,
		def:       def,
	}
	if cache, ok := entity.(CurrentRowCache); ok {
		if row, populated := cache.CurrentRow(dimension); populated {
			h.cur = cloneEntry(row)
			h.loaded = true
		}
	}
	return h, nil
}

// Preload fetches the latest entry of one dimension for a batch of entities
// with a single query per owner type, fills the row cache of every entity
// that has one, and returns the rows keyed by owner reference. Entities
// without any entry map to nil, recording that they sit in the initial state.
func (e *Engine) Preload(ctx context.Context, dimension string, entities ...Stateful) (map[OwnerRef]*Entry, error) {
	byType := make(map[string][]string)
	for _, entity := range entities {
		if entity == nil {
			return nil, ErrNilEntity
		}
		reg := entity.StateDimensions()
		if reg == nil {
			return nil, ErrNilRegistry
		}
		if _, err := reg.Definition(dimension); err != nil {
			return nil, err
		}
		ref := entity.StateRef()
		byType[ref.Type] = append(byType[ref.Type], ref.ID)
	}

	out := make(map[OwnerRef]*Entry, len(entities))
	for ownerType, ids := range byType {
		rows, err := e.store.LatestBatch(ctx, ownerType, dimension, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to preload dimension '%s' for owner type '%s': %w", dimension, ownerType, err)
		}
		for id, row := range rows {
			out[OwnerRef{Type: ownerType, ID: id}] = cloneEntry(&row)
		}
	}

	for _, entity := range entities {
		ref := entity.StateRef()
		if _, ok := out[ref]; !ok {
			out[ref] = nil
		}
		if cache, ok := entity.(CurrentRowCache); ok {
			cache.SetCurrentRow(dimension, cloneEntry(out[ref]))
		}
	}
	return out, nil
}

// InTx runs fn in a store transaction, retrying conflicted attempts with a
// linearly growing delay until the attempt budget is exhausted. Any error
// other than ErrConflict aborts immediately.
func (e *Engine) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= e.txAttempts; attempt++ {
		err = e.store.InTx(ctx, fn)
		if err == nil || !IsConflictError(err) {
			return err
		}
		if attempt == e.txAttempts {
			break
		}

		e.logger.Debug("transaction conflicted, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.txAttempts))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * e.retryDelay):
		}
	}
	return err
}

// execTransition applies one named transition to a scope. Validation against
// the current state runs inside the transaction, after the per-scope lock is
// held, so a concurrent writer cannot invalidate the decision between read
// and append.
func (e *Engine) execTransition(ctx context.Context, ref OwnerRef, def *fsm.Definition, dimension, name string, reason *string) (*Entry, error) {
	if !def.HasTransition(name) {
		return nil, NewErrUnknownTransition(dimension, name)
	}

	var saved *Entry
	err := e.InTx(ctx, func(ctx context.Context, tx Tx) error {
		latest, err := tx.LatestForUpdate(ctx, ref, dimension)
		if err != nil {
			return err
		}
		from := currentState(def, latest)

		tr, ok := def.Find(from, name)
		if !ok {
			return NewErrTransitionRejected(dimension, name, from)
		}
		if !def.HasState(tr.From) {
			return NewErrInvalidConfiguration(dimension, name, tr.From)
		}
		if !def.HasState(tr.To) {
			return NewErrInvalidConfiguration(dimension, name, tr.To)
		}

		entry, err := tx.Append(ctx, Entry{
			OwnerType:  ref.Type,
			OwnerID:    ref.ID,
			Dimension:  dimension,
			Transition: &name,
			From:       &from,
			To:         tr.To,
			Reason:     reason,
		})
		if err != nil {
			return err
		}
		saved = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("transition recorded",
		slog.String("owner", ref.String()),
		slog.String("dimension", dimension),
		slog.String("transition", name),
		slog.String("from", saved.From.String()),
		slog.String("to", saved.To.String()))

	e.publish(ctx, *saved, name)
	return saved, nil
}

// execSet records a direct state set, bypassing transition matching. The
// target must be a declared state; the entry carries a nil transition name.
func (e *Engine) execSet(ctx context.Context, ref OwnerRef, def *fsm.Definition, dimension string, target fsm.State, reason *string) (*Entry, error) {
	if !def.HasState(target) {
		return nil, NewErrInvalidConfiguration(dimension, "", target)
	}

	var saved *Entry
	err := e.InTx(ctx, func(ctx context.Context, tx Tx) error {
		latest, err := tx.LatestForUpdate(ctx, ref, dimension)
		if err != nil {
			return err
		}
		from := currentState(def, latest)

		entry, err := tx.Append(ctx, Entry{
			OwnerType: ref.Type,
			OwnerID:   ref.ID,
			Dimension: dimension,
			From:      &from,
			To:        target,
			Reason:    reason,
		})
		if err != nil {
			return err
		}
		saved = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("state set directly",
		slog.String("owner", ref.String()),
		slog.String("dimension", dimension),
		slog.String("to", target.String()))

	e.publish(ctx, *saved, "")
	return saved, nil
}

// publish fires the post-commit notifications: the transition event first
// (when a named transition fired), then the state-reached event.
func (e *Engine) publish(ctx context.Context, entry Entry, transitionName string) {
	if transitionName != "" {
		e.router.Dispatch(ctx, Event{
			Kind:      EventTransition,
			Dimension: entry.Dimension,
			Name:      transitionName,
			Entry:     entry,
		})
	}
	e.router.Dispatch(ctx, Event{
		Kind:      EventState,
		Dimension: entry.Dimension,
		Name:      string(entry.To),
		Entry:     entry,
	})
}
