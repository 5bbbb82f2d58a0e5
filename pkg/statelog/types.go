package statelog

import (
	"time"

	"github.com/aw-studio/go-states/pkg/fsm"
)

// OwnerRef identifies the entity a log entry belongs to. Type is a stable
// label for the entity kind (e.g. "order"), ID its identifier rendered as a
// string, so any host key type works.
type OwnerRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r OwnerRef) String() string {
	return r.Type + "/" + r.ID
}

func (r OwnerRef) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// Entry is one row of the append-only transition log. The current state of an
// entity's dimension is the To value of its highest-ID entry; an entity with
// no entries is in the dimension's initial state. Entries are never updated
// or deleted.
type Entry struct {
	ID         int64      `json:"id"`
	OwnerType  string     `json:"owner_type"`
	OwnerID    string     `json:"owner_id"`
	Dimension  string     `json:"dimension"`
	Transition *string    `json:"transition,omitempty"` // nil for direct state sets
	From       *fsm.State `json:"from,omitempty"`
	To         fsm.State  `json:"to"`
	Reason     *string    `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Ref returns the owner reference of the entry.
func (e Entry) Ref() OwnerRef {
	return OwnerRef{Type: e.OwnerType, ID: e.OwnerID}
}

// Stateful is the capability an entity needs to participate in state
// tracking: a stable identity and the registry holding its dimension
// definitions. Implementations typically share one package-level registry
// per entity kind.
type Stateful interface {
	StateRef() OwnerRef
	StateDimensions() *fsm.Registry
}

// CurrentRowCache is an optional upgrade interface for entities that carry a
// cached copy of their latest log entry per dimension. Engine.Preload fills
// the cache for a batch of entities and Engine.State adopts it, so list views
// render current states without per-entity queries.
//
// SetCurrentRow stores the latest entry for a dimension; a nil entry records
// that the entity has no rows, i.e. sits in the initial state. CurrentRow
// reports the cached entry and whether the cache has been populated for the
// dimension at all.
type CurrentRowCache interface {
	SetCurrentRow(dimension string, e *Entry)
	CurrentRow(dimension string) (*Entry, bool)
}

// cloneEntry deep-copies the entry so cached and returned rows never alias
// caller-held pointers.
func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Transition != nil {
		v := *e.Transition
		out.Transition = &v
	}
	if e.From != nil {
		v := *e.From
		out.From = &v
	}
	if e.Reason != nil {
		v := *e.Reason
		out.Reason = &v
	}
	return &out
}

// currentState resolves the state an entry chain represents: the To of the
// latest entry, or the definition's initial state when no entry exists.
func currentState(def *fsm.Definition, latest *Entry) fsm.State {
	if latest == nil {
		return def.Initial()
	}
	return latest.To
}
