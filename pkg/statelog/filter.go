package statelog

import (
	"github.com/aw-studio/go-states/pkg/fsm"
)

// Filter narrows Find and Count to a subset of log entries. Zero-valued
// fields are ignored; set fields combine with AND. AfterID is an exclusive
// lower bound on the entry ID, Limit caps the result size of Find (Count
// ignores it).
type Filter struct {
	OwnerType  string
	OwnerID    string
	Dimension  string
	Transition *string
	From       *fsm.State
	To         *fsm.State
	AfterID    int64
	Limit      int
}

// Match reports whether the entry satisfies every set constraint of the
// filter. Limit is result shaping, not a row predicate, so it is not
// considered here.
func (f Filter) Match(e Entry) bool {
	if f.OwnerType != "" && e.OwnerType != f.OwnerType {
		return false
	}
	if f.OwnerID != "" && e.OwnerID != f.OwnerID {
		return false
	}
	if f.Dimension != "" && e.Dimension != f.Dimension {
		return false
	}
	if f.Transition != nil {
		if e.Transition == nil || *e.Transition != *f.Transition {
			return false
		}
	}
	if f.From != nil {
		if e.From == nil || *e.From != *f.From {
			return false
		}
	}
	if f.To != nil && e.To != *f.To {
		return false
	}
	if f.AfterID > 0 && e.ID <= f.AfterID {
		return false
	}
	return true
}
