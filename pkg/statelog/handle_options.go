package statelog

import (
	"github.com/aw-studio/go-states/pkg/fsm"
)

// TransitionOption is a functional option for a single transition or set
type TransitionOption func(*transitionConfig)

type transitionConfig struct {
	reason *string
}

func newTransitionConfig(opts []TransitionOption) *transitionConfig {
	cfg := &transitionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithReason attaches a free-text reason to the appended entry
func WithReason(reason string) TransitionOption {
	return func(cfg *transitionConfig) {
		if reason != "" {
			cfg.reason = &reason
		}
	}
}

// HistoryOption narrows a Handle.History query
type HistoryOption func(*Filter)

// WithLimit caps the number of returned entries
func WithLimit(n int) HistoryOption {
	return func(f *Filter) {
		if n > 0 {
			f.Limit = n
		}
	}
}

// WithAfterID returns only entries with an ID greater than id, for cursor
// style paging
func WithAfterID(id int64) HistoryOption {
	return func(f *Filter) {
		if id > 0 {
			f.AfterID = id
		}
	}
}

// WithToState returns only entries that landed in the given state
func WithToState(s fsm.State) HistoryOption {
	return func(f *Filter) {
		f.To = &s
	}
}

// WithTransitionName returns only entries recorded by the named transition
func WithTransitionName(name string) HistoryOption {
	return func(f *Filter) {
		f.Transition = &name
	}
}
