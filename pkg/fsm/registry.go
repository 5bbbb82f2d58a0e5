package fsm

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds dimension configurations and builds each Definition exactly
// once, on first use. Both the built Definition and a build failure are
// memoized, so repeated lookups behave identically.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once   sync.Once
	config func(*Builder)
	def    *Definition
	err    error
}

// NewRegistry creates an empty dimension registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// Register stores the configuration callback for a dimension. The callback is
// not invoked here; the Definition is built lazily on the first Definition
// call. Registering the same dimension twice is an error.
func (r *Registry) Register(dimension string, config func(*Builder)) error {
	if dimension == "" {
		return ErrEmptyDimension
	}
	if config == nil {
		return fmt.Errorf("%w: dimension '%s'", ErrNilConfig, dimension)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[dimension]; ok {
		return fmt.Errorf("%w: '%s'", ErrAlreadyRegistered, dimension)
	}
	r.entries[dimension] = &registryEntry{config: config}
	return nil
}

// MustRegister stores the configuration callback for a dimension and panics
// on registration failure, for package-level registries built at init time.
func (r *Registry) MustRegister(dimension string, config func(*Builder)) {
	if err := r.Register(dimension, config); err != nil {
		panic(fmt.Sprintf("failed to register dimension: %v", err))
	}
}

// Definition returns the built Definition for a dimension, building it on
// first use. A configuration error is returned consistently on every call.
func (r *Registry) Definition(dimension string) (*Definition, error) {
	r.mu.RLock()
	entry, ok := r.entries[dimension]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownDimension, dimension)
	}

	entry.once.Do(func() {
		b := NewBuilder()
		entry.config(b)
		entry.def, entry.err = b.Build()
	})

	if entry.err != nil {
		return nil, fmt.Errorf("dimension '%s': %w", dimension, entry.err)
	}
	return entry.def, nil
}

// Dimensions returns the registered dimension names in lexical order.
func (r *Registry) Dimensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
