package statelog_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aw-studio/go-states/pkg/fsm"
	"github.com/aw-studio/go-states/pkg/statelog"
)

const (
	dimPayment  = "payment_state"
	dimShipping = "shipping_state"
)

const (
	Pending = fsm.State("pending")
	Paid    = fsm.State("paid")
	Failed  = fsm.State("failed")

	Unshipped = fsm.State("unshipped")
	Shipped   = fsm.State("shipped")
)

// newOrderRegistry builds a fresh registry per test so broken dimensions in
// one test cannot leak into another.
func newOrderRegistry() *fsm.Registry {
	reg := fsm.NewRegistry()
	reg.MustRegister(dimPayment, func(b *fsm.Builder) {
		b.Initial(Pending).States(Pending, Paid, Failed).Final(Failed)
		b.Register("pay").From(Pending).To(Paid)
		b.Register("fail").From(Pending).To(Failed)
		b.Register("fail").From(Paid).To(Failed)
	})
	reg.MustRegister(dimShipping, func(b *fsm.Builder) {
		b.Initial(Unshipped).States(Unshipped, Shipped)
		b.Register("ship").From(Unshipped).To(Shipped)
	})
	return reg
}

// Order is the standard test entity: Stateful plus a current-row cache.
type Order struct {
	ID  string
	reg *fsm.Registry

	mu   sync.Mutex
	rows map[string]*statelog.Entry
	have map[string]bool
}

func NewOrder(id string, reg *fsm.Registry) *Order {
	return &Order{
		ID:   id,
		reg:  reg,
		rows: make(map[string]*statelog.Entry),
		have: make(map[string]bool),
	}
}

func (o *Order) StateRef() statelog.OwnerRef {
	return statelog.OwnerRef{Type: "order", ID: o.ID}
}

func (o *Order) StateDimensions() *fsm.Registry {
	return o.reg
}

func (o *Order) SetCurrentRow(dimension string, e *statelog.Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rows[dimension] = e
	o.have[dimension] = true
}

func (o *Order) CurrentRow(dimension string) (*statelog.Entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rows[dimension], o.have[dimension]
}

// bareOrder implements Stateful without the row cache upgrade.
type bareOrder struct {
	ID  string
	reg *fsm.Registry
}

func (o *bareOrder) StateRef() statelog.OwnerRef {
	return statelog.OwnerRef{Type: "order", ID: o.ID}
}

func (o *bareOrder) StateDimensions() *fsm.Registry {
	return o.reg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...statelog.Option) *statelog.Engine {
	t.Helper()
	opts = append([]statelog.Option{statelog.WithLogger(testLogger())}, opts...)
	engine, err := statelog.New(statelog.NewMemoryStore(), opts...)
	require.NoError(t, err)
	return engine
}

// countingStore counts read calls so tests can prove cache adoption avoids
// queries.
type countingStore struct {
	statelog.Store
	mu          sync.Mutex
	latestCalls int
	batchCalls  int
}

func newCountingStore(inner statelog.Store) *countingStore {
	return &countingStore{Store: inner}
}

func (s *countingStore) Latest(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	s.mu.Lock()
	s.latestCalls++
	s.mu.Unlock()
	return s.Store.Latest(ctx, ref, dimension)
}

func (s *countingStore) LatestBatch(ctx context.Context, ownerType, dimension string, ownerIDs []string) (map[string]statelog.Entry, error) {
	s.mu.Lock()
	s.batchCalls++
	s.mu.Unlock()
	return s.Store.LatestBatch(ctx, ownerType, dimension, ownerIDs)
}

func (s *countingStore) counts() (latest, batch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestCalls, s.batchCalls
}

// conflictStore fails the first n transactions with ErrConflict to exercise
// the engine's retry loop.
type conflictStore struct {
	*statelog.MemoryStore
	mu       sync.Mutex
	failures int
	attempts int
}

func newConflictStore(failures int) *conflictStore {
	return &conflictStore{MemoryStore: statelog.NewMemoryStore(), failures: failures}
}

func (s *conflictStore) InTx(ctx context.Context, fn func(ctx context.Context, tx statelog.Tx) error) error {
	s.mu.Lock()
	s.attempts++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return fmt.Errorf("simulated serialization failure: %w", statelog.ErrConflict)
	}
	return s.MemoryStore.InTx(ctx, fn)
}

func (s *conflictStore) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
