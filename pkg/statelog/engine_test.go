package statelog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aw-studio/go-states/pkg/fsm"
	"github.com/aw-studio/go-states/pkg/statelog"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()
		_, err := statelog.New(nil)
		require.ErrorIs(t, err, statelog.ErrNilStore)
	})

	t.Run("must new panics", func(t *testing.T) {
		t.Parallel()
		require.Panics(t, func() {
			statelog.MustNew(nil)
		})
	})
}

func TestEngineState(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)
	reg := newOrderRegistry()

	t.Run("nil entity", func(t *testing.T) {
		t.Parallel()
		_, err := engine.State(nil, dimPayment)
		require.ErrorIs(t, err, statelog.ErrNilEntity)
	})

	t.Run("unknown dimension", func(t *testing.T) {
		t.Parallel()
		_, err := engine.State(NewOrder("o-1", reg), "refund_state")
		require.ErrorIs(t, err, fsm.ErrUnknownDimension)
	})

	t.Run("broken dimension surfaces lazily", func(t *testing.T) {
		t.Parallel()
		broken := fsm.NewRegistry()
		// Registration succeeds; the invalid config is only detected on use
		require.NoError(t, broken.Register("payment_state", func(b *fsm.Builder) {
			b.States(Pending)
		}))

		_, err := engine.State(NewOrder("o-2", broken), dimPayment)
		require.ErrorIs(t, err, fsm.ErrNoInitialState)
	})
}

func TestTransitionProtocol(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first transition starts from initial", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		entry, err := payment.Transition(ctx, "pay")
		require.NoError(t, err)

		require.NotNil(t, entry.From)
		assert.Equal(t, Pending, *entry.From)
		assert.Equal(t, Paid, entry.To)
		require.NotNil(t, entry.Transition)
		assert.Equal(t, "pay", *entry.Transition)
		assert.Nil(t, entry.Reason)
		assert.Positive(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
		assert.Equal(t, "order", entry.OwnerType)
		assert.Equal(t, order.ID, entry.OwnerID)
		assert.Equal(t, dimPayment, entry.Dimension)
	})

	t.Run("unknown transition is never suppressed", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		_, err = payment.Transition(ctx, "refund")
		require.True(t, statelog.IsUnknownTransitionError(err))

		_, err = payment.TryTransition(ctx, "refund")
		require.True(t, statelog.IsUnknownTransitionError(err))

		history, err := payment.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("repeated transition is rejected without a row", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		_, err = payment.Transition(ctx, "pay")
		require.NoError(t, err)

		_, err = payment.Transition(ctx, "pay")
		require.True(t, statelog.IsTransitionRejectedError(err))

		history, err := payment.History(ctx)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("try transition downgrades rejection only", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		entry, err := payment.TryTransition(ctx, "pay")
		require.NoError(t, err)
		require.NotNil(t, entry)

		entry, err = payment.TryTransition(ctx, "pay")
		require.NoError(t, err)
		assert.Nil(t, entry)

		history, err := payment.History(ctx)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("reason is recorded", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		entry, err := payment.Transition(ctx, "fail", statelog.WithReason("card declined"))
		require.NoError(t, err)
		require.NotNil(t, entry.Reason)
		assert.Equal(t, "card declined", *entry.Reason)
	})

	t.Run("undeclared endpoint surfaces at execution", func(t *testing.T) {
		t.Parallel()
		reg := fsm.NewRegistry()
		reg.MustRegister("doc_state", func(b *fsm.Builder) {
			b.Initial(fsm.State("draft")).States(fsm.State("draft"))
			b.Register("archive").From(fsm.State("draft")).To(fsm.State("archived"))
		})

		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), reg)

		doc, err := engine.State(order, "doc_state")
		require.NoError(t, err)

		// Lookup still works; only execution detects the config error
		can, err := doc.Can(ctx, "archive")
		require.NoError(t, err)
		assert.True(t, can)

		_, err = doc.Transition(ctx, "archive")
		require.True(t, statelog.IsInvalidConfigurationError(err))

		history, err := doc.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("dimensions are independent", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)
		shipping, err := engine.State(order, dimShipping)
		require.NoError(t, err)

		_, err = payment.Transition(ctx, "pay")
		require.NoError(t, err)

		cur, err := shipping.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, Unshipped, cur)

		_, err = shipping.Transition(ctx, "ship")
		require.NoError(t, err)

		cur, err = payment.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, Paid, cur)
	})
}

func TestDirectSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("set bypasses transition matching", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		// No registered transition leads from pending to failed via "paid",
		// a direct set does not care
		entry, err := payment.Set(ctx, Failed, statelog.WithReason("imported"))
		require.NoError(t, err)

		assert.Nil(t, entry.Transition)
		require.NotNil(t, entry.From)
		assert.Equal(t, Pending, *entry.From)
		assert.Equal(t, Failed, entry.To)

		cur, err := payment.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, Failed, cur)
	})

	t.Run("set requires a declared state", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		_, err = payment.Set(ctx, fsm.State("refunded"))
		require.True(t, statelog.IsInvalidConfigurationError(err))
	})

	t.Run("set back to initial materializes a row", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		order := NewOrder(uuid.NewString(), newOrderRegistry())

		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		_, err = payment.Transition(ctx, "pay")
		require.NoError(t, err)
		_, err = payment.Set(ctx, Pending, statelog.WithReason("manual reset"))
		require.NoError(t, err)

		cur, err := payment.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, Pending, cur)

		history, err := payment.History(ctx)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})
}

func TestConcurrentTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	engine := newTestEngine(t)
	reg := newOrderRegistry()
	orderID := uuid.NewString()

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, rejected int

	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payment, err := engine.State(NewOrder(orderID, reg), dimPayment)
			if err != nil {
				t.Errorf("failed to open handle: %v", err)
				return
			}
			_, err = payment.Transition(ctx, "pay")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case statelog.IsTransitionRejectedError(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one writer should win")
	assert.Equal(t, writers-1, rejected)

	payment, err := engine.State(NewOrder(orderID, reg), dimPayment)
	require.NoError(t, err)
	history, err := payment.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestConflictRetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("recovers within budget", func(t *testing.T) {
		t.Parallel()
		store := newConflictStore(2)
		engine := statelog.MustNew(store,
			statelog.WithLogger(testLogger()),
			statelog.WithTxAttempts(3),
			statelog.WithRetryDelay(1))

		order := NewOrder(uuid.NewString(), newOrderRegistry())
		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		entry, err := payment.Transition(ctx, "pay")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, 3, store.attemptCount())
	})

	t.Run("budget exhaustion surfaces conflict", func(t *testing.T) {
		t.Parallel()
		store := newConflictStore(10)
		engine := statelog.MustNew(store,
			statelog.WithLogger(testLogger()),
			statelog.WithTxAttempts(3),
			statelog.WithRetryDelay(1))

		order := NewOrder(uuid.NewString(), newOrderRegistry())
		payment, err := engine.State(order, dimPayment)
		require.NoError(t, err)

		_, err = payment.Transition(ctx, "pay")
		require.True(t, statelog.IsConflictError(err))
		assert.Equal(t, 3, store.attemptCount())

		history, err := payment.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestPreload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("one batch query fills caches", func(t *testing.T) {
		t.Parallel()
		store := newCountingStore(statelog.NewMemoryStore())
		engine := statelog.MustNew(store, statelog.WithLogger(testLogger()))
		reg := newOrderRegistry()

		paid := NewOrder("o-1", reg)
		failed := NewOrder("o-2", reg)
		fresh := NewOrder("o-3", reg)

		for order, name := range map[*Order]string{paid: "pay", failed: "fail"} {
			payment, err := engine.State(order, dimPayment)
			require.NoError(t, err)
			_, err = payment.Transition(ctx, name)
			require.NoError(t, err)
		}

		rows, err := engine.Preload(ctx, dimPayment, paid, failed, fresh)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		require.NotNil(t, rows[paid.StateRef()])
		assert.Equal(t, Paid, rows[paid.StateRef()].To)
		require.NotNil(t, rows[failed.StateRef()])
		assert.Equal(t, Failed, rows[failed.StateRef()].To)
		assert.Nil(t, rows[fresh.StateRef()], "entity without rows maps to nil")

		_, batchCalls := store.counts()
		assert.Equal(t, 1, batchCalls)

		// Handles adopt the preloaded cache and answer without queries
		latestBefore, _ := store.counts()
		for order, want := range map[*Order]fsm.State{paid: Paid, failed: Failed, fresh: Pending} {
			payment, err := engine.State(order, dimPayment)
			require.NoError(t, err)
			cur, err := payment.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, cur)
		}
		latestAfter, _ := store.counts()
		assert.Equal(t, latestBefore, latestAfter, "preloaded handles must not query Latest")
	})

	t.Run("entities without cache still get rows back", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		reg := newOrderRegistry()

		bare := &bareOrder{ID: "b-1", reg: reg}
		rows, err := engine.Preload(ctx, dimPayment, bare)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[bare.StateRef()])
	})

	t.Run("unknown dimension fails the batch", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t)
		_, err := engine.Preload(ctx, "refund_state", NewOrder("o-1", newOrderRegistry()))
		require.ErrorIs(t, err, fsm.ErrUnknownDimension)
	})
}

func TestPaymentScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	engine := newTestEngine(t)
	order := NewOrder(uuid.NewString(), newOrderRegistry())

	payment, err := engine.State(order, dimPayment)
	require.NoError(t, err)

	// Fresh order: virtual initial state, no rows
	cur, err := payment.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, Pending, cur)

	entry, err := payment.CurrentEntry(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)

	can, err := payment.Can(ctx, "pay")
	require.NoError(t, err)
	assert.True(t, can)

	allowed, err := payment.Allowed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay", "fail"}, allowed)

	// Pay
	_, err = payment.Transition(ctx, "pay")
	require.NoError(t, err)

	is, err := payment.Is(ctx, Paid)
	require.NoError(t, err)
	assert.True(t, is)

	can, err = payment.Can(ctx, "pay")
	require.NoError(t, err)
	assert.False(t, can)

	// Fail after payment, e.g. a chargeback
	_, err = payment.Transition(ctx, "fail", statelog.WithReason("chargeback"))
	require.NoError(t, err)

	is, err = payment.Is(ctx, Failed)
	require.NoError(t, err)
	assert.True(t, is)

	// Historical membership: every state passed through reports true,
	// including the never-materialized initial state
	for _, s := range []fsm.State{Pending, Paid, Failed} {
		was, err := payment.Was(ctx, s)
		require.NoError(t, err)
		assert.True(t, was, "expected was(%s) to be true", s)
	}

	history, err := payment.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, Paid, history[0].To)
	assert.Equal(t, Failed, history[1].To)
	assert.Less(t, history[0].ID, history[1].ID)

	// Terminal state: nothing is allowed anymore
	allowed, err = payment.Allowed(ctx)
	require.NoError(t, err)
	assert.Empty(t, allowed)
	assert.True(t, payment.Definition().IsFinal(Failed))
}
