package statelog_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aw-studio/go-states/pkg/fsm"
	"github.com/aw-studio/go-states/pkg/statelog"
)

// invoiceStates is the dimension registry shared by all Invoice values.
var invoiceStates = func() *fsm.Registry {
	reg := fsm.NewRegistry()
	reg.MustRegister("payment_state", func(b *fsm.Builder) {
		b.Initial("pending").States("pending", "paid", "failed").Final("failed")
		b.Register("pay").From("pending").To("paid")
		b.Register("fail").From("pending").To("failed")
	})
	return reg
}()

type Invoice struct {
	ID string
}

func (i *Invoice) StateRef() statelog.OwnerRef {
	return statelog.OwnerRef{Type: "invoice", ID: i.ID}
}

func (i *Invoice) StateDimensions() *fsm.Registry {
	return invoiceStates
}

// Example_transition demonstrates the basic read-and-transition flow.
func Example_transition() {
	// Quiet logger to avoid output noise
	engine := statelog.MustNew(statelog.NewMemoryStore(),
		statelog.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx := context.Background()
	invoice := &Invoice{ID: "inv-1"}

	payment, err := engine.State(invoice, "payment_state")
	if err != nil {
		panic(err)
	}

	// No log entries yet: the invoice sits in the initial state
	cur, _ := payment.Current(ctx)
	fmt.Println(cur)

	entry, err := payment.Transition(ctx, "pay", statelog.WithReason("card charged"))
	if err != nil {
		panic(err)
	}
	fmt.Println(entry.To)

	// Paying twice is rejected; TryTransition turns that into a no-op
	if _, err := payment.Transition(ctx, "pay"); statelog.IsTransitionRejectedError(err) {
		fmt.Println("second pay rejected")
	}

	was, _ := payment.Was(ctx, "pending")
	fmt.Println(was)

	// Output:
	// pending
	// paid
	// second pay rejected
	// true
}

// Example_events demonstrates post-commit notifications.
func Example_events() {
	router := statelog.NewRouter()
	router.OnTransition("payment_state", "pay", func(ctx context.Context, e statelog.Event) {
		fmt.Printf("fired %s\n", e.Name)
	})
	router.OnState("payment_state", "paid", func(ctx context.Context, e statelog.Event) {
		fmt.Printf("reached %s\n", e.Name)
	})

	engine := statelog.MustNew(statelog.NewMemoryStore(),
		statelog.WithRouter(router),
		statelog.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	payment, err := engine.State(&Invoice{ID: "inv-2"}, "payment_state")
	if err != nil {
		panic(err)
	}
	if _, err := payment.Transition(context.Background(), "pay"); err != nil {
		panic(err)
	}

	// Output:
	// fired pay
	// reached paid
}
