package statelog

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/aw-studio/go-states/pkg/fsm"
)

// EventKind distinguishes the two notifications emitted after a committed
// log entry: the named transition that fired and the state that was reached.
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventState      EventKind = "state"
)

// Event carries one committed log entry to its handlers. Name holds the
// transition name for EventTransition and the reached state value for
// EventState.
type Event struct {
	Kind      EventKind
	Dimension string
	Name      string
	Entry     Entry
}

// Handler processes one event. Handlers run synchronously after the entry is
// committed, in registration order.
type Handler func(ctx context.Context, event Event)

type routeKey struct {
	kind      EventKind
	dimension string
	name      string
}

// Router maps (kind, dimension, name) to handlers with a dispatch table that
// is built at registration, so firing an event is a single map lookup.
//
// Not thread-safe for registration: register all handlers during application
// startup, before the engine starts recording transitions. Dispatch only
// reads the table and is safe for concurrent use.
type Router struct {
	routes map[routeKey][]Handler
}

// NewRouter creates an empty event router.
func NewRouter() *Router {
	return &Router{
		routes: make(map[routeKey][]Handler),
	}
}

// OnTransition registers a handler for a named transition of a dimension.
// Panics on a nil handler to surface startup misconfiguration immediately.
func (r *Router) OnTransition(dimension, transition string, h Handler) {
	if h == nil {
		panic(fmt.Sprintf("nil handler for transition '%s' of dimension '%s'", transition, dimension))
	}
	key := routeKey{kind: EventTransition, dimension: dimension, name: transition}
	r.routes[key] = append(r.routes[key], h)
}

// OnState registers a handler invoked whenever the dimension reaches the
// given state. Panics on a nil handler.
func (r *Router) OnState(dimension string, state fsm.State, h Handler) {
	if h == nil {
		panic(fmt.Sprintf("nil handler for state '%s' of dimension '%s'", state, dimension))
	}
	key := routeKey{kind: EventState, dimension: dimension, name: string(state)}
	r.routes[key] = append(r.routes[key], h)
}

// RegisterObserver scans the observer's method set once against the
// dimension's declared states and transition names and registers every
// match. Recognized method names follow two conventions, with the dimension
// and value identifiers pascalized from their snake/kebab form:
//
//	On<Dimension><State>            e.g. OnPaymentStatePaid
//	On<Dimension>Transition<Name>   e.g. OnPaymentStateTransitionPay
//
// Matched methods must have the signature func(context.Context, Event); a
// matching name with a different signature is an error rather than a silent
// skip. Registering an observer with no matching methods is also an error,
// so naming typos do not go unnoticed.
func (r *Router) RegisterObserver(dimension string, def *fsm.Definition, observer any) error {
	if observer == nil {
		return ErrNilObserver
	}
	if def == nil {
		return ErrNilDefinition
	}

	rv := reflect.ValueOf(observer)
	dim := pascalize(dimension)
	matched := 0

	for _, s := range def.States() {
		name := "On" + dim + pascalize(string(s))
		m := rv.MethodByName(name)
		if !m.IsValid() {
			continue
		}
		h, ok := m.Interface().(func(context.Context, Event))
		if !ok {
			return fmt.Errorf("observer method %s must have signature func(context.Context, statelog.Event)", name)
		}
		r.OnState(dimension, s, h)
		matched++
	}

	for _, tn := range def.TransitionNames() {
		name := "On" + dim + "Transition" + pascalize(tn)
		m := rv.MethodByName(name)
		if !m.IsValid() {
			continue
		}
		h, ok := m.Interface().(func(context.Context, Event))
		if !ok {
			return fmt.Errorf("observer method %s must have signature func(context.Context, statelog.Event)", name)
		}
		r.OnTransition(dimension, tn, h)
		matched++
	}

	if matched == 0 {
		return fmt.Errorf("%w: no method of %T matches dimension '%s'", ErrNoObserverMethods, observer, dimension)
	}
	return nil
}

// Dispatch invokes the handlers registered for the event, in registration
// order.
func (r *Router) Dispatch(ctx context.Context, event Event) {
	key := routeKey{kind: event.Kind, dimension: event.Dimension, name: event.Name}
	for _, h := range r.routes[key] {
		h(ctx, event)
	}
}

// pascalize converts snake_case, kebab-case, or dotted identifiers to
// PascalCase for observer method matching.
func pascalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upperNext := true
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			upperNext = true
		case upperNext:
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
