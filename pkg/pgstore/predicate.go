package pgstore

import (
	"slices"
	"strconv"
	"strings"

	"github.com/aw-studio/go-states/pkg/fsm"
)

// Owner designates the entity rows a predicate filters. Type is bound as a
// query argument; IDExpr is the SQL expression producing the owner ID of the
// candidate row in the surrounding query, for example "orders.id::text", and
// is interpolated verbatim. It must be a trusted expression.
type Owner struct {
	Type   string
	IDExpr string
}

// Expr is a composable boolean predicate over current and historical states.
// Compile renders it as a self-contained SQL fragment, so expressions nest
// freely under And, Or, and Not alongside the host query's own conditions.
//
// Current-state predicates follow the log's reading of "current": the To
// value of the scope's highest-ID entry, or the dimension's initial state
// when no entry exists. A scope without entries therefore satisfies
// CurrentIs of the initial state, and a naive "some entry has this To value"
// check is never produced, as it would match scopes that have since moved
// on.
type Expr interface {
	compile(b *predicateBuilder, o Owner)
}

// CurrentIs matches owners whose current state for the dimension equals
// state.
func CurrentIs(dimension string, def *fsm.Definition, state fsm.State) Expr {
	return &currentExpr{dimension: dimension, def: def, states: []fsm.State{state}}
}

// CurrentNot matches owners whose current state for the dimension differs
// from state. It is the exact complement of CurrentIs over all owners.
func CurrentNot(dimension string, def *fsm.Definition, state fsm.State) Expr {
	return &currentExpr{dimension: dimension, def: def, states: []fsm.State{state}, negate: true}
}

// CurrentIn matches owners whose current state for the dimension is any of
// states.
func CurrentIn(dimension string, def *fsm.Definition, states ...fsm.State) Expr {
	return &currentExpr{dimension: dimension, def: def, states: states}
}

// CurrentNotIn matches owners whose current state for the dimension is none
// of states. It is the exact complement of CurrentIn over all owners.
func CurrentNotIn(dimension string, def *fsm.Definition, states ...fsm.State) Expr {
	return &currentExpr{dimension: dimension, def: def, states: states, negate: true}
}

// Ever matches owners that reached state at some point in the dimension's
// history, regardless of where they sit now. Every owner trivially passed
// through the initial state, so Ever of it compiles to TRUE.
func Ever(dimension string, def *fsm.Definition, state fsm.State) Expr {
	return &everExpr{dimension: dimension, def: def, state: state}
}

// And combines expressions so all must hold.
func And(exprs ...Expr) Expr {
	return &boolExpr{children: exprs}
}

// Or combines expressions so at least one must hold.
func Or(exprs ...Expr) Expr {
	return &boolExpr{or: true, children: exprs}
}

// Not inverts an expression.
func Not(e Expr) Expr {
	return &notExpr{child: e}
}

// CompileOption adjusts how a predicate is rendered.
type CompileOption func(*predicateBuilder)

// WithCompileTable points the compiled SQL at a non-default log table. Like
// WithTable, the name is interpolated verbatim and must be trusted.
func WithCompileTable(name string) CompileOption {
	return func(b *predicateBuilder) {
		if name != "" {
			b.table = name
		}
	}
}

// WithArgOffset shifts placeholder numbering so the fragment can be spliced
// into a query that already binds n arguments.
func WithArgOffset(n int) CompileOption {
	return func(b *predicateBuilder) {
		if n > 0 {
			b.n = n
		}
	}
}

// Compile renders the predicate as a boolean SQL fragment plus its bind
// arguments, ready to drop into the WHERE clause of a host entity query.
func Compile(e Expr, owner Owner, opts ...CompileOption) (string, []any, error) {
	if e == nil {
		return "", nil, ErrEmptyExpression
	}
	if owner.Type == "" {
		return "", nil, ErrEmptyOwnerType
	}
	if owner.IDExpr == "" {
		return "", nil, ErrEmptyOwnerIDExpr
	}

	b := &predicateBuilder{table: DefaultTable}
	for _, opt := range opts {
		opt(b)
	}

	e.compile(b, owner)
	if b.err != nil {
		return "", nil, b.err
	}
	return b.sb.String(), b.args, nil
}

// Compile renders the predicate against the store's table.
func (s *Store) Compile(e Expr, owner Owner, opts ...CompileOption) (string, []any, error) {
	return Compile(e, owner, append([]CompileOption{WithCompileTable(s.table)}, opts...)...)
}

type currentExpr struct {
	dimension string
	def       *fsm.Definition
	states    []fsm.State
	negate    bool
}

func (e *currentExpr) compile(b *predicateBuilder, o Owner) {
	if e.def == nil {
		b.fail(ErrNilDefinition)
		return
	}
	if e.dimension == "" {
		b.fail(ErrEmptyDimension)
		return
	}
	if len(e.states) == 0 {
		b.fail(ErrNoPredicateStates)
		return
	}

	containsInitial := slices.Contains(e.states, e.def.Initial())

	// Four cases fall out of "no entries means initial state". When the set
	// contains the initial state, untouched scopes match, so the positive
	// form ORs in their non-existence; the negated form then only admits
	// scopes whose latest entry left the set. Without the initial state the
	// two forms swap roles.
	switch {
	case !e.negate && containsInitial:
		b.raw("(NOT ")
		b.scopeExists(o, e.dimension)
		b.raw(" OR ")
		b.latestIn(o, e.dimension, e.states, false)
		b.raw(")")
	case !e.negate:
		b.latestIn(o, e.dimension, e.states, false)
	case containsInitial:
		b.latestIn(o, e.dimension, e.states, true)
	default:
		b.raw("(NOT ")
		b.scopeExists(o, e.dimension)
		b.raw(" OR ")
		b.latestIn(o, e.dimension, e.states, true)
		b.raw(")")
	}
}

type everExpr struct {
	dimension string
	def       *fsm.Definition
	state     fsm.State
}

func (e *everExpr) compile(b *predicateBuilder, o Owner) {
	if e.def == nil {
		b.fail(ErrNilDefinition)
		return
	}
	if e.dimension == "" {
		b.fail(ErrEmptyDimension)
		return
	}

	if e.state == e.def.Initial() {
		b.raw("TRUE")
		return
	}

	b.raw("EXISTS (SELECT 1 FROM ")
	b.raw(b.table)
	b.raw(" AS sl WHERE sl.owner_type = ")
	b.raw(b.arg(o.Type))
	b.raw(" AND sl.owner_id = ")
	b.raw(o.IDExpr)
	b.raw(" AND sl.dimension = ")
	b.raw(b.arg(e.dimension))
	b.raw(" AND sl.to_state = ")
	b.raw(b.arg(string(e.state)))
	b.raw(")")
}

type boolExpr struct {
	or       bool
	children []Expr
}

func (e *boolExpr) compile(b *predicateBuilder, o Owner) {
	if len(e.children) == 0 {
		b.fail(ErrEmptyExpression)
		return
	}
	if len(e.children) == 1 {
		e.children[0].compile(b, o)
		return
	}

	op := " AND "
	if e.or {
		op = " OR "
	}
	b.raw("(")
	for i, c := range e.children {
		if i > 0 {
			b.raw(op)
		}
		c.compile(b, o)
	}
	b.raw(")")
}

type notExpr struct {
	child Expr
}

func (e *notExpr) compile(b *predicateBuilder, o Owner) {
	if e.child == nil {
		b.fail(ErrEmptyExpression)
		return
	}
	b.raw("NOT (")
	e.child.compile(b, o)
	b.raw(")")
}

type predicateBuilder struct {
	sb    strings.Builder
	table string
	args  []any
	n     int
	err   error
}

func (b *predicateBuilder) raw(s string) {
	b.sb.WriteString(s)
}

func (b *predicateBuilder) arg(v any) string {
	b.args = append(b.args, v)
	b.n++
	return "$" + strconv.Itoa(b.n)
}

func (b *predicateBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// scopeExists renders an existence check for any entry of the scope.
func (b *predicateBuilder) scopeExists(o Owner, dimension string) {
	b.raw("EXISTS (SELECT 1 FROM ")
	b.raw(b.table)
	b.raw(" AS sl WHERE sl.owner_type = ")
	b.raw(b.arg(o.Type))
	b.raw(" AND sl.owner_id = ")
	b.raw(o.IDExpr)
	b.raw(" AND sl.dimension = ")
	b.raw(b.arg(dimension))
	b.raw(")")
}

// latestIn renders the correlated "latest entry is (not) in the set" check:
// an entry matches the state condition and no higher-ID entry exists for the
// same scope.
func (b *predicateBuilder) latestIn(o Owner, dimension string, states []fsm.State, exclude bool) {
	b.raw("EXISTS (SELECT 1 FROM ")
	b.raw(b.table)
	b.raw(" AS sl WHERE sl.owner_type = ")
	b.raw(b.arg(o.Type))
	b.raw(" AND sl.owner_id = ")
	b.raw(o.IDExpr)
	b.raw(" AND sl.dimension = ")
	b.raw(b.arg(dimension))
	b.raw(" AND sl.to_state ")

	if len(states) == 1 {
		if exclude {
			b.raw("<> ")
		} else {
			b.raw("= ")
		}
		b.raw(b.arg(string(states[0])))
	} else {
		vals := make([]string, len(states))
		for i, s := range states {
			vals[i] = string(s)
		}
		if exclude {
			b.raw("<> ALL(")
		} else {
			b.raw("= ANY(")
		}
		b.raw(b.arg(vals))
		b.raw(")")
	}

	b.raw(" AND NOT EXISTS (SELECT 1 FROM ")
	b.raw(b.table)
	b.raw(" AS sln WHERE sln.owner_type = sl.owner_type AND sln.owner_id = sl.owner_id AND sln.dimension = sl.dimension AND sln.id > sl.id))")
}
