package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aw-studio/go-states/pkg/fsm"
	"github.com/aw-studio/go-states/pkg/pg"
	"github.com/aw-studio/go-states/pkg/statelog"
)

// DefaultTable is the transition log table provisioned by Migrate.
const DefaultTable = "state_transitions"

const entryColumns = "id, owner_type, owner_id, dimension, transition, from_state, to_state, reason, created_at"

// Store is the PostgreSQL-backed transition log. IDs come from the table's
// bigserial, so they are globally monotonic across all scopes; CreatedAt is
// stamped by the database.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

var _ statelog.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTable points the store at a non-default log table. The name is
// interpolated into SQL verbatim, so it must come from trusted configuration,
// never from user input.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// New creates a Store on top of an existing connection pool, typically one
// opened with pg.Connect.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrNilPool
	}

	s := &Store{pool: pool, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustNew creates a Store and panics on failure.
func MustNew(pool *pgxpool.Pool, opts ...Option) *Store {
	s, err := New(pool, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create pgstore: %v", err))
	}
	return s
}

// Table returns the log table the store operates on.
func (s *Store) Table() string {
	return s.table
}

// Append inserts one entry outside any transaction.
func (s *Store) Append(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	return queries{q: s.pool, table: s.table}.insert(ctx, e)
}

// Latest returns the highest-ID entry of the scope, or nil when the scope has
// no entries.
func (s *Store) Latest(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	return queries{q: s.pool, table: s.table}.latest(ctx, ref, dimension, false)
}

// LatestBatch returns the latest entry per owner ID for one owner type and
// dimension in a single round trip. Owners without entries are absent from
// the map.
func (s *Store) LatestBatch(ctx context.Context, ownerType, dimension string, ownerIDs []string) (map[string]statelog.Entry, error) {
	out := make(map[string]statelog.Entry, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	sql := fmt.Sprintf(`SELECT DISTINCT ON (owner_id) %s FROM %s WHERE owner_type = $1 AND dimension = $2 AND owner_id = ANY($3) ORDER BY owner_id, id DESC`, entryColumns, s.table)
	rows, err := s.pool.Query(ctx, sql, ownerType, dimension, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("query latest batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out[e.OwnerID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query latest batch: %w", err)
	}
	return out, nil
}

// Find returns entries matching the filter in ascending ID order.
func (s *Store) Find(ctx context.Context, f statelog.Filter) ([]statelog.Entry, error) {
	where, args := buildWhere(f)
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY id", entryColumns, s.table, where)
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []statelog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return out, nil
}

// Count returns the number of entries matching the filter, ignoring Limit.
func (s *Store) Count(ctx context.Context, f statelog.Filter) (int64, error) {
	where, args := buildWhere(f)
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.table, where)

	var n int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// InTx runs fn inside one database transaction. Serialization failures,
// deadlocks, and unique violations roll the transaction back wrapped in
// statelog.ErrConflict so the engine's retry loop recognizes them.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx statelog.Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(ctx, &storeTx{queries: queries{q: pgtx, table: s.table}}); err != nil {
		return classify(err)
	}
	if err := pgtx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// storeTx exposes the transactional slice of the store to the transition
// protocol.
type storeTx struct {
	queries
}

var _ statelog.Tx = (*storeTx)(nil)

func (t *storeTx) Append(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	return t.insert(ctx, e)
}

// LatestForUpdate serializes writers on the scope and returns its latest
// entry, or nil for an untouched scope. The advisory lock is keyed on the
// scope rather than a row because a scope still in its initial state has no
// row to lock; FOR UPDATE on the returned row additionally guards against
// writers bypassing this protocol. Both locks are released at transaction
// end.
func (t *storeTx) LatestForUpdate(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	key := strings.Join([]string{t.table, ref.Type, ref.ID, dimension}, "/")
	if _, err := t.q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
		return nil, fmt.Errorf("acquire scope lock: %w", err)
	}
	return t.latest(ctx, ref, dimension, true)
}

// querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q     querier
	table string
}

func (q queries) insert(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	sql := fmt.Sprintf(`INSERT INTO %s (owner_type, owner_id, dimension, transition, from_state, to_state, reason) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`, q.table)

	row := q.q.QueryRow(ctx, sql, e.OwnerType, e.OwnerID, e.Dimension, e.Transition, statePtrArg(e.From), string(e.To), e.Reason)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return statelog.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return e, nil
}

func (q queries) latest(ctx context.Context, ref statelog.OwnerRef, dimension string, forUpdate bool) (*statelog.Entry, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_type = $1 AND owner_id = $2 AND dimension = $3 ORDER BY id DESC LIMIT 1`, entryColumns, q.table)
	if forUpdate {
		sql += " FOR UPDATE"
	}

	e, err := scanEntry(q.q.QueryRow(ctx, sql, ref.Type, ref.ID, dimension))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest entry: %w", err)
	}
	return &e, nil
}

// classify maps retryable driver failures onto statelog.ErrConflict.
func classify(err error) error {
	if pg.IsSerializationFailureError(err) || pg.IsDuplicateKeyError(err) {
		return errors.Join(statelog.ErrConflict, err)
	}
	return err
}

// buildWhere renders the filter as a WHERE clause with positional arguments.
// An empty filter yields an empty clause.
func buildWhere(f statelog.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if f.OwnerType != "" {
		add("owner_type = $%d", f.OwnerType)
	}
	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.Dimension != "" {
		add("dimension = $%d", f.Dimension)
	}
	if f.Transition != nil {
		add("transition = $%d", *f.Transition)
	}
	if f.From != nil {
		add("from_state = $%d", string(*f.From))
	}
	if f.To != nil {
		add("to_state = $%d", string(*f.To))
	}
	if f.AfterID > 0 {
		add("id > $%d", f.AfterID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (statelog.Entry, error) {
	var (
		e          statelog.Entry
		transition *string
		from       *string
		to         string
		reason     *string
	)
	if err := row.Scan(&e.ID, &e.OwnerType, &e.OwnerID, &e.Dimension, &transition, &from, &to, &reason, &e.CreatedAt); err != nil {
		return statelog.Entry{}, err
	}

	e.Transition = transition
	if from != nil {
		s := fsm.State(*from)
		e.From = &s
	}
	e.To = fsm.State(to)
	e.Reason = reason
	return e, nil
}

func statePtrArg(s *fsm.State) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
