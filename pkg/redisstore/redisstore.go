package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aw-studio/go-states/pkg/statelog"
)

// DefaultPrefix namespaces every key the store touches.
const DefaultPrefix = "statelog"

// Store keeps the transition log in Redis. Each (owner, dimension) scope is
// one sorted set scored by entry ID, so the member with the highest score is
// the latest entry, and a shared counter hands out IDs. Optimistic
// concurrency comes from watching the scope's key: any append between a
// transaction's read and its commit aborts the commit.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ statelog.Store = (*Store)(nil)

// Option configures the store.
type Option func(*Store)

// WithPrefix overrides the key prefix. Empty values are ignored.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a store on top of the given client.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustNew creates a store and panics when the configuration is invalid.
func MustNew(client redis.UniversalClient, opts ...Option) *Store {
	s, err := New(client, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create redisstore: %v", err))
	}
	return s
}

// Prefix returns the configured key prefix.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) seqKey() string { return s.prefix + ":seq" }

func (s *Store) logKey(ownerType, ownerID, dimension string) string {
	return s.prefix + ":log:" + ownerType + ":" + ownerID + ":" + dimension
}

// Append stamps the entry with the next ID and the current time and adds it
// to its scope's sorted set. Appends commute, so no transaction is needed:
// two racing appends both land, ordered by their IDs.
func (s *Store) Append(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return statelog.Entry{}, fmt.Errorf("allocate entry id: %w", err)
	}
	e.ID = id
	e.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return statelog.Entry{}, fmt.Errorf("encode entry: %w", err)
	}
	key := s.logKey(e.OwnerType, e.OwnerID, e.Dimension)
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(id), Member: data}).Err(); err != nil {
		return statelog.Entry{}, fmt.Errorf("append entry: %w", err)
	}
	return e, nil
}

// Latest returns the highest-ID entry of the scope, or nil when the scope
// has no entries.
func (s *Store) Latest(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	return latest(ctx, s.client, s.logKey(ref.Type, ref.ID, dimension))
}

// LatestBatch reads the latest entry of every listed owner in one pipeline.
// Owners without entries are absent from the result.
func (s *Store) LatestBatch(ctx context.Context, ownerType, dimension string, ownerIDs []string) (map[string]statelog.Entry, error) {
	out := make(map[string]statelog.Entry, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	cmds := make([]*redis.StringSliceCmd, len(ownerIDs))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ownerIDs {
			cmds[i] = pipe.ZRevRange(ctx, s.logKey(ownerType, id, dimension), 0, 0)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read latest entries: %w", err)
	}

	for i, cmd := range cmds {
		members, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("read latest entries: %w", err)
		}
		if len(members) == 0 {
			continue
		}
		var e statelog.Entry
		if err := json.Unmarshal([]byte(members[0]), &e); err != nil {
			return nil, fmt.Errorf("decode entry for owner %s: %w", ownerIDs[i], err)
		}
		out[e.OwnerID] = e
	}
	return out, nil
}

// Find returns the scope's entries in ascending ID order. The filter must
// pin down the full scope; Transition, From, To and AfterID narrow further
// and Limit caps the result.
func (s *Store) Find(ctx context.Context, f statelog.Filter) ([]statelog.Entry, error) {
	key, err := s.scopeKey(f)
	if err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: minScore(f), Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}

	var out []statelog.Entry
	for _, m := range members {
		var e statelog.Entry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		if !f.Match(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of entries matching the filter, ignoring Limit.
func (s *Store) Count(ctx context.Context, f statelog.Filter) (int64, error) {
	key, err := s.scopeKey(f)
	if err != nil {
		return 0, err
	}

	// With no per-entry constraints the sorted set cardinality is the answer.
	if f.Transition == nil && f.From == nil && f.To == nil {
		n, err := s.client.ZCount(ctx, key, minScore(f), "+inf").Result()
		if err != nil {
			return 0, fmt.Errorf("count entries: %w", err)
		}
		return n, nil
	}

	f.Limit = 0
	entries, err := s.Find(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// InTx runs fn with optimistic concurrency. Appends made through the
// transaction are staged locally and committed in one MULTI/EXEC block; a
// concurrent append to any scope fn locked through LatestForUpdate aborts
// the commit, which surfaces wrapped in statelog.ErrConflict so the engine
// retries.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx statelog.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := &storeTx{s: s, tx: rtx}
		if err := fn(ctx, t); err != nil {
			return err
		}
		return t.commit(ctx)
	})
	if errors.Is(err, redis.TxFailedErr) {
		return errors.Join(statelog.ErrConflict, err)
	}
	return err
}

func (s *Store) scopeKey(f statelog.Filter) (string, error) {
	if f.OwnerType == "" || f.OwnerID == "" || f.Dimension == "" {
		return "", ErrScopeRequired
	}
	return s.logKey(f.OwnerType, f.OwnerID, f.Dimension), nil
}

func minScore(f statelog.Filter) string {
	if f.AfterID > 0 {
		return "(" + strconv.FormatInt(f.AfterID, 10)
	}
	return "-inf"
}

func latest(ctx context.Context, c redis.Cmdable, key string) (*statelog.Entry, error) {
	members, err := c.ZRevRange(ctx, key, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("read latest entry: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	var e statelog.Entry
	if err := json.Unmarshal([]byte(members[0]), &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}

// storeTx stages appends until commit. The watched connection serializes the
// final MULTI/EXEC against every scope key locked via LatestForUpdate.
type storeTx struct {
	s      *Store
	tx     *redis.Tx
	staged []statelog.Entry
}

var _ statelog.Tx = (*storeTx)(nil)

// Append allocates the entry's ID immediately so callers can read it, but
// defers the write to commit time. Aborted transactions leave a gap in the
// ID sequence, which is harmless: only the relative order matters.
func (t *storeTx) Append(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	id, err := t.tx.Incr(ctx, t.s.seqKey()).Result()
	if err != nil {
		return statelog.Entry{}, fmt.Errorf("allocate entry id: %w", err)
	}
	e.ID = id
	e.CreatedAt = time.Now().UTC()
	t.staged = append(t.staged, e)
	return e, nil
}

// LatestForUpdate watches the scope's key before reading it, so a concurrent
// append invalidates this transaction's commit. Watching works on keys that
// do not exist yet, which is what locks a scope still in its initial state.
func (t *storeTx) LatestForUpdate(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	key := t.s.logKey(ref.Type, ref.ID, dimension)
	if err := t.tx.Watch(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("watch scope %s: %w", ref, err)
	}

	// The transaction reads its own staged appends.
	for i := len(t.staged) - 1; i >= 0; i-- {
		if e := t.staged[i]; e.OwnerType == ref.Type && e.OwnerID == ref.ID && e.Dimension == dimension {
			return &e, nil
		}
	}
	return latest(ctx, t.tx, key)
}

func (t *storeTx) commit(ctx context.Context) error {
	if len(t.staged) == 0 {
		return nil
	}
	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range t.staged {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
			key := t.s.logKey(e.OwnerType, e.OwnerID, e.Dimension)
			pipe.ZAdd(ctx, key, redis.Z{Score: float64(e.ID), Member: data})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit staged entries: %w", err)
	}
	return nil
}
