package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/aw-studio/go-states/pkg/fsm"
	"github.com/aw-studio/go-states/pkg/statelog"
)

// DefaultCollection is the collection holding the transition log.
const DefaultCollection = "state_transitions"

// appendAttempts bounds the internal retry of plain Append when a racing
// writer takes the computed entry ID first.
const appendAttempts = 5

// Store keeps the transition log in a MongoDB collection. Entry IDs are
// scope-local sequences (1, 2, 3 per owner and dimension) computed as the
// scope's latest ID plus one; the unique scope index turns two writers
// computing the same next ID into a duplicate key error, which is the
// store's conflict signal.
type Store struct {
	db   *mongo.Database
	coll *mongo.Collection
}

var _ statelog.Store = (*Store)(nil)

// Option configures the store.
type Option func(*Store)

// WithCollection overrides the collection name. Empty values are ignored.
func WithCollection(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.coll = s.db.Collection(name)
		}
	}
}

// New creates a store on top of the given database. Call EnsureIndexes once
// per deployment before the first write.
func New(db *mongo.Database, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	s := &Store{db: db}
	s.coll = db.Collection(DefaultCollection)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustNew creates a store and panics when the configuration is invalid.
func MustNew(db *mongo.Database, opts ...Option) *Store {
	s, err := New(db, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create mongostore: %v", err))
	}
	return s
}

// Collection returns the name of the backing collection.
func (s *Store) Collection() string { return s.coll.Name() }

// Append inserts one entry under the scope's next ID. When a racing writer
// takes that ID first the insert collides on the unique scope index and the
// loop re-reads and tries again, so plain appends never surface the race.
func (s *Store) Append(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	var lastErr error
	for range appendAttempts {
		out, err := s.insertNext(ctx, e)
		if err == nil {
			return out, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return statelog.Entry{}, err
		}
		lastErr = err
	}
	return statelog.Entry{}, errors.Join(statelog.ErrConflict, lastErr)
}

// Latest returns the highest-ID entry of the scope, or nil when the scope
// has no entries.
func (s *Store) Latest(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	return s.latest(ctx, ref, dimension)
}

// LatestBatch returns the latest entry of every listed owner through one
// aggregation. Owners without entries are absent from the result.
func (s *Store) LatestBatch(ctx context.Context, ownerType, dimension string, ownerIDs []string) (map[string]statelog.Entry, error) {
	out := make(map[string]statelog.Entry, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "owner_type", Value: ownerType},
			{Key: "dimension", Value: dimension},
			{Key: "owner_id", Value: bson.D{{Key: "$in", Value: ownerIDs}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "entry_id", Value: -1},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$owner_id"},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("read latest entries: %w", err)
	}
	var rows []struct {
		Doc entryDoc `bson:"doc"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode latest entries: %w", err)
	}

	for _, row := range rows {
		e := entryFromDoc(row.Doc)
		out[e.OwnerID] = e
	}
	return out, nil
}

// Find returns entries matching the filter, ordered by entry ID with the
// document key as tie breaker across scopes.
func (s *Store) Find(ctx context.Context, f statelog.Filter) ([]statelog.Entry, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "entry_id", Value: 1},
		{Key: "_id", Value: 1},
	})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.coll.Find(ctx, filterQuery(f), opts)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}

	out := make([]statelog.Entry, len(docs))
	for i, d := range docs {
		out[i] = entryFromDoc(d)
	}
	return out, nil
}

// Count returns the number of entries matching the filter, ignoring Limit.
func (s *Store) Count(ctx context.Context, f statelog.Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, filterQuery(f))
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// InTx runs fn inside one MongoDB transaction, which requires a replica set
// deployment. Concurrent writers materialize as duplicate scope IDs or
// write conflicts at commit; both come back wrapped in statelog.ErrConflict
// for the engine's retry loop.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx statelog.Tx) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, storeTx{s})
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) insertNext(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	latest, err := s.latest(ctx, e.Ref(), e.Dimension)
	if err != nil {
		return statelog.Entry{}, err
	}
	e.ID = 1
	if latest != nil {
		e.ID = latest.ID + 1
	}
	// BSON datetimes hold milliseconds, so stamp at that precision to keep
	// the returned entry identical to the stored one.
	e.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := s.coll.InsertOne(ctx, docFromEntry(e)); err != nil {
		return statelog.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return e, nil
}

func (s *Store) latest(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	res := s.coll.FindOne(ctx, bson.D{
		{Key: "owner_type", Value: ref.Type},
		{Key: "owner_id", Value: ref.ID},
		{Key: "dimension", Value: dimension},
	}, options.FindOne().SetSort(bson.D{{Key: "entry_id", Value: -1}}))

	var d entryDoc
	if err := res.Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("read latest entry: %w", err)
	}
	e := entryFromDoc(d)
	return &e, nil
}

// storeTx runs reads and writes on the session context WithTransaction
// threads through fn, so everything inside shares one snapshot and commits
// atomically.
type storeTx struct {
	s *Store
}

var _ statelog.Tx = storeTx{}

func (t storeTx) Append(ctx context.Context, e statelog.Entry) (statelog.Entry, error) {
	return t.s.insertNext(ctx, e)
}

// LatestForUpdate reads the scope's latest entry inside the transaction.
// There is no lock to take: any append landing after this read makes the
// transaction's own insert collide on the unique scope index, covering
// scopes that have no entries yet as well.
func (t storeTx) LatestForUpdate(ctx context.Context, ref statelog.OwnerRef, dimension string) (*statelog.Entry, error) {
	return t.s.latest(ctx, ref, dimension)
}

// classify wraps retry-worthy driver failures in the conflict sentinel:
// duplicate scope IDs from racing writers and the driver's transient
// transaction labels.
func classify(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(statelog.ErrConflict, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) &&
		(se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("UnknownTransactionCommitResult")) {
		return errors.Join(statelog.ErrConflict, err)
	}
	return err
}

// entryDoc is the BSON shape of one log entry. The driver's ObjectID stays
// the document key; EntryID is the scope-local sequence the log orders by.
type entryDoc struct {
	EntryID    int64     `bson:"entry_id"`
	OwnerType  string    `bson:"owner_type"`
	OwnerID    string    `bson:"owner_id"`
	Dimension  string    `bson:"dimension"`
	Transition *string   `bson:"transition,omitempty"`
	From       *string   `bson:"from_state,omitempty"`
	To         string    `bson:"to_state"`
	Reason     *string   `bson:"reason,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func docFromEntry(e statelog.Entry) entryDoc {
	d := entryDoc{
		EntryID:    e.ID,
		OwnerType:  e.OwnerType,
		OwnerID:    e.OwnerID,
		Dimension:  e.Dimension,
		Transition: e.Transition,
		To:         string(e.To),
		Reason:     e.Reason,
		CreatedAt:  e.CreatedAt,
	}
	if e.From != nil {
		v := string(*e.From)
		d.From = &v
	}
	return d
}

func entryFromDoc(d entryDoc) statelog.Entry {
	e := statelog.Entry{
		ID:         d.EntryID,
		OwnerType:  d.OwnerType,
		OwnerID:    d.OwnerID,
		Dimension:  d.Dimension,
		Transition: d.Transition,
		To:         fsm.State(d.To),
		Reason:     d.Reason,
		CreatedAt:  d.CreatedAt,
	}
	if d.From != nil {
		v := fsm.State(*d.From)
		e.From = &v
	}
	return e
}

func filterQuery(f statelog.Filter) bson.D {
	q := bson.D{}
	if f.OwnerType != "" {
		q = append(q, bson.E{Key: "owner_type", Value: f.OwnerType})
	}
	if f.OwnerID != "" {
		q = append(q, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	if f.Dimension != "" {
		q = append(q, bson.E{Key: "dimension", Value: f.Dimension})
	}
	if f.Transition != nil {
		q = append(q, bson.E{Key: "transition", Value: *f.Transition})
	}
	if f.From != nil {
		q = append(q, bson.E{Key: "from_state", Value: string(*f.From)})
	}
	if f.To != nil {
		q = append(q, bson.E{Key: "to_state", Value: string(*f.To)})
	}
	if f.AfterID > 0 {
		q = append(q, bson.E{Key: "entry_id", Value: bson.D{{Key: "$gt", Value: f.AfterID}}})
	}
	return q
}
