package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// EnsureIndexes creates the collection's indexes. The unique scope index is
// not an optimization, it is the store's concurrency guard: two writers
// computing the same next entry ID collide here. Safe to call on every
// startup, MongoDB treats an identical existing index as a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_type", Value: 1},
				{Key: "owner_id", Value: 1},
				{Key: "dimension", Value: 1},
				{Key: "entry_id", Value: -1},
			},
			Options: options.Index().SetUnique(true).SetName("scope_entry_unique"),
		},
		{
			Keys: bson.D{
				{Key: "owner_type", Value: 1},
				{Key: "dimension", Value: 1},
				{Key: "to_state", Value: 1},
			},
			Options: options.Index().SetName("dimension_to_state"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}
