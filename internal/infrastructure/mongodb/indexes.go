// Package mongodb provides MongoDB infrastructure components including index management.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionHistory is the default name of the notification history collection.
const CollectionHistory = "notification_history"

// Index names, exported for tests and migrations.
const (
	IndexHistoryIDUnique   = "idx_history_id_unique"
	IndexHistoryKindTime   = "idx_history_kind_time"
	IndexHistoryReasonTime = "idx_history_reason_time"
	IndexHistoryCreatedAt  = "idx_history_created_at"
	IndexHistoryTTL        = "idx_history_removed_ttl"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Name       string
	Keys       bson.D
	Options    *options.IndexOptionsBuilder
}

// CreateIndexes creates the given indexes.
// This function is idempotent - calling it multiple times is safe as long as the
// definitions do not change.
func CreateIndexes(ctx context.Context, db *mongo.Database, indexes []IndexDefinition) error {
	for _, idx := range indexes {
		coll := db.Collection(idx.Collection)
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: idx.Options.SetName(idx.Name),
		}

		_, err := coll.Indexes().CreateOne(ctx, model)
		if err != nil {
			return fmt.Errorf("failed to create index %s on collection %s: %w", idx.Name, idx.Collection, err)
		}
	}

	return nil
}

// GetHistoryIndexes returns index definitions for the history collection.
// A positive retention adds a TTL index on removed_at; entries still active
// have no removed_at and are never expired.
func GetHistoryIndexes(collection string, retention time.Duration) []IndexDefinition {
	if collection == "" {
		collection = CollectionHistory
	}

	indexes := []IndexDefinition{
		{
			// Primary key - upserts are keyed by notification ID
			Collection: collection,
			Name:       IndexHistoryIDUnique,
			Keys:       bson.D{{Key: "notification_id", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},
		{
			// Filtering by kind, newest first
			Collection: collection,
			Name:       IndexHistoryKindTime,
			Keys:       bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: -1}},
			Options:    options.Index(),
		},
		{
			// Filtering by removal reason
			Collection: collection,
			Name:       IndexHistoryReasonTime,
			Keys:       bson.D{{Key: "reason", Value: 1}, {Key: "created_at", Value: -1}},
			Options:    options.Index().SetSparse(true),
		},
		{
			// Unfiltered listing and since queries
			Collection: collection,
			Name:       IndexHistoryCreatedAt,
			Keys:       bson.D{{Key: "created_at", Value: -1}},
			Options:    options.Index(),
		},
	}

	if retention > 0 {
		indexes = append(indexes, IndexDefinition{
			Collection: collection,
			Name:       IndexHistoryTTL,
			Keys:       bson.D{{Key: "removed_at", Value: 1}},
			Options:    options.Index().SetExpireAfterSeconds(int32(retention / time.Second)),
		})
	}

	return indexes
}

// EnsureHistoryIndexes creates the history indexes.
func EnsureHistoryIndexes(ctx context.Context, db *mongo.Database, collection string, retention time.Duration) error {
	return CreateIndexes(ctx, db, GetHistoryIndexes(collection, retention))
}
