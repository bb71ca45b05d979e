package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// historyDocument is the stored shape of a history entry. Placeholders written
// by MarkRemoved before the matching add carry only the ID and the removal.
type historyDocument struct {
	NotificationID string     `bson:"notification_id"`
	Kind           string     `bson:"kind,omitempty"`
	Title          string     `bson:"title,omitempty"`
	Message        string     `bson:"message,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	DurationMS     int64      `bson:"duration_ms"`
	AutoRemove     bool       `bson:"auto_remove"`
	ActionLabel    string     `bson:"action_label,omitempty"`
	Source         string     `bson:"source,omitempty"`
	Reason         string     `bson:"reason,omitempty"`
	RemovedAt      *time.Time `bson:"removed_at,omitempty"`
}

// MongoHistoryRepository stores the notification audit trail.
// Every write is an upsert keyed by notification ID, so redelivered and
// out-of-order events converge on one document.
type MongoHistoryRepository struct {
	collection *mongo.Collection
}

// NewMongoHistoryRepository creates a new MongoDB history repository.
func NewMongoHistoryRepository(collection *mongo.Collection) *MongoHistoryRepository {
	return &MongoHistoryRepository{
		collection: collection,
	}
}

// Upsert writes the entry. A removal already recorded is kept when entry has none,
// and an empty action label never overwrites a stored one.
func (r *MongoHistoryRepository) Upsert(ctx context.Context, entry notification.HistoryEntry) error {
	if entry.ID.IsZero() {
		return fmt.Errorf("%w: history entry without id", errs.ErrInvalidInput)
	}

	set := bson.M{
		"kind":        entry.Kind.String(),
		"title":       entry.Title,
		"message":     entry.Message,
		"created_at":  entry.CreatedAt.UTC(),
		"duration_ms": entry.Duration.Milliseconds(),
		"auto_remove": entry.AutoRemove,
	}
	if entry.Source != "" {
		set["source"] = entry.Source
	}
	if entry.ActionLabel != "" {
		set["action_label"] = entry.ActionLabel
	}
	if !entry.IsActive() {
		set["reason"] = string(entry.Reason)
		set["removed_at"] = entry.RemovedAt.UTC()
	}

	filter := bson.M{"notification_id": entry.ID.String()}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set}, UpsertOptions())
	return HandleMongoError(err, "history entry")
}

// MarkRemoved records a removal for every ID in one unordered bulk write,
// creating placeholders for IDs whose add has not been recorded yet.
func (r *MongoHistoryRepository) MarkRemoved(
	ctx context.Context,
	ids []notification.ID,
	reason notification.RemovalReason,
	at time.Time,
) error {
	if len(ids) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(ids))
	for _, id := range ids {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"notification_id": id.String()}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"reason":     string(reason),
					"removed_at": at.UTC(),
				},
			}).
			SetUpsert(true))
	}

	_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return HandleMongoError(err, "history entries")
}

// FindByID returns the entry of one notification.
func (r *MongoHistoryRepository) FindByID(ctx context.Context, id notification.ID) (notification.HistoryEntry, error) {
	if id.IsZero() {
		return notification.HistoryEntry{}, errs.ErrInvalidInput
	}

	var doc historyDocument
	err := r.collection.FindOne(ctx, bson.M{"notification_id": id.String()}).Decode(&doc)
	if err != nil {
		return notification.HistoryEntry{}, HandleMongoError(err, "history entry")
	}

	return documentToEntry(&doc), nil
}

// List returns entries matching filter, newest first.
func (r *MongoHistoryRepository) List(
	ctx context.Context,
	filter notification.HistoryFilter,
) ([]notification.HistoryEntry, error) {
	query := bson.M{}
	if filter.Kind != "" {
		query["kind"] = filter.Kind.String()
	}
	if filter.Reason != "" {
		query["reason"] = string(filter.Reason)
	}
	if !filter.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": filter.Since.UTC()}
	}

	limit := DefaultLimitWithMax(filter.Limit, DefaultPaginationLimit, MaxPaginationLimit)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, HandleMongoError(err, "history entries")
	}
	defer cursor.Close(ctx)

	entries := make([]notification.HistoryEntry, 0)
	for cursor.Next(ctx) {
		var doc historyDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			continue // skip malformed documents
		}
		entries = append(entries, documentToEntry(&doc))
	}

	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return entries, nil
}

func documentToEntry(doc *historyDocument) notification.HistoryEntry {
	entry := notification.HistoryEntry{
		ID:          notification.ID(doc.NotificationID),
		Kind:        notification.Kind(doc.Kind),
		Title:       doc.Title,
		Message:     doc.Message,
		CreatedAt:   doc.CreatedAt,
		Duration:    time.Duration(doc.DurationMS) * time.Millisecond,
		AutoRemove:  doc.AutoRemove,
		ActionLabel: doc.ActionLabel,
		Source:      doc.Source,
		Reason:      notification.RemovalReason(doc.Reason),
	}
	if doc.RemovedAt != nil {
		entry.RemovedAt = *doc.RemovedAt
	}
	return entry
}
