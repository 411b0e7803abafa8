// internal/app/store/activity/store.go
package activity

import (
	"context"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages activity records. Webhook ingestion writes them; the
// digest pipeline reads them back through the time-bounded Since query.
type Store struct {
	c *mongo.Collection
}

// New creates a new activity store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("activity_records")}
}

// EnsureIndexes creates the index backing the pipeline's window query.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "occurred_at", Value: -1}},
			Options: options.Index().SetName("idx_activity_user_time"),
		},
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "occurred_at", Value: -1}},
			Options: options.Index().SetName("idx_activity_org_time"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save records a new activity record. Records are immutable once written.
func (s *Store) Save(ctx context.Context, record models.ActivityRecord) error {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, record)
	return err
}

// Since returns a user's activity records with occurred_at >= from,
// oldest first.
func (s *Store) Since(ctx context.Context, userID primitive.ObjectID, from time.Time) ([]models.ActivityRecord, error) {
	filter := bson.M{
		"user_id":     userID,
		"occurred_at": bson.M{"$gte": from},
	}
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.ActivityRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
