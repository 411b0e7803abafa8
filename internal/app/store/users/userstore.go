// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the users collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new user store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// EnsureIndexes creates the indexes user lookups rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_users_email"),
		},
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}},
			Options: options.Index().SetName("idx_users_org"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new user.
func (s *Store) Create(ctx context.Context, user models.User) (models.User, error) {
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.FullNameCI = text.Fold(user.FullName)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// GetByID returns the user with the given ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, err
}

// GetByEmail returns the user with the given email, or mongo.ErrNoDocuments.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return u, err
}

// GetByIDs returns the users whose IDs appear in ids, in arbitrary order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateTimezone records a user's timezone as reported by the external
// profile sync. Returns whether the offset actually changed, so callers
// know to re-normalize the user's notification settings.
func (s *Store) UpdateTimezone(ctx context.Context, id primitive.ObjectID, tz, tzLabel string, offsetMinutes int) (changed bool, err error) {
	var before models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&before); err != nil {
		return false, err
	}

	update := bson.M{"$set": bson.M{
		"tz":                tz,
		"tz_label":          tzLabel,
		"tz_offset_minutes": offsetMinutes,
		"updated_at":        time.Now().UTC(),
	}}
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return false, err
	}
	return before.TzOffsetMinutes != offsetMinutes, nil
}

// Delete removes a user.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
