// internal/app/store/organizations/orgstore.go
package orgstore

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

// Store provides access to the organizations collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new organization store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

// EnsureIndexes creates the Slack workspace lookup index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slack_id", Value: 1}},
		Options: options.Index().SetName("idx_orgs_slack").SetUnique(true).SetSparse(true),
	})
	return err
}

// GetByID returns the organization with the given ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	return org, err
}

// GetBySlackID returns the organization for a Slack workspace, or
// mongo.ErrNoDocuments.
func (s *Store) GetBySlackID(ctx context.Context, slackID string) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"slack_id": slackID}).Decode(&org)
	return org, err
}

// FindOrCreateBySlackID returns the organization for a Slack workspace,
// creating it on first contact (the install flow).
func (s *Store) FindOrCreateBySlackID(ctx context.Context, slackID, name string, isEnterprise bool) (models.Organization, error) {
	org, err := s.GetBySlackID(ctx, slackID)
	if err == nil {
		return org, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.Organization{}, err
	}

	now := time.Now().UTC()
	org = models.Organization{
		ID:                primitive.NewObjectID(),
		Name:              name,
		NameCI:            text.Fold(name),
		SlackID:           slackID,
		IsSlackEnterprise: isEnterprise,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := s.c.InsertOne(ctx, org); err != nil {
		return models.Organization{}, err
	}
	return org, nil
}
