// internal/app/store/integrations/integrationstore.go
package integrationstore

import (
	"context"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages integration installations (workspace/app installs and
// their access tokens) and integration accounts (per-user external
// identities). Delivery target resolution and webhook attribution both
// go through here.
type Store struct {
	installations *mongo.Collection
	accounts      *mongo.Collection
}

// New creates a new integration store.
func New(db *mongo.Database) *Store {
	return &Store{
		installations: db.Collection("integration_installations"),
		accounts:      db.Collection("integration_accounts"),
	}
}

// EnsureIndexes creates the unique lookup indexes both collections need.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.installations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "integration_name", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().SetName("idx_installations_name_ext").SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := s.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "integration_name", Value: 1},
			{Key: "external_id", Value: 1},
			{Key: "organization_id", Value: 1},
		},
		Options: options.Index().SetName("idx_accounts_name_ext_org").SetUnique(true),
	})
	return err
}

// UpsertInstallation creates or refreshes an installation record keyed
// by (integration name, external ID).
func (s *Store) UpsertInstallation(ctx context.Context, inst models.IntegrationInstallation) error {
	now := time.Now().UTC()
	filter := bson.M{
		"integration_name": inst.IntegrationName,
		"external_id":      inst.ExternalID,
	}
	set := bson.M{
		"account_name": inst.AccountName,
		"access_token": inst.AccessToken,
		"updated_at":   now,
	}
	if inst.OrganizationID != nil {
		set["organization_id"] = inst.OrganizationID
	}
	if inst.Data != nil {
		set["data"] = inst.Data
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":              primitive.NewObjectID(),
			"integration_name": inst.IntegrationName,
			"external_id":      inst.ExternalID,
			"created_at":       now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.installations.UpdateOne(ctx, filter, update, opts)
	return err
}

// GetInstallation returns the installation for (name, externalID), or
// mongo.ErrNoDocuments.
func (s *Store) GetInstallation(ctx context.Context, name, externalID string) (models.IntegrationInstallation, error) {
	var inst models.IntegrationInstallation
	err := s.installations.FindOne(ctx, bson.M{
		"integration_name": name,
		"external_id":      externalID,
	}).Decode(&inst)
	return inst, err
}

// InstallationForOrg returns the installation of the named integration
// for an organization, or mongo.ErrNoDocuments.
func (s *Store) InstallationForOrg(ctx context.Context, name string, orgID primitive.ObjectID) (models.IntegrationInstallation, error) {
	var inst models.IntegrationInstallation
	err := s.installations.FindOne(ctx, bson.M{
		"integration_name": name,
		"organization_id":  orgID,
	}).Decode(&inst)
	return inst, err
}

// UpdateAccessToken rotates an installation's credential. Called by the
// resilient fetch wrapper after a re-authentication.
func (s *Store) UpdateAccessToken(ctx context.Context, id primitive.ObjectID, token string) error {
	update := bson.M{"$set": bson.M{
		"access_token": token,
		"updated_at":   time.Now().UTC(),
	}}
	_, err := s.installations.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// DeleteInstallation removes an installation (uninstall webhook).
func (s *Store) DeleteInstallation(ctx context.Context, name, externalID string) error {
	_, err := s.installations.DeleteOne(ctx, bson.M{
		"integration_name": name,
		"external_id":      externalID,
	})
	return err
}

// UpsertAccount links a user to an external identity within an org.
func (s *Store) UpsertAccount(ctx context.Context, acct models.IntegrationAccount) error {
	now := time.Now().UTC()
	filter := bson.M{
		"integration_name": acct.IntegrationName,
		"external_id":      acct.ExternalID,
		"organization_id":  acct.OrganizationID,
	}
	update := bson.M{
		"$set": bson.M{
			"user_id":    acct.UserID,
			"username":   acct.Username,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"_id":              primitive.NewObjectID(),
			"integration_name": acct.IntegrationName,
			"external_id":      acct.ExternalID,
			"organization_id":  acct.OrganizationID,
			"created_at":       now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.accounts.UpdateOne(ctx, filter, update, opts)
	return err
}

// AccountByExternalID resolves an external identity (e.g. a GitHub
// login or Slack user ID) to the linked account, or mongo.ErrNoDocuments.
func (s *Store) AccountByExternalID(ctx context.Context, name, externalID string, orgID primitive.ObjectID) (models.IntegrationAccount, error) {
	var acct models.IntegrationAccount
	err := s.accounts.FindOne(ctx, bson.M{
		"integration_name": name,
		"external_id":      externalID,
		"organization_id":  orgID,
	}).Decode(&acct)
	return acct, err
}

// AccountForUser returns the user's linked identity on the named
// integration within an org, or mongo.ErrNoDocuments.
func (s *Store) AccountForUser(ctx context.Context, name string, userID, orgID primitive.ObjectID) (models.IntegrationAccount, error) {
	var acct models.IntegrationAccount
	err := s.accounts.FindOne(ctx, bson.M{
		"integration_name": name,
		"user_id":          userID,
		"organization_id":  orgID,
	}).Decode(&acct)
	return acct, err
}
