// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/digesthub/internal/app/store/activity"
	"github.com/dalemusser/digesthub/internal/app/store/digests"
	"github.com/dalemusser/digesthub/internal/app/store/integrations"
	"github.com/dalemusser/digesthub/internal/app/store/memberships"
	"github.com/dalemusser/digesthub/internal/app/store/notificationsettings"
	"github.com/dalemusser/digesthub/internal/app/store/organizations"
	"github.com/dalemusser/digesthub/internal/app/store/teams"
	"github.com/dalemusser/digesthub/internal/app/store/users"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and verifies it with a
// ping before the rest of startup proceeds.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		DigestHubMongoClient:   client,
		DigestHubMongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes every store relies on. All of the
// index builds are idempotent, so this runs on every startup.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.DigestHubMongoDatabase

	type indexer interface {
		EnsureIndexes(ctx context.Context) error
	}
	stores := map[string]indexer{
		"users":                 userstore.New(db),
		"teams":                 teamstore.New(db),
		"team_memberships":      membershipstore.New(db),
		"organizations":         orgstore.New(db),
		"activity_records":      activity.New(db),
		"notification_settings": settingstore.New(db),
		"digests":               digeststore.New(db),
		"integrations":          integrationstore.New(db),
	}
	for name, s := range stores {
		if err := s.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", name, err)
		}
	}

	logger.Info("database indexes ensured", zap.Int("stores", len(stores)))
	return nil
}
