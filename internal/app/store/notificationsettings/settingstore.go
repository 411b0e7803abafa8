// internal/app/store/notificationsettings/settingstore.go
package settingstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/digesthub/internal/app/system/schedule"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the notification_settings collection.
// There is at most one document per (user_id, cadence).
type Store struct {
	c *mongo.Collection
}

// New creates a new notification setting store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notification_settings")}
}

// EnsureIndexes creates the unique per-user-cadence index and the
// selector's due-query index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "cadence", Value: 1}},
			Options: options.Index().SetName("idx_settings_user_cadence").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "enabled", Value: 1}, {Key: "cadence", Value: 1}, {Key: "hour_utc", Value: 1}},
			Options: options.Index().SetName("idx_settings_due"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Upsert writes a setting for (setting.UserID, setting.Cadence),
// creating it if it does not exist. The caller is responsible for
// having normalized the UTC mirror fields first.
func (s *Store) Upsert(ctx context.Context, setting models.NotificationSetting) error {
	now := time.Now().UTC()
	filter := bson.M{"user_id": setting.UserID, "cadence": setting.Cadence}
	update := bson.M{
		"$set": bson.M{
			"enabled":            setting.Enabled,
			"local_hour":         setting.LocalHour,
			"local_day_of_week":  setting.LocalDayOfWeek,
			"local_day_of_month": setting.LocalDayOfMonth,
			"hour_utc":           setting.HourUTC,
			"daily_utc_offset":   setting.DailyUTCOffset,
			"day_of_week_utc":    setting.DayOfWeekUTC,
			"day_of_month_utc":   setting.DayOfMonthUTC,
			"updated_at":         now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"user_id":    setting.UserID,
			"cadence":    setting.Cadence,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, filter, update, opts)
	return err
}

// Get returns the setting for (userID, cadence), or mongo.ErrNoDocuments.
func (s *Store) Get(ctx context.Context, userID primitive.ObjectID, cadence models.Cadence) (models.NotificationSetting, error) {
	var setting models.NotificationSetting
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "cadence": cadence}).Decode(&setting)
	return setting, err
}

// ListForUser returns all of a user's settings across cadences.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.NotificationSetting, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var settings []models.NotificationSetting
	if err := cur.All(ctx, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// DeleteForUser removes every setting a user owns. Called when the user
// disables all cadences or is removed.
func (s *Store) DeleteForUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// DueDaily returns all enabled daily settings whose UTC hour matches.
// The caller applies the per-setting day-shift consistency check; the
// query keys on the indexed fields only.
func (s *Store) DueDaily(ctx context.Context, hourUTC int) ([]models.NotificationSetting, error) {
	return s.findDue(ctx, bson.M{
		"enabled":  true,
		"cadence":  models.CadenceDaily,
		"hour_utc": hourUTC,
	})
}

// DueWeekly returns all enabled weekly settings matching the UTC hour
// and weekday.
func (s *Store) DueWeekly(ctx context.Context, hourUTC, dayOfWeekUTC int) ([]models.NotificationSetting, error) {
	return s.findDue(ctx, bson.M{
		"enabled":         true,
		"cadence":         models.CadenceWeekly,
		"hour_utc":        hourUTC,
		"day_of_week_utc": dayOfWeekUTC,
	})
}

// DueMonthly returns all enabled monthly settings matching the UTC hour
// and the first/last-of-month marker.
func (s *Store) DueMonthly(ctx context.Context, hourUTC, monthMarker int) ([]models.NotificationSetting, error) {
	return s.findDue(ctx, bson.M{
		"enabled":          true,
		"cadence":          models.CadenceMonthly,
		"hour_utc":         hourUTC,
		"day_of_month_utc": monthMarker,
	})
}

func (s *Store) findDue(ctx context.Context, filter bson.M) ([]models.NotificationSetting, error) {
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var settings []models.NotificationSetting
	if err := cur.All(ctx, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// ResyncForUser recomputes the UTC mirror of every setting the user
// owns against a new timezone offset. Called after a profile sync
// changes the user's offset; normalization is deterministic, so
// re-running it is safe.
func (s *Store) ResyncForUser(ctx context.Context, userID primitive.ObjectID, offsetMinutes int) error {
	settings, err := s.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, setting := range settings {
		if err := schedule.Renormalize(&setting, offsetMinutes); err != nil {
			return fmt.Errorf("resync %s setting for user %s: %w", setting.Cadence, userID.Hex(), err)
		}
		if err := s.Upsert(ctx, setting); err != nil {
			return err
		}
	}
	return nil
}
