package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates a test organization with the given name
// and Slack workspace ID.
func (f *Fixtures) CreateOrganization(ctx context.Context, name, slackID string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		SlackID:   slackID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("organizations").InsertOne(ctx, org)
	if err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateUser creates a test user in the given organization with the
// given UTC offset in minutes (positive east of UTC).
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string, orgID primitive.ObjectID, tzOffsetMinutes int) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:              primitive.NewObjectID(),
		FullName:        fullName,
		FullNameCI:      text.Fold(fullName),
		Email:           email,
		Status:          "active",
		OrganizationID:  &orgID,
		TzOffsetMinutes: tzOffsetMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTeam creates a test team in the given organization.
func (f *Fixtures) CreateTeam(ctx context.Context, name string, orgID primitive.ObjectID) models.Team {
	f.t.Helper()

	now := time.Now().UTC()
	team := models.Team{
		ID:             primitive.NewObjectID(),
		Name:           name,
		NameCI:         text.Fold(name),
		OrganizationID: orgID,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := f.db.Collection("teams").InsertOne(ctx, team)
	if err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}

	return team
}

// CreateMembership links a user to a team. The caller is responsible
// for keeping user and team in the same organization; store-level
// tests that exercise the invariant go through the membership store
// instead.
func (f *Fixtures) CreateMembership(ctx context.Context, teamID, userID, orgID primitive.ObjectID) models.TeamMembership {
	f.t.Helper()

	membership := models.TeamMembership{
		ID:        primitive.NewObjectID(),
		TeamID:    teamID,
		UserID:    userID,
		OrgID:     orgID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := f.db.Collection("team_memberships").InsertOne(ctx, membership)
	if err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}

	return membership
}

// CreateSetting creates an enabled notification setting for the user.
// Both local and UTC timing fields are the caller's to fill in.
func (f *Fixtures) CreateSetting(ctx context.Context, setting models.NotificationSetting) models.NotificationSetting {
	f.t.Helper()

	now := time.Now().UTC()
	if setting.ID.IsZero() {
		setting.ID = primitive.NewObjectID()
	}
	setting.CreatedAt = now
	setting.UpdatedAt = now

	_, err := f.db.Collection("notification_settings").InsertOne(ctx, setting)
	if err != nil {
		f.t.Fatalf("failed to create test notification setting: %v", err)
	}

	return setting
}

// CreateActivityRecord creates a GitHub activity record for the user
// at the given time.
func (f *Fixtures) CreateActivityRecord(ctx context.Context, userID, orgID primitive.ObjectID, eventType, summary string, occurredAt time.Time) models.ActivityRecord {
	f.t.Helper()

	record := models.ActivityRecord{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		OrganizationID: orgID,
		Source:         models.ActivitySourceGitHub,
		EventType:      eventType,
		Summary:        summary,
		OccurredAt:     occurredAt,
	}

	_, err := f.db.Collection("activity_records").InsertOne(ctx, record)
	if err != nil {
		f.t.Fatalf("failed to create test activity record: %v", err)
	}

	return record
}
