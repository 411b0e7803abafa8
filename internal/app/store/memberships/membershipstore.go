// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages the team_memberships join collection. It also reads the
// users and teams collections to enforce the org invariant and to expand
// memberships into user/team documents for the digest pipeline.
type Store struct {
	c     *mongo.Collection
	users *mongo.Collection
	teams *mongo.Collection
}

// New creates a new membership store.
func New(db *mongo.Database) *Store {
	return &Store{
		c:     db.Collection("team_memberships"),
		users: db.Collection("users"),
		teams: db.Collection("teams"),
	}
}

var (
	errOrgMismatch  = errors.New("user and team belong to different organizations")
	errMissingOrgID = errors.New("user missing organization_id")
)

// ErrDuplicateMembership is returned when a user is already on the team.
var ErrDuplicateMembership = errors.New("user is already a member of this team")

// EnsureIndexes creates the unique (team_id, user_id) index plus the
// user-side lookup index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_memberships_team_user").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_memberships_user"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Add creates a membership after enforcing the org invariant.
func (s *Store) Add(ctx context.Context, teamID, userID primitive.ObjectID) error {
	var t models.Team
	if err := s.teams.FindOne(ctx, bson.M{"_id": teamID}).Decode(&t); err != nil {
		return err
	}

	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		return err
	}
	if u.OrganizationID == nil {
		return errMissingOrgID
	}
	if t.OrganizationID != *u.OrganizationID {
		return errOrgMismatch
	}

	doc := bson.M{
		"team_id":    teamID,
		"user_id":    userID,
		"org_id":     t.OrganizationID,
		"created_at": time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateMembership
		}
		return err
	}
	return nil
}

// Remove deletes the membership document for (teamID, userID).
func (s *Store) Remove(ctx context.Context, teamID, userID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"team_id": teamID, "user_id": userID})
	return err
}

// RemoveAllForUser deletes every membership a user holds. Used when a
// user is removed entirely.
func (s *Store) RemoveAllForUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// TeamsForUser returns every team the user belongs to, in arbitrary order.
func (s *Store) TeamsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Team, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.TeamMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.TeamID)
	}

	tcur, err := s.teams.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer tcur.Close(ctx)

	var teams []models.Team
	if err := tcur.All(ctx, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// MembersOf returns every user on the team, in arbitrary order.
func (s *Store) MembersOf(ctx context.Context, teamID primitive.ObjectID) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{"team_id": teamID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.TeamMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.UserID)
	}

	ucur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer ucur.Close(ctx)

	var users []models.User
	if err := ucur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
