// internal/app/store/digests/digeststore.go
package digeststore

import (
	"context"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists digest artifacts: per-member summaries kept for audit
// and the team digest messages that record what was actually sent.
// The pipeline only ever writes here.
type Store struct {
	summaries *mongo.Collection
	messages  *mongo.Collection
}

// New creates a new digest artifact store.
func New(db *mongo.Database) *Store {
	return &Store{
		summaries: db.Collection("member_summaries"),
		messages:  db.Collection("team_digest_messages"),
	}
}

// EnsureIndexes creates indexes for operator-facing history queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.summaries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("idx_summaries_team_time"),
	}); err != nil {
		return err
	}
	_, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "recipient_user_id", Value: 1}, {Key: "sent_at", Value: -1}},
		Options: options.Index().SetName("idx_messages_recipient_time"),
	})
	return err
}

// SaveMemberSummary records one member's summary as an audit artifact.
func (s *Store) SaveMemberSummary(ctx context.Context, summary models.MemberSummary) error {
	if summary.ID.IsZero() {
		summary.ID = primitive.NewObjectID()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.summaries.InsertOne(ctx, summary)
	return err
}

// SaveTeamDigestMessage records a digest that was successfully delivered.
func (s *Store) SaveTeamDigestMessage(ctx context.Context, msg models.TeamDigestMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	_, err := s.messages.InsertOne(ctx, msg)
	return err
}

// RecentMessagesFor returns a user's most recent digest messages,
// newest first. Operator/debug surface only.
func (s *Store) RecentMessagesFor(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.TeamDigestMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.messages.Find(ctx, bson.M{"recipient_user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []models.TeamDigestMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
