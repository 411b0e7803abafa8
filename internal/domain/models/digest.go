// internal/domain/models/digest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberSummary is the per-member audit artifact produced during a
// digest run: the summarizer's output for one team member's activity
// window. It is written once and never read back by the pipeline;
// it exists so operators can reconstruct what fed a team digest.
type MemberSummary struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TeamID       primitive.ObjectID `bson:"team_id" json:"team_id"`
	MemberUserID primitive.ObjectID `bson:"member_user_id" json:"member_user_id"`
	ForUserID    primitive.ObjectID `bson:"for_user_id" json:"for_user_id"`
	Cadence      Cadence            `bson:"cadence" json:"cadence"`
	WindowStart  time.Time          `bson:"window_start" json:"window_start"`
	SummaryText  string             `bson:"summary_text" json:"summary_text"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// TeamDigestMessage records one successfully delivered team digest.
// It is persisted only after the send succeeds, so the collection is
// an accurate delivery log rather than an intent log.
type TeamDigestMessage struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientUserID primitive.ObjectID `bson:"recipient_user_id" json:"recipient_user_id"`
	TeamID          primitive.ObjectID `bson:"team_id" json:"team_id"`
	Cadence         Cadence            `bson:"cadence" json:"cadence"`
	WindowStart     time.Time          `bson:"window_start" json:"window_start"`
	BodyText        string             `bson:"body_text" json:"body_text"`
	SentAt          time.Time          `bson:"sent_at" json:"sent_at"`
}
