// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a person who receives digests and whose activity is
// summarized for teammates.
//
// NOTE:
//   - Team membership is not embedded on User.
//     Use the team_memberships collection to discover a user's teams.
//   - TzOffsetMinutes is the user's offset from UTC in minutes, positive
//     east of UTC (Slack reports seconds; ingestion divides by 60).
//     Notification settings must be re-normalized whenever it changes.
type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName       string              `bson:"full_name" json:"full_name"`
	FullNameCI     string              `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email          string              `bson:"email" json:"email"`
	PictureURL     string              `bson:"picture_url,omitempty" json:"picture_url,omitempty"`
	Status         string              `bson:"status,omitempty" json:"status,omitempty"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`

	Tz              string `bson:"tz,omitempty" json:"tz,omitempty"`             // e.g. "America/Chicago"
	TzLabel         string `bson:"tz_label,omitempty" json:"tz_label,omitempty"` // e.g. "Central Daylight Time"
	TzOffsetMinutes int    `bson:"tz_offset_minutes" json:"tz_offset_minutes"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
