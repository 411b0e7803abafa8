// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team is the unit a digest is aggregated over. A user receives one
// digest per team they belong to, per enabled cadence.
//
// NOTE:
//   - Member lists are not embedded on Team.
//     All membership is stored in the team_memberships collection.
type Team struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	Name           string             `bson:"name" json:"name"`
	NameCI         string             `bson:"name_ci" json:"name_ci"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`

	Status string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
