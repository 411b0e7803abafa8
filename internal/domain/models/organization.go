// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is the tenant an integration installation belongs to.
// It maps one-to-one to the external workspace the app was installed
// into (for Slack, the workspace or enterprise grid).
type Organization struct {
	ID                primitive.ObjectID `bson:"_id" json:"id"`
	Name              string             `bson:"name" json:"name"`
	NameCI            string             `bson:"name_ci" json:"name_ci"`
	SlackID           string             `bson:"slack_id,omitempty" json:"slack_id,omitempty"`
	IsSlackEnterprise bool               `bson:"is_slack_enterprise,omitempty" json:"is_slack_enterprise,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
