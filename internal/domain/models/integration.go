// internal/domain/models/integration.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Integration names recognized by the installation and account stores.
const (
	IntegrationSlack  = "slack"
	IntegrationGitHub = "github"
)

// IntegrationInstallation is one installed instance of an external
// integration: a Slack workspace install or a GitHub App installation.
// AccessToken is the current credential for API calls against that
// installation and is rotated by the resilient fetch wrapper when the
// upstream rejects it.
type IntegrationInstallation struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	IntegrationName string              `bson:"integration_name" json:"integration_name"`
	ExternalID      string              `bson:"external_id" json:"external_id"` // Slack team ID or GitHub installation ID
	AccountName     string              `bson:"account_name,omitempty" json:"account_name,omitempty"`
	AccessToken     string              `bson:"access_token,omitempty" json:"-"`
	OrganizationID  *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	Data            map[string]any      `bson:"data,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IntegrationAccount links a DigestHub user to one external identity
// within an organization (their Slack user ID, their GitHub login).
// Delivery resolves a user's Slack target through this record, and
// webhook ingestion attributes external events to users through it.
type IntegrationAccount struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IntegrationName string             `bson:"integration_name" json:"integration_name"`
	ExternalID      string             `bson:"external_id" json:"external_id"` // Slack user ID or GitHub login
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrganizationID  primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Username        string             `bson:"username,omitempty" json:"username,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
