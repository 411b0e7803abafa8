// internal/domain/models/activityrecord.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity sources and event types recognized by webhook ingestion.
const (
	ActivitySourceGitHub = "github"

	EventPush              = "push"
	EventPullRequest       = "pull_request"
	EventPullRequestReview = "pull_request_review"
	EventIssues            = "issues"
	EventIssueComment      = "issue_comment"
	EventCommitComment     = "commit_comment"
	EventRelease           = "release"
)

// ActivityRecord is an immutable fact about something a user did in a
// connected tool. Records are written once by webhook ingestion and
// read back by the digest pipeline through a time-bounded query; they
// are never updated.
type ActivityRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Source         string             `bson:"source" json:"source"`         // e.g. "github"
	EventType      string             `bson:"event_type" json:"event_type"` // e.g. "push"

	// Summary is a one-line human-readable description built at ingestion
	// time ("pushed 2 commits to acme/api"); it is what the summarizer sees.
	Summary    string         `bson:"summary" json:"summary"`
	RawPayload map[string]any `bson:"raw_payload,omitempty" json:"-"`

	OccurredAt time.Time `bson:"occurred_at" json:"occurred_at"`
}
