package activity_test

import (
	"testing"
	"time"

	"github.com/dalemusser/digesthub/internal/app/store/activity"
	"github.com/dalemusser/digesthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSinceReturnsOnlyRecordsInWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	store := activity.New(db)

	orgID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	otherID := primitive.NewObjectID()
	now := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	fx.CreateActivityRecord(ctx, userID, orgID, "push", "pushed 2 commits", now.Add(-2*time.Hour))
	fx.CreateActivityRecord(ctx, userID, orgID, "pull_request", "opened a pull request", now.Add(-20*time.Hour))
	fx.CreateActivityRecord(ctx, userID, orgID, "issues", "closed an issue", now.Add(-30*time.Hour))
	fx.CreateActivityRecord(ctx, otherID, orgID, "push", "pushed 1 commit", now.Add(-1*time.Hour))

	records, err := store.Since(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records in window: got %d, want 2", len(records))
	}
	for _, r := range records {
		if r.UserID != userID {
			t.Errorf("record attributed to %s, want %s", r.UserID.Hex(), userID.Hex())
		}
	}

	// Oldest first, so the digest reads chronologically.
	if !records[0].OccurredAt.Before(records[1].OccurredAt) {
		t.Errorf("records not in chronological order: %v then %v",
			records[0].OccurredAt, records[1].OccurredAt)
	}
}

func TestSinceEmptyWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := activity.New(db)

	records, err := store.Since(ctx, primitive.NewObjectID(), time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records for unknown user: got %d, want 0", len(records))
	}
}
