package membershipstore_test

import (
	"errors"
	"testing"

	membershipstore "github.com/dalemusser/digesthub/internal/app/store/memberships"
	"github.com/dalemusser/digesthub/internal/testutil"
)

func TestAddEnforcesOrgInvariant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	store := membershipstore.New(db)

	orgA := fx.CreateOrganization(ctx, "Acme", "T0001")
	orgB := fx.CreateOrganization(ctx, "Globex", "T0002")
	team := fx.CreateTeam(ctx, "Platform", orgA.ID)
	insider := fx.CreateUser(ctx, "Alice", "alice@acme.test", orgA.ID, 0)
	outsider := fx.CreateUser(ctx, "Mallory", "mallory@globex.test", orgB.ID, 0)

	if err := store.Add(ctx, team.ID, insider.ID); err != nil {
		t.Fatalf("add same-org member: %v", err)
	}
	if err := store.Add(ctx, team.ID, outsider.ID); err == nil {
		t.Error("adding a member from another organization succeeded, want error")
	}

	members, err := store.MembersOf(ctx, team.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0].ID != insider.ID {
		t.Errorf("team members: got %d, want just the same-org user", len(members))
	}
}

func TestAddRejectsDuplicateMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	store := membershipstore.New(db)

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	org := fx.CreateOrganization(ctx, "Acme", "T0001")
	team := fx.CreateTeam(ctx, "Platform", org.ID)
	user := fx.CreateUser(ctx, "Alice", "alice@acme.test", org.ID, 0)

	if err := store.Add(ctx, team.ID, user.ID); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := store.Add(ctx, team.ID, user.ID)
	if !errors.Is(err, membershipstore.ErrDuplicateMembership) {
		t.Errorf("second add: got err %v, want ErrDuplicateMembership", err)
	}
}

func TestTeamsForUserAndMembersOfExpandDocuments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	store := membershipstore.New(db)

	org := fx.CreateOrganization(ctx, "Acme", "T0001")
	platform := fx.CreateTeam(ctx, "Platform", org.ID)
	mobile := fx.CreateTeam(ctx, "Mobile", org.ID)
	alice := fx.CreateUser(ctx, "Alice", "alice@acme.test", org.ID, 0)
	bob := fx.CreateUser(ctx, "Bob", "bob@acme.test", org.ID, 0)

	fx.CreateMembership(ctx, platform.ID, alice.ID, org.ID)
	fx.CreateMembership(ctx, mobile.ID, alice.ID, org.ID)
	fx.CreateMembership(ctx, platform.ID, bob.ID, org.ID)

	teams, err := store.TeamsForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("teams for user: %v", err)
	}
	if len(teams) != 2 {
		t.Errorf("alice's teams: got %d, want 2", len(teams))
	}

	members, err := store.MembersOf(ctx, platform.ID)
	if err != nil {
		t.Fatalf("members of: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("platform members: got %d, want 2", len(members))
	}

	// A user with no memberships resolves to no teams, not an error.
	carol := fx.CreateUser(ctx, "Carol", "carol@acme.test", org.ID, 0)
	none, err := store.TeamsForUser(ctx, carol.ID)
	if err != nil {
		t.Fatalf("teams for loner: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("loner's teams: got %d, want 0", len(none))
	}
}

func TestRemoveAllForUserClearsMemberships(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	store := membershipstore.New(db)

	org := fx.CreateOrganization(ctx, "Acme", "T0001")
	platform := fx.CreateTeam(ctx, "Platform", org.ID)
	mobile := fx.CreateTeam(ctx, "Mobile", org.ID)
	alice := fx.CreateUser(ctx, "Alice", "alice@acme.test", org.ID, 0)

	fx.CreateMembership(ctx, platform.ID, alice.ID, org.ID)
	fx.CreateMembership(ctx, mobile.ID, alice.ID, org.ID)

	if err := store.RemoveAllForUser(ctx, alice.ID); err != nil {
		t.Fatalf("remove all: %v", err)
	}

	teams, err := store.TeamsForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("teams after removal: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("teams after removal: got %d, want 0", len(teams))
	}
}
