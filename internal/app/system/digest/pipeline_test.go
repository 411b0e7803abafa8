// internal/app/system/digest/pipeline_test.go
package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/digesthub/internal/app/system/deliver"
	"github.com/dalemusser/digesthub/internal/app/system/summarize"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeMembers struct {
	members []models.User
	err     error
}

func (f *fakeMembers) MembersOf(ctx context.Context, teamID primitive.ObjectID) ([]models.User, error) {
	return f.members, f.err
}

type fakeActivity struct {
	records map[primitive.ObjectID][]models.ActivityRecord
	errFor  map[primitive.ObjectID]error
}

func (f *fakeActivity) Since(ctx context.Context, userID primitive.ObjectID, from time.Time) ([]models.ActivityRecord, error) {
	if err := f.errFor[userID]; err != nil {
		return nil, err
	}
	return f.records[userID], nil
}

type fakeSummarizer struct {
	mu         sync.Mutex
	calls      []string // system prompts, in call order
	rollupIn   string
	rollupErr  error
	summaryErr error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, systemPrompt, userContent string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, systemPrompt)
	f.mu.Unlock()

	if systemPrompt == summarize.RollupSystemPrompt {
		if f.rollupErr != nil {
			return "", f.rollupErr
		}
		f.mu.Lock()
		f.rollupIn = userContent
		f.mu.Unlock()
		return "rollup: " + userContent, nil
	}
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return "summary of: " + userContent, nil
}

type fakeDeliverer struct {
	mu        sync.Mutex
	target    deliver.Target
	targetErr error
	sendErr   error
	sent      []string
}

func (f *fakeDeliverer) ResolveTarget(ctx context.Context, userID, orgID primitive.ObjectID) (deliver.Target, error) {
	return f.target, f.targetErr
}

func (f *fakeDeliverer) Send(ctx context.Context, target deliver.Target, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return nil
}

type fakeArtifacts struct {
	mu        sync.Mutex
	summaries []models.MemberSummary
	messages  []models.TeamDigestMessage
}

func (f *fakeArtifacts) SaveMemberSummary(ctx context.Context, s models.MemberSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return nil
}

func (f *fakeArtifacts) SaveTeamDigestMessage(ctx context.Context, m models.TeamDigestMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeArtifacts) summaryFor(userID primitive.ObjectID) (models.MemberSummary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.summaries {
		if s.MemberUserID == userID {
			return s, true
		}
	}
	return models.MemberSummary{}, false
}

func testSetting(userID primitive.ObjectID, cadence models.Cadence) models.NotificationSetting {
	return models.NotificationSetting{
		ID:      primitive.NewObjectID(),
		UserID:  userID,
		Cadence: cadence,
		Enabled: true,
	}
}

func testTeam(name string) models.Team {
	return models.Team{
		ID:             primitive.NewObjectID(),
		Name:           name,
		OrganizationID: primitive.NewObjectID(),
	}
}

func activityRecords(userID primitive.ObjectID, summaries ...string) []models.ActivityRecord {
	records := make([]models.ActivityRecord, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, models.ActivityRecord{
			ID:         primitive.NewObjectID(),
			UserID:     userID,
			Summary:    s,
			OccurredAt: time.Now().UTC().Add(-time.Hour),
		})
	}
	return records
}

func TestRunForTeamDeliversDigest(t *testing.T) {
	alice := models.User{ID: primitive.NewObjectID(), FullName: "Alice"}
	bob := models.User{ID: primitive.NewObjectID(), FullName: "Bob"}
	owner := primitive.NewObjectID()
	team := testTeam("Platform")
	setting := testSetting(owner, models.CadenceDaily)

	sum := &fakeSummarizer{}
	del := &fakeDeliverer{target: deliver.Target{ChannelID: "D123"}}
	art := &fakeArtifacts{}
	p := NewPipeline(
		&fakeMembers{members: []models.User{alice, bob}},
		&fakeActivity{records: map[primitive.ObjectID][]models.ActivityRecord{
			alice.ID: activityRecords(alice.ID, "pushed 2 commits to main", "opened a pull request"),
		}},
		sum, del, art, 4, zap.NewNop(),
	)

	outcome := p.RunForTeam(context.Background(), setting, team)

	if outcome.State != StateDelivered {
		t.Fatalf("state = %v (err %v), want %v", outcome.State, outcome.Err, StateDelivered)
	}
	if outcome.MemberFailures != 0 {
		t.Errorf("member failures = %d, want 0", outcome.MemberFailures)
	}

	aliceSummary, ok := art.summaryFor(alice.ID)
	if !ok {
		t.Fatal("no member summary persisted for Alice")
	}
	if !strings.Contains(aliceSummary.SummaryText, "pushed 2 commits") {
		t.Errorf("Alice summary = %q, want it to cover her commits", aliceSummary.SummaryText)
	}
	bobSummary, ok := art.summaryFor(bob.ID)
	if !ok {
		t.Fatal("no member summary persisted for Bob")
	}
	if bobSummary.SummaryText != summarize.NoActivityLine {
		t.Errorf("Bob summary = %q, want %q", bobSummary.SummaryText, summarize.NoActivityLine)
	}

	if len(del.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(del.sent))
	}
	msg := del.sent[0]
	if !strings.Contains(msg, "Daily digest for Platform") {
		t.Errorf("message %q missing header", msg)
	}
	if !strings.Contains(sum.rollupIn, "Alice") || !strings.Contains(sum.rollupIn, "Bob") {
		t.Errorf("rollup input %q missing a member section", sum.rollupIn)
	}
	if !strings.Contains(sum.rollupIn, summarize.NoActivityLine) {
		t.Errorf("rollup input %q should note Bob had no activity", sum.rollupIn)
	}

	if len(art.messages) != 1 {
		t.Fatalf("persisted %d digest messages, want 1", len(art.messages))
	}
	got := art.messages[0]
	if got.RecipientUserID != owner {
		t.Errorf("recipient = %v, want setting owner %v", got.RecipientUserID, owner)
	}
	if got.TeamID != team.ID || got.Cadence != models.CadenceDaily {
		t.Errorf("message team/cadence = %v/%v, want %v/%v", got.TeamID, got.Cadence, team.ID, models.CadenceDaily)
	}
	if got.BodyText != msg {
		t.Error("persisted body differs from sent text")
	}
}

func TestRunForTeamIsolatesMemberFailure(t *testing.T) {
	a := models.User{ID: primitive.NewObjectID(), FullName: "A"}
	b := models.User{ID: primitive.NewObjectID(), FullName: "B"}
	c := models.User{ID: primitive.NewObjectID(), FullName: "C"}
	team := testTeam("Infra")
	setting := testSetting(primitive.NewObjectID(), models.CadenceWeekly)

	sum := &fakeSummarizer{}
	art := &fakeArtifacts{}
	p := NewPipeline(
		&fakeMembers{members: []models.User{a, b, c}},
		&fakeActivity{
			records: map[primitive.ObjectID][]models.ActivityRecord{
				a.ID: activityRecords(a.ID, "merged a release"),
				c.ID: activityRecords(c.ID, "fixed a flaky test"),
			},
			errFor: map[primitive.ObjectID]error{b.ID: errors.New("upstream timeout")},
		},
		sum,
		&fakeDeliverer{target: deliver.Target{ChannelID: "D1"}},
		art, 4, zap.NewNop(),
	)

	outcome := p.RunForTeam(context.Background(), setting, team)

	if outcome.State != StateDelivered {
		t.Fatalf("state = %v (err %v), want delivered despite B's failure", outcome.State, outcome.Err)
	}
	if outcome.MemberFailures != 1 {
		t.Errorf("member failures = %d, want 1", outcome.MemberFailures)
	}
	if _, ok := art.summaryFor(a.ID); !ok {
		t.Error("no member summary persisted for A")
	}
	if _, ok := art.summaryFor(c.ID); !ok {
		t.Error("no member summary persisted for C")
	}
	if _, ok := art.summaryFor(b.ID); ok {
		t.Error("member summary persisted for B despite failed fetch")
	}
	if !strings.Contains(sum.rollupIn, "could not be retrieved") {
		t.Errorf("rollup input %q should note B's data was unavailable", sum.rollupIn)
	}
}

func TestRunForTeamNoDeliveryTarget(t *testing.T) {
	member := models.User{ID: primitive.NewObjectID(), FullName: "Solo"}
	team := testTeam("Ops")
	setting := testSetting(primitive.NewObjectID(), models.CadenceDaily)

	del := &fakeDeliverer{targetErr: deliver.ErrNoTarget}
	art := &fakeArtifacts{}
	p := NewPipeline(
		&fakeMembers{members: []models.User{member}},
		&fakeActivity{},
		&fakeSummarizer{}, del, art, 4, zap.NewNop(),
	)

	outcome := p.RunForTeam(context.Background(), setting, team)

	if outcome.State != StateFailed {
		t.Fatalf("state = %v, want failed", outcome.State)
	}
	if !errors.Is(outcome.Err, ErrNoDeliveryTarget) {
		t.Errorf("err = %v, want ErrNoDeliveryTarget", outcome.Err)
	}
	if len(del.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(del.sent))
	}
	if len(art.messages) != 0 {
		t.Errorf("persisted %d digest messages, want 0", len(art.messages))
	}
}

func TestRunForTeamRollupFailureFailsRun(t *testing.T) {
	member := models.User{ID: primitive.NewObjectID(), FullName: "M"}
	team := testTeam("Core")
	setting := testSetting(primitive.NewObjectID(), models.CadenceDaily)

	del := &fakeDeliverer{target: deliver.Target{ChannelID: "D1"}}
	art := &fakeArtifacts{}
	p := NewPipeline(
		&fakeMembers{members: []models.User{member}},
		&fakeActivity{records: map[primitive.ObjectID][]models.ActivityRecord{
			member.ID: activityRecords(member.ID, "did things"),
		}},
		&fakeSummarizer{rollupErr: errors.New("model unavailable")},
		del, art, 4, zap.NewNop(),
	)

	outcome := p.RunForTeam(context.Background(), setting, team)

	if outcome.State != StateFailed {
		t.Fatalf("state = %v, want failed", outcome.State)
	}
	if len(del.sent) != 0 {
		t.Errorf("sent %d messages after rollup failure, want 0", len(del.sent))
	}
	if len(art.messages) != 0 {
		t.Errorf("persisted %d digest messages, want 0", len(art.messages))
	}
}

func TestRunForTeamSendFailureLeavesNoRecord(t *testing.T) {
	member := models.User{ID: primitive.NewObjectID(), FullName: "M"}
	team := testTeam("Core")
	setting := testSetting(primitive.NewObjectID(), models.CadenceMonthly)

	art := &fakeArtifacts{}
	p := NewPipeline(
		&fakeMembers{members: []models.User{member}},
		&fakeActivity{},
		&fakeSummarizer{},
		&fakeDeliverer{target: deliver.Target{ChannelID: "D1"}, sendErr: errors.New("channel_not_found")},
		art, 4, zap.NewNop(),
	)

	outcome := p.RunForTeam(context.Background(), setting, team)

	if outcome.State != StateFailed {
		t.Fatalf("state = %v, want failed", outcome.State)
	}
	if len(art.messages) != 0 {
		t.Errorf("persisted %d digest messages after failed send, want 0", len(art.messages))
	}
}

func TestRunForTeamWindowStartByCadence(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	member := models.User{ID: primitive.NewObjectID(), FullName: "M"}
	team := testTeam("Core")

	tests := []struct {
		cadence models.Cadence
		want    time.Time
	}{
		{models.CadenceDaily, now.Add(-24 * time.Hour)},
		{models.CadenceWeekly, now.AddDate(0, 0, -7)},
		{models.CadenceMonthly, now.AddDate(0, 0, -31)}, // March has 31 days
	}
	for _, tt := range tests {
		art := &fakeArtifacts{}
		p := NewPipeline(
			&fakeMembers{members: []models.User{member}},
			&fakeActivity{},
			&fakeSummarizer{},
			&fakeDeliverer{target: deliver.Target{ChannelID: "D1"}},
			art, 4, zap.NewNop(),
		)
		p.now = func() time.Time { return now }

		outcome := p.RunForTeam(context.Background(), testSetting(primitive.NewObjectID(), tt.cadence), team)
		if outcome.State != StateDelivered {
			t.Fatalf("%s: state = %v, want delivered", tt.cadence, outcome.State)
		}
		if len(art.messages) != 1 {
			t.Fatalf("%s: persisted %d messages, want 1", tt.cadence, len(art.messages))
		}
		if got := art.messages[0].WindowStart; !got.Equal(tt.want) {
			t.Errorf("%s: window start = %v, want %v", tt.cadence, got, tt.want)
		}
	}
}
