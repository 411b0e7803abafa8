// internal/app/system/digest/pipeline.go

// Package digest implements the scheduling and summarization pipeline:
// the due-settings selector, the hourly tick scheduler, and the
// per-team fan-out pipeline that turns raw activity into a delivered
// team digest.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/digesthub/internal/app/system/deliver"
	"github.com/dalemusser/digesthub/internal/app/system/metrics"
	"github.com/dalemusser/digesthub/internal/app/system/schedule"
	"github.com/dalemusser/digesthub/internal/app/system/summarize"
	"github.com/dalemusser/digesthub/internal/app/system/timeouts"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoDeliveryTarget marks a run whose recipient has no linked
// delivery channel. The run is recorded as failed, never silently
// dropped.
var ErrNoDeliveryTarget = errors.New("no delivery target for recipient")

// RunState tracks a pipeline run through its lifecycle.
type RunState string

const (
	StatePending            RunState = "pending"
	StateGathering          RunState = "gathering"
	StateSummarizingMembers RunState = "summarizing-members"
	StateSummarizingTeam    RunState = "summarizing-team"
	StateDelivering         RunState = "delivering"
	StateDelivered          RunState = "delivered"
	StateFailed             RunState = "failed"
)

// Outcome is the terminal result of one (setting, team) pipeline run.
// MemberFailures counts members whose fetch or summarize step failed
// and was isolated; the run can still deliver with them noted as
// unavailable.
type Outcome struct {
	State          RunState
	Err            error
	MemberFailures int
}

// ActivitySource provides a user's activity records in a time window.
type ActivitySource interface {
	Since(ctx context.Context, userID primitive.ObjectID, from time.Time) ([]models.ActivityRecord, error)
}

// MemberSource lists the members of a team.
type MemberSource interface {
	MembersOf(ctx context.Context, teamID primitive.ObjectID) ([]models.User, error)
}

// ArtifactStore persists pipeline artifacts. Write-only from the
// pipeline's perspective.
type ArtifactStore interface {
	SaveMemberSummary(ctx context.Context, summary models.MemberSummary) error
	SaveTeamDigestMessage(ctx context.Context, msg models.TeamDigestMessage) error
}

// Pipeline runs the two-level summarization and delivery flow for one
// (setting, team) pair. All collaborators are injected; no run shares
// mutable state with another.
type Pipeline struct {
	members     MemberSource
	activity    ActivitySource
	summarizer  summarize.Summarizer
	deliverer   deliver.Deliverer
	artifacts   ArtifactStore
	memberLimit int
	log         *zap.Logger
	now         func() time.Time
}

// NewPipeline creates a digest pipeline. memberLimit bounds the
// concurrent per-member fan-out; values below 1 are treated as 1.
func NewPipeline(
	members MemberSource,
	activity ActivitySource,
	summarizer summarize.Summarizer,
	deliverer deliver.Deliverer,
	artifacts ArtifactStore,
	memberLimit int,
	log *zap.Logger,
) *Pipeline {
	if memberLimit < 1 {
		memberLimit = 1
	}
	return &Pipeline{
		members:     members,
		activity:    activity,
		summarizer:  summarizer,
		deliverer:   deliverer,
		artifacts:   artifacts,
		memberLimit: memberLimit,
		log:         log,
		now:         time.Now,
	}
}

// memberResult is one member's contribution, filled in by the fan-out.
type memberResult struct {
	section summarize.Section
	failed  bool
}

// RunForTeam executes one digest run: window computation, concurrent
// per-member gather and summarize, the join, the team rollup, target
// resolution, delivery, and the post-send artifact write.
//
// Per-member failures are recorded and isolated; they never abort
// sibling members or the run. Failures after the join fail this run
// only. Nothing retries inside the pipeline; a failed setting gets its
// next chance on its next natural due tick.
func (p *Pipeline) RunForTeam(ctx context.Context, setting models.NotificationSetting, team models.Team) Outcome {
	state := StatePending

	nowUTC := p.now().UTC()
	windowStart := schedule.WindowStart(setting.Cadence, nowUTC)

	state = StateGathering
	mctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	members, err := p.members.MembersOf(mctx, team.ID)
	cancel()
	if err != nil {
		return p.failed(setting, team, state, 0, fmt.Errorf("list team members: %w", err))
	}

	state = StateSummarizingMembers
	results := make([]memberResult, len(members))

	var g errgroup.Group
	g.SetLimit(p.memberLimit)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			results[i] = p.processMember(ctx, setting, team, member, windowStart)
			return nil
		})
	}
	// Join point: the team rollup never starts with partial member data.
	_ = g.Wait()

	memberFailures := 0
	sections := make([]summarize.Section, 0, len(results))
	for _, res := range results {
		if res.failed {
			memberFailures++
		}
		sections = append(sections, res.section)
	}

	state = StateSummarizingTeam
	sctx, cancel := context.WithTimeout(ctx, timeouts.External())
	body, err := p.summarizer.Summarize(sctx, summarize.RollupSystemPrompt, summarize.RollupUserPrompt(team.Name, sections))
	cancel()
	if err != nil {
		return p.failed(setting, team, state, memberFailures, fmt.Errorf("team rollup summarization: %w", err))
	}

	text := composeMessage(setting.Cadence, team.Name, windowStart, body)

	state = StateDelivering
	rctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	target, err := p.deliverer.ResolveTarget(rctx, setting.UserID, team.OrganizationID)
	cancel()
	if err != nil {
		if errors.Is(err, deliver.ErrNoTarget) {
			metrics.RunsTotal.WithLabelValues(metrics.StateNoDeliveryTarget).Inc()
			p.log.Warn("digest run has no delivery target",
				zap.String("setting_id", setting.ID.Hex()),
				zap.String("recipient_user_id", setting.UserID.Hex()),
				zap.String("team_id", team.ID.Hex()),
			)
			return Outcome{State: StateFailed, Err: ErrNoDeliveryTarget, MemberFailures: memberFailures}
		}
		return p.failed(setting, team, state, memberFailures, fmt.Errorf("resolve delivery target: %w", err))
	}

	dctx, cancel := context.WithTimeout(ctx, timeouts.External())
	err = p.deliverer.Send(dctx, target, text)
	cancel()
	if err != nil {
		return p.failed(setting, team, state, memberFailures, fmt.Errorf("deliver digest: %w", err))
	}

	// The send succeeded; the stored record is a delivery log, not an
	// intent log. A write failure here is logged but cannot unsend.
	actx, cancel := context.WithTimeout(ctx, timeouts.Short())
	err = p.artifacts.SaveTeamDigestMessage(actx, models.TeamDigestMessage{
		RecipientUserID: setting.UserID,
		TeamID:          team.ID,
		Cadence:         setting.Cadence,
		WindowStart:     windowStart,
		BodyText:        text,
		SentAt:          p.now().UTC(),
	})
	cancel()
	if err != nil {
		p.log.Error("delivered digest but failed to persist message record",
			zap.Error(err),
			zap.String("setting_id", setting.ID.Hex()),
			zap.String("team_id", team.ID.Hex()),
		)
	}

	metrics.RunsTotal.WithLabelValues(metrics.StateDelivered).Inc()
	return Outcome{State: StateDelivered, MemberFailures: memberFailures}
}

// processMember gathers and summarizes one member's window. Every
// failure path returns a section noting the member's data was
// unavailable so the rollup stays complete.
func (p *Pipeline) processMember(ctx context.Context, setting models.NotificationSetting, team models.Team, member models.User, windowStart time.Time) memberResult {
	name := member.FullName
	if name == "" {
		name = member.Email
	}

	actx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	records, err := p.activity.Since(actx, member.ID, windowStart)
	cancel()
	if err != nil {
		p.recordMemberFailure(member, team, "fetch activity", err)
		return memberResult{
			section: summarize.Section{MemberName: name, Summary: "Activity could not be retrieved for this period."},
			failed:  true,
		}
	}

	summaryText := summarize.NoActivityLine
	if len(records) > 0 {
		sctx, cancel := context.WithTimeout(ctx, timeouts.External())
		summaryText, err = p.summarizer.Summarize(sctx, summarize.ActivitySystemPrompt, summarize.MemberUserPrompt(name, windowStart, records))
		cancel()
		if err != nil {
			p.recordMemberFailure(member, team, "summarize activity", err)
			return memberResult{
				section: summarize.Section{MemberName: name, Summary: "Activity could not be summarized for this period."},
				failed:  true,
			}
		}
	}

	wctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	err = p.artifacts.SaveMemberSummary(wctx, models.MemberSummary{
		TeamID:       team.ID,
		MemberUserID: member.ID,
		ForUserID:    setting.UserID,
		Cadence:      setting.Cadence,
		WindowStart:  windowStart,
		SummaryText:  summaryText,
	})
	cancel()
	if err != nil {
		// Audit artifact only; the digest still includes this member.
		p.log.Warn("failed to persist member summary",
			zap.Error(err),
			zap.String("member_user_id", member.ID.Hex()),
			zap.String("team_id", team.ID.Hex()),
		)
	}

	return memberResult{section: summarize.Section{MemberName: name, Summary: summaryText}}
}

func (p *Pipeline) recordMemberFailure(member models.User, team models.Team, step string, err error) {
	metrics.MemberFailuresTotal.Inc()
	p.log.Warn("member step failed, continuing without it",
		zap.String("step", step),
		zap.Error(err),
		zap.String("member_user_id", member.ID.Hex()),
		zap.String("team_id", team.ID.Hex()),
	)
}

func (p *Pipeline) failed(setting models.NotificationSetting, team models.Team, state RunState, memberFailures int, err error) Outcome {
	metrics.RunsTotal.WithLabelValues(metrics.StateFailed).Inc()
	p.log.Error("digest run failed",
		zap.Error(err),
		zap.String("state", string(state)),
		zap.String("setting_id", setting.ID.Hex()),
		zap.String("team_id", team.ID.Hex()),
		zap.Int("member_failures", memberFailures),
	)
	return Outcome{State: StateFailed, Err: err, MemberFailures: memberFailures}
}

func composeMessage(cadence models.Cadence, teamName string, windowStart time.Time, body string) string {
	return fmt.Sprintf("*%s digest for %s* (activity since %s)\n\n%s",
		cadenceLabel(cadence), teamName, windowStart.UTC().Format("Jan 2, 2006"), body)
}

func cadenceLabel(c models.Cadence) string {
	switch c {
	case models.CadenceDaily:
		return "Daily"
	case models.CadenceWeekly:
		return "Weekly"
	case models.CadenceMonthly:
		return "Monthly"
	default:
		return string(c)
	}
}
