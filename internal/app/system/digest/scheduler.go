// internal/app/system/digest/scheduler.go
package digest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/digesthub/internal/app/system/metrics"
	"github.com/dalemusser/digesthub/internal/app/system/timeouts"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DueSource selects the settings due for a tick.
type DueSource interface {
	DueNow(ctx context.Context, nowUTC time.Time) (DueSettings, error)
}

// TeamSource resolves a user's team memberships.
type TeamSource interface {
	TeamsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Team, error)
}

// Runner executes one (setting, team) pipeline run.
type Runner interface {
	RunForTeam(ctx context.Context, setting models.NotificationSetting, team models.Team) Outcome
}

// TickReport summarizes one tick for the trigger endpoint and logs.
// TickID correlates the report with the log lines of its runs.
type TickReport struct {
	TickID    string `json:"tick_id"`
	Due       int    `json:"due"`
	Runs      int    `json:"runs"`
	Delivered int    `json:"delivered"`
	NoTarget  int    `json:"no_target"`
	Failed    int    `json:"failed"`
}

// Scheduler is the hourly tick entry point. The tick is driven by an
// external timer; the scheduler holds no timers of its own between
// ticks, and overlapping ticks run independently without cancelling
// each other.
type Scheduler struct {
	selector DueSource
	teams    TeamSource
	runner   Runner
	runLimit int
	log      *zap.Logger
}

// NewScheduler creates a tick scheduler. runLimit bounds the concurrent
// (setting, team) pipeline runs per tick; values below 1 are treated
// as 1.
func NewScheduler(selector DueSource, teams TeamSource, runner Runner, runLimit int, log *zap.Logger) *Scheduler {
	if runLimit < 1 {
		runLimit = 1
	}
	return &Scheduler{
		selector: selector,
		teams:    teams,
		runner:   runner,
		runLimit: runLimit,
		log:      log,
	}
}

// RunTick processes one scheduling tick at nowUTC: select the due
// settings, then run one pipeline per (setting, team) pair under the
// concurrency limit. The tick completes when every launched run has
// terminated; individual run failures are counted, never propagated.
// Re-running the same tick selects the same settings and re-attempts
// the same deliveries; at-least-once is the accepted contract.
func (s *Scheduler) RunTick(ctx context.Context, nowUTC time.Time) (TickReport, error) {
	metrics.TicksTotal.Inc()
	tickID := uuid.NewString()

	due, err := s.selector.DueNow(ctx, nowUTC)
	if err != nil {
		return TickReport{}, err
	}

	settings := due.All()
	report := TickReport{TickID: tickID, Due: len(settings)}
	if len(settings) == 0 {
		s.log.Debug("tick selected no due settings",
			zap.String("tick_id", tickID), zap.Time("now_utc", nowUTC))
		return report, nil
	}

	type pair struct {
		setting models.NotificationSetting
		team    models.Team
	}
	var pairs []pair
	for _, setting := range settings {
		tctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		teams, err := s.teams.TeamsForUser(tctx, setting.UserID)
		cancel()
		if err != nil {
			report.Failed++
			s.log.Error("failed to resolve teams for due setting",
				zap.Error(err),
				zap.String("setting_id", setting.ID.Hex()),
				zap.String("user_id", setting.UserID.Hex()),
			)
			continue
		}
		for _, team := range teams {
			pairs = append(pairs, pair{setting: setting, team: team})
		}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.runLimit)
	for _, pr := range pairs {
		pr := pr
		g.Go(func() error {
			rctx, cancel := timeouts.WithTimeout(ctx, timeouts.Batch(), s.log, "team digest run")
			outcome := s.runner.RunForTeam(rctx, pr.setting, pr.team)
			cancel()

			mu.Lock()
			report.Runs++
			switch {
			case outcome.State == StateDelivered:
				report.Delivered++
			case errors.Is(outcome.Err, ErrNoDeliveryTarget):
				report.NoTarget++
			default:
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("tick complete",
		zap.String("tick_id", tickID),
		zap.Time("now_utc", nowUTC),
		zap.Int("due", report.Due),
		zap.Int("runs", report.Runs),
		zap.Int("delivered", report.Delivered),
		zap.Int("no_target", report.NoTarget),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
