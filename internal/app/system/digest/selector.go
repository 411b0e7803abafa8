// internal/app/system/digest/selector.go
package digest

import (
	"context"
	"time"

	"github.com/dalemusser/digesthub/internal/app/system/schedule"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.uber.org/zap"
)

// SettingsSource is the slice of the settings store the selector needs.
type SettingsSource interface {
	DueDaily(ctx context.Context, hourUTC int) ([]models.NotificationSetting, error)
	DueWeekly(ctx context.Context, hourUTC, dayOfWeekUTC int) ([]models.NotificationSetting, error)
	DueMonthly(ctx context.Context, hourUTC, monthMarker int) ([]models.NotificationSetting, error)
}

// DueSettings is one tick's selection, grouped by cadence.
type DueSettings struct {
	Daily   []models.NotificationSetting
	Weekly  []models.NotificationSetting
	Monthly []models.NotificationSetting
}

// All returns the union of the three cadence groups.
func (d DueSettings) All() []models.NotificationSetting {
	out := make([]models.NotificationSetting, 0, len(d.Daily)+len(d.Weekly)+len(d.Monthly))
	out = append(out, d.Daily...)
	out = append(out, d.Weekly...)
	out = append(out, d.Monthly...)
	return out
}

// Selector decides which settings must fire for a given tick. It is a
// pure function of the tick time and the current settings, so re-running
// the same tick selects the same set.
type Selector struct {
	settings SettingsSource
	log      *zap.Logger
}

// NewSelector creates a due-settings selector.
func NewSelector(settings SettingsSource, log *zap.Logger) *Selector {
	return &Selector{settings: settings, log: log}
}

// DueNow returns every enabled setting whose UTC-normalized timing
// matches nowUTC. Empty groups are the normal case. Monthly settings
// can only match on the first or last day of the month.
//
// Daily settings carry a day-shift flag recorded at normalization time;
// a setting whose stored fields are mutually inconsistent (the implied
// timezone offset falls outside the real-world range) is a configuration
// error: it is logged and skipped, never fired on the wrong day.
func (s *Selector) DueNow(ctx context.Context, nowUTC time.Time) (DueSettings, error) {
	markers := schedule.MarkersAt(nowUTC)

	var due DueSettings

	daily, err := s.settings.DueDaily(ctx, markers.Hour)
	if err != nil {
		return DueSettings{}, err
	}
	for _, setting := range daily {
		if !schedule.DayShiftConsistent(setting.LocalHour, setting.HourUTC, setting.DailyUTCOffset) {
			s.log.Error("daily setting has inconsistent timing fields, skipping",
				zap.String("setting_id", setting.ID.Hex()),
				zap.String("user_id", setting.UserID.Hex()),
				zap.Int("local_hour", setting.LocalHour),
				zap.Int("hour_utc", setting.HourUTC),
				zap.Int("daily_utc_offset", setting.DailyUTCOffset),
			)
			continue
		}
		due.Daily = append(due.Daily, setting)
	}

	due.Weekly, err = s.settings.DueWeekly(ctx, markers.Hour, markers.DayOfWeek)
	if err != nil {
		return DueSettings{}, err
	}

	// Mid-month ticks cannot match any monthly setting.
	if markers.MonthMarker != 0 {
		due.Monthly, err = s.settings.DueMonthly(ctx, markers.Hour, markers.MonthMarker)
		if err != nil {
			return DueSettings{}, err
		}
	}

	return due, nil
}
