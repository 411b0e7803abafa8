// internal/app/system/schedule/schedule.go

// Package schedule holds the pure timing math behind digest scheduling:
// converting a user's locally-expressed notification preference into the
// UTC-normalized mirror the hourly selector matches against, and back.
//
// Everything here is a pure function of its inputs. Normalization is
// deterministic, which is what makes re-syncing a user's settings after a
// timezone change idempotent.
package schedule

import (
	"fmt"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
)

// Real-world timezone offsets run from UTC-12:00 to UTC+14:00.
const (
	minOffsetHours = -12
	maxOffsetHours = 14
)

// ConfigError reports timing fields that cannot be normalized. Settings
// are validated on write, so seeing one of these at selection time means
// stored data has drifted from the invariants.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid notification timing: " + e.Reason
}

// TimingInput is the typed per-cadence timing a user submits. Only the
// fields relevant to Cadence are meaningful: Hour always, DayOfWeek for
// weekly, DayOfMonth for monthly.
type TimingInput struct {
	Cadence    models.Cadence
	Hour       int // 0..23, user-local
	DayOfWeek  int // weekly: Sunday = 0 .. Saturday = 6
	DayOfMonth int // monthly: models.FirstOfMonth or models.LastOfMonth
}

// Validate checks the input against its cadence's field domains.
func (in TimingInput) Validate() error {
	if !in.Cadence.Valid() {
		return &ConfigError{Reason: fmt.Sprintf("unknown cadence %q", in.Cadence)}
	}
	if in.Hour < 0 || in.Hour > 23 {
		return &ConfigError{Reason: fmt.Sprintf("hour %d out of range [0,23]", in.Hour)}
	}
	switch in.Cadence {
	case models.CadenceWeekly:
		if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
			return &ConfigError{Reason: fmt.Sprintf("day of week %d out of range [0,6]", in.DayOfWeek)}
		}
	case models.CadenceMonthly:
		if in.DayOfMonth != models.FirstOfMonth && in.DayOfMonth != models.LastOfMonth {
			return &ConfigError{Reason: fmt.Sprintf("day of month %d must be first (1) or last (-1)", in.DayOfMonth)}
		}
	}
	return nil
}

// UTCSchedule is the timezone-independent mirror of a TimingInput.
type UTCSchedule struct {
	HourUTC        int
	DailyUTCOffset int // daily: -1/0/+1, the UTC day shift induced by the hour wrap
	DayOfWeekUTC   int // weekly
	DayOfMonthUTC  int // monthly, stays in {1,-1}
}

// ToUTC converts a local timing preference into its UTC schedule given
// the owning user's offset from UTC in minutes (positive east of UTC).
//
// The UTC hour is localHour - offset; when that falls outside [0,23] it
// wraps into range and the induced day shift is recorded: -1 when the
// wrap moved the event to the previous UTC calendar day, +1 to the next.
// Weekly day-of-week shifts with the wrap (mod 7). Monthly day-of-month
// is an encoded marker (1 = first, -1 = last); a wrap increments or
// decrements the marker, and any result outside {1,-1} is a ConfigError
// rather than a guess at a wider day scheme.
func ToUTC(in TimingInput, offsetMinutes int) (UTCSchedule, error) {
	if err := in.Validate(); err != nil {
		return UTCSchedule{}, err
	}

	hour, shift := wrapHour(in.Hour - offsetMinutes/60)
	out := UTCSchedule{HourUTC: hour}

	switch in.Cadence {
	case models.CadenceDaily:
		out.DailyUTCOffset = shift
	case models.CadenceWeekly:
		out.DayOfWeekUTC = (in.DayOfWeek + shift + 7) % 7
	case models.CadenceMonthly:
		marker := in.DayOfMonth + shift
		if marker != models.FirstOfMonth && marker != models.LastOfMonth {
			return UTCSchedule{}, &ConfigError{
				Reason: fmt.Sprintf("monthly hour wrap pushes day marker %d to %d, outside {1,-1}", in.DayOfMonth, marker),
			}
		}
		out.DayOfMonthUTC = marker
	}
	return out, nil
}

// FromUTC reconstructs the local timing from a stored UTC schedule and
// the user's current offset. ToUTC followed by FromUTC with the same
// offset returns the original input.
func FromUTC(cadence models.Cadence, sched UTCSchedule, offsetMinutes int) (TimingInput, error) {
	if !cadence.Valid() {
		return TimingInput{}, &ConfigError{Reason: fmt.Sprintf("unknown cadence %q", cadence)}
	}
	if sched.HourUTC < 0 || sched.HourUTC > 23 {
		return TimingInput{}, &ConfigError{Reason: fmt.Sprintf("UTC hour %d out of range [0,23]", sched.HourUTC)}
	}

	// Reversing the wrap: local = utc + offset, and wrapping forward past
	// 23 means the original normalization wrapped backward (shift -1).
	hour, reverse := wrapHour(sched.HourUTC + offsetMinutes/60)
	shift := -reverse

	in := TimingInput{Cadence: cadence, Hour: hour}
	switch cadence {
	case models.CadenceWeekly:
		in.DayOfWeek = (sched.DayOfWeekUTC - shift + 7) % 7
	case models.CadenceMonthly:
		marker := sched.DayOfMonthUTC - shift
		if marker != models.FirstOfMonth && marker != models.LastOfMonth {
			return TimingInput{}, &ConfigError{
				Reason: fmt.Sprintf("monthly hour unwrap pushes day marker %d to %d, outside {1,-1}", sched.DayOfMonthUTC, marker),
			}
		}
		in.DayOfMonth = marker
	}
	return in, nil
}

// wrapHour brings h into [0,23] and reports the day shift the wrap
// induced: -1 for the previous day, +1 for the next. Offsets are at most
// 14 hours so a single wrap always suffices.
func wrapHour(h int) (hour, shift int) {
	switch {
	case h < 0:
		return h + 24, -1
	case h > 23:
		return h - 24, +1
	default:
		return h, 0
	}
}

// Renormalize recomputes a setting's UTC mirror fields from its local
// fields and the owner's current offset, in place.
func Renormalize(s *models.NotificationSetting, offsetMinutes int) error {
	sched, err := ToUTC(TimingInput{
		Cadence:    s.Cadence,
		Hour:       s.LocalHour,
		DayOfWeek:  s.LocalDayOfWeek,
		DayOfMonth: s.LocalDayOfMonth,
	}, offsetMinutes)
	if err != nil {
		return err
	}
	s.HourUTC = sched.HourUTC
	s.DailyUTCOffset = sched.DailyUTCOffset
	s.DayOfWeekUTC = sched.DayOfWeekUTC
	s.DayOfMonthUTC = sched.DayOfMonthUTC
	return nil
}

// DayShiftConsistent reports whether a stored daily day-shift flag could
// have been produced by normalizing localHour into hourUTC for any
// real-world timezone offset. The selector uses this to reproduce the
// day-boundary rule at match time: a daily setting fires only on ticks
// whose hour and shift agree with how it was normalized.
func DayShiftConsistent(localHour, hourUTC, shift int) bool {
	if shift < -1 || shift > 1 {
		return false
	}
	// hourUTC = localHour - offset + 24*(-shift)  =>  offset = localHour - hourUTC - 24*shift
	offset := localHour - hourUTC - 24*shift
	return offset >= minOffsetHours && offset <= maxOffsetHours
}

// TickMarkers are the calendar coordinates of one hourly scheduler tick,
// precomputed once and compared against stored UTC schedules.
type TickMarkers struct {
	Hour        int // 0..23
	DayOfWeek   int // Sunday = 0, matching the stored encoding
	MonthMarker int // 1 on the 1st, -1 on the last day of the month, else 0 (no monthly match possible)
}

// MarkersAt computes the tick markers for a UTC instant.
func MarkersAt(nowUTC time.Time) TickMarkers {
	nowUTC = nowUTC.UTC()
	m := TickMarkers{
		Hour:      nowUTC.Hour(),
		DayOfWeek: int(nowUTC.Weekday()),
	}
	switch nowUTC.Day() {
	case 1:
		m.MonthMarker = models.FirstOfMonth
	case DaysInMonth(nowUTC.Year(), nowUTC.Month()):
		m.MonthMarker = models.LastOfMonth
	}
	return m
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WindowStart returns the beginning of the activity window a digest
// covers: 24 hours for daily, 7 days for weekly, and one full calendar
// month (the length of the current month) for monthly.
func WindowStart(cadence models.Cadence, now time.Time) time.Time {
	now = now.UTC()
	switch cadence {
	case models.CadenceWeekly:
		return now.AddDate(0, 0, -7)
	case models.CadenceMonthly:
		return now.AddDate(0, 0, -DaysInMonth(now.Year(), now.Month()))
	default:
		return now.Add(-24 * time.Hour)
	}
}

// DefaultTiming returns the first-opt-in timing for a cadence:
// daily 8:00, weekly Friday 8:00, monthly first-of-month 8:00.
func DefaultTiming(cadence models.Cadence) TimingInput {
	in := TimingInput{Cadence: cadence, Hour: models.DefaultLocalHour}
	switch cadence {
	case models.CadenceWeekly:
		in.DayOfWeek = models.DefaultDayOfWeek
	case models.CadenceMonthly:
		in.DayOfMonth = models.DefaultDayOfMonth
	}
	return in
}
