// internal/domain/models/notificationsetting.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cadence is how often a user receives a digest.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Cadences lists every supported cadence, in display order.
var Cadences = []Cadence{CadenceDaily, CadenceWeekly, CadenceMonthly}

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	return c == CadenceDaily || c == CadenceWeekly || c == CadenceMonthly
}

// Day-of-month markers for monthly settings. The UI only offers
// "first of the month" and "last of the month"; no other day numbers
// are ever stored.
const (
	FirstOfMonth = 1
	LastOfMonth  = -1
)

// Default timings applied on first opt-in: 8:00 local, Fridays for
// weekly, first of the month for monthly.
const (
	DefaultLocalHour  = 8
	DefaultDayOfWeek  = 5 // Friday (Sunday = 0)
	DefaultDayOfMonth = FirstOfMonth
)

// NotificationSetting stores one user's digest preference for one
// cadence, in both the user's local terms and the UTC-normalized
// mirror the hourly scheduler matches against.
//
// The UTC fields (HourUTC, DailyUTCOffset, DayOfWeekUTC, DayOfMonthUTC)
// are always derivable from the local fields plus the owning user's
// timezone offset. They must be recomputed whenever the user edits the
// timing or the user's offset changes (e.g. a profile sync).
type NotificationSetting struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID `bson:"user_id" json:"user_id"`
	Cadence Cadence            `bson:"cadence" json:"cadence"`
	Enabled bool               `bson:"enabled" json:"enabled"`

	// Local preference as the user expressed it. Zero is meaningful
	// for several of these (Sunday = 0, day shift 0), so none of the
	// timing fields are omitempty.
	LocalHour       int `bson:"local_hour" json:"local_hour"`                 // 0..23
	LocalDayOfWeek  int `bson:"local_day_of_week" json:"local_day_of_week"`   // weekly only, Sunday = 0
	LocalDayOfMonth int `bson:"local_day_of_month" json:"local_day_of_month"` // monthly only, 1 or -1

	// UTC-normalized mirror used by the due-settings selector.
	HourUTC        int `bson:"hour_utc" json:"hour_utc"`                 // 0..23
	DailyUTCOffset int `bson:"daily_utc_offset" json:"daily_utc_offset"` // daily only, -1/0/+1 day shift
	DayOfWeekUTC   int `bson:"day_of_week_utc" json:"day_of_week_utc"`   // weekly only, Sunday = 0
	DayOfMonthUTC  int `bson:"day_of_month_utc" json:"day_of_month_utc"` // monthly only, 1 or -1

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
