// internal/app/system/digest/selector_test.go
package digest

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeSettings struct {
	daily   []models.NotificationSetting
	weekly  []models.NotificationSetting
	monthly []models.NotificationSetting

	monthlyCalls int
}

func (f *fakeSettings) DueDaily(ctx context.Context, hourUTC int) ([]models.NotificationSetting, error) {
	var out []models.NotificationSetting
	for _, s := range f.daily {
		if s.Enabled && s.HourUTC == hourUTC {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSettings) DueWeekly(ctx context.Context, hourUTC, dayOfWeekUTC int) ([]models.NotificationSetting, error) {
	var out []models.NotificationSetting
	for _, s := range f.weekly {
		if s.Enabled && s.HourUTC == hourUTC && s.DayOfWeekUTC == dayOfWeekUTC {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSettings) DueMonthly(ctx context.Context, hourUTC, monthMarker int) ([]models.NotificationSetting, error) {
	f.monthlyCalls++
	var out []models.NotificationSetting
	for _, s := range f.monthly {
		if s.Enabled && s.HourUTC == hourUTC && s.DayOfMonthUTC == monthMarker {
			out = append(out, s)
		}
	}
	return out, nil
}

func dailySetting(localHour, hourUTC, offset int) models.NotificationSetting {
	return models.NotificationSetting{
		ID:             primitive.NewObjectID(),
		UserID:         primitive.NewObjectID(),
		Cadence:        models.CadenceDaily,
		Enabled:        true,
		LocalHour:      localHour,
		HourUTC:        hourUTC,
		DailyUTCOffset: offset,
	}
}

func TestDueNowDailyDayShift(t *testing.T) {
	// localHour=8 at UTC+10 normalizes to 22:00 the previous UTC day.
	shifted := dailySetting(8, 22, -1)
	// Same UTC hour but claiming no day shift implies a -14h zone; the
	// stored fields are mutually inconsistent and must not fire.
	inconsistent := dailySetting(8, 22, 0)

	src := &fakeSettings{daily: []models.NotificationSetting{shifted, inconsistent}}
	sel := NewSelector(src, zap.NewNop())

	due, err := sel.DueNow(context.Background(), time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due.Daily) != 1 {
		t.Fatalf("got %d daily settings, want 1", len(due.Daily))
	}
	if due.Daily[0].ID != shifted.ID {
		t.Errorf("selected setting %v, want the consistent one %v", due.Daily[0].ID, shifted.ID)
	}

	// Wrong hour: nothing fires.
	due, err = sel.DueNow(context.Background(), time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due.Daily) != 0 {
		t.Errorf("got %d daily settings at the wrong hour, want 0", len(due.Daily))
	}
}

func TestDueNowWeekly(t *testing.T) {
	friday := models.NotificationSetting{
		ID:           primitive.NewObjectID(),
		UserID:       primitive.NewObjectID(),
		Cadence:      models.CadenceWeekly,
		Enabled:      true,
		HourUTC:      9,
		DayOfWeekUTC: 5, // Friday
	}
	src := &fakeSettings{weekly: []models.NotificationSetting{friday}}
	sel := NewSelector(src, zap.NewNop())

	// 2024-03-15 is a Friday.
	due, err := sel.DueNow(context.Background(), time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due.Weekly) != 1 {
		t.Errorf("got %d weekly settings on Friday 09:00, want 1", len(due.Weekly))
	}

	// Thursday, same hour: no match.
	due, err = sel.DueNow(context.Background(), time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if len(due.Weekly) != 0 {
		t.Errorf("got %d weekly settings on Thursday, want 0", len(due.Weekly))
	}
}

func TestDueNowMonthlyBoundaries(t *testing.T) {
	first := models.NotificationSetting{
		ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(),
		Cadence: models.CadenceMonthly, Enabled: true,
		HourUTC: 8, DayOfMonthUTC: models.FirstOfMonth,
	}
	last := models.NotificationSetting{
		ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(),
		Cadence: models.CadenceMonthly, Enabled: true,
		HourUTC: 8, DayOfMonthUTC: models.LastOfMonth,
	}
	src := &fakeSettings{monthly: []models.NotificationSetting{first, last}}
	sel := NewSelector(src, zap.NewNop())

	tests := []struct {
		name   string
		now    time.Time
		wantID primitive.ObjectID
		want   int
	}{
		{"first of month", time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), first.ID, 1},
		{"last of month", time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC), last.ID, 1},
		{"leap-year last of February", time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), last.ID, 1},
		{"mid-month", time.Date(2024, 4, 15, 8, 0, 0, 0, time.UTC), primitive.NilObjectID, 0},
	}
	for _, tt := range tests {
		due, err := sel.DueNow(context.Background(), tt.now)
		if err != nil {
			t.Fatalf("%s: DueNow: %v", tt.name, err)
		}
		if len(due.Monthly) != tt.want {
			t.Errorf("%s: got %d monthly settings, want %d", tt.name, len(due.Monthly), tt.want)
			continue
		}
		if tt.want == 1 && due.Monthly[0].ID != tt.wantID {
			t.Errorf("%s: selected %v, want %v", tt.name, due.Monthly[0].ID, tt.wantID)
		}
	}
}

func TestDueNowSkipsMonthlyQueryMidMonth(t *testing.T) {
	src := &fakeSettings{}
	sel := NewSelector(src, zap.NewNop())

	if _, err := sel.DueNow(context.Background(), time.Date(2024, 4, 15, 8, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if src.monthlyCalls != 0 {
		t.Errorf("monthly store queried %d times mid-month, want 0", src.monthlyCalls)
	}
}

func TestDueNowIdempotent(t *testing.T) {
	src := &fakeSettings{
		daily:  []models.NotificationSetting{dailySetting(8, 22, -1), dailySetting(22, 22, 0)},
		weekly: []models.NotificationSetting{{ID: primitive.NewObjectID(), Cadence: models.CadenceWeekly, Enabled: true, HourUTC: 22, DayOfWeekUTC: 4}},
	}
	sel := NewSelector(src, zap.NewNop())
	now := time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC) // a Thursday

	first, err := sel.DueNow(context.Background(), now)
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	second, err := sel.DueNow(context.Background(), now)
	if err != nil {
		t.Fatalf("DueNow: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same tick returned different selections:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
