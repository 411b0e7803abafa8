package settings_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/digesthub/internal/app/features/settings"
	settingstore "github.com/dalemusser/digesthub/internal/app/store/notificationsettings"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"github.com/dalemusser/digesthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func settingsRouter(t *testing.T, db *testutil.Fixtures) http.Handler {
	t.Helper()
	return settings.Routes(settings.NewHandler(db.DB(), zap.NewNop()))
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUpsertFirstOptInAppliesDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	router := settingsRouter(t, fx)

	org := fx.CreateOrganization(ctx, "Acme", "T0001")
	// UTC-6: 8:00 local is 14:00 UTC, same day.
	user := fx.CreateUser(ctx, "Alice", "alice@acme.test", org.ID, -6*60)

	rec := doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/users/%s/settings/daily", user.ID.Hex()),
		`{"enabled": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var got models.NotificationSetting
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if got.LocalHour != 8 {
		t.Errorf("local_hour: got %d, want the 8:00 default", got.LocalHour)
	}
	if got.HourUTC != 14 || got.DailyUTCOffset != 0 {
		t.Errorf("utc mirror: got hour=%d shift=%d, want 14/0", got.HourUTC, got.DailyUTCOffset)
	}

	stored, err := settingstore.New(db).Get(ctx, user.ID, models.CadenceDaily)
	if err != nil {
		t.Fatalf("get stored setting: %v", err)
	}
	if !stored.Enabled || stored.HourUTC != 14 {
		t.Errorf("stored setting: enabled=%v hour_utc=%d, want true/14", stored.Enabled, stored.HourUTC)
	}
}

func TestUpsertRejectsBadInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	router := settingsRouter(t, fx)

	org := fx.CreateOrganization(ctx, "Acme", "T0001")
	user := fx.CreateUser(ctx, "Alice", "alice@acme.test", org.ID, 0)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"unknown cadence", fmt.Sprintf("/users/%s/settings/hourly", user.ID.Hex()), `{"enabled":true}`, http.StatusBadRequest},
		{"hour out of range", fmt.Sprintf("/users/%s/settings/daily", user.ID.Hex()), `{"enabled":true,"hour":24}`, http.StatusBadRequest},
		{"weekday out of range", fmt.Sprintf("/users/%s/settings/weekly", user.ID.Hex()), `{"enabled":true,"day_of_week":7}`, http.StatusBadRequest},
		{"bad month marker", fmt.Sprintf("/users/%s/settings/monthly", user.ID.Hex()), `{"enabled":true,"day_of_month":15}`, http.StatusBadRequest},
		{"malformed user id", "/users/not-an-id/settings/daily", `{"enabled":true}`, http.StatusBadRequest},
		{"unknown user", fmt.Sprintf("/users/%s/settings/daily", primitive.NewObjectID().Hex()), `{"enabled":true}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := doJSON(t, router, http.MethodPut, tt.target, tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestDisablingLastCadenceDeletesSettings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	router := settingsRouter(t, fx)

	org := fx.CreateOrganization(ctx, "Acme", "T0001")
	user := fx.CreateUser(ctx, "Alice", "alice@acme.test", org.ID, 0)
	target := fmt.Sprintf("/users/%s/settings/daily", user.ID.Hex())

	if rec := doJSON(t, router, http.MethodPut, target, `{"enabled":true}`); rec.Code != http.StatusOK {
		t.Fatalf("enable: status = %d, want 200", rec.Code)
	}
	rec := doJSON(t, router, http.MethodPut, target, `{"enabled":false}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("disable: status = %d, want 204", rec.Code)
	}

	remaining, err := settingstore.New(db).ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("settings after disabling the last cadence: got %d, want 0", len(remaining))
	}
}

func TestUpdateTimezoneResyncsStoredSettings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)
	router := settingsRouter(t, fx)

	org := fx.CreateOrganization(ctx, "Acme", "T0001")
	user := fx.CreateUser(ctx, "Alice", "alice@acme.test", org.ID, -6*60)

	settingsTarget := fmt.Sprintf("/users/%s/settings/daily", user.ID.Hex())
	if rec := doJSON(t, router, http.MethodPut, settingsTarget, `{"enabled":true}`); rec.Code != http.StatusOK {
		t.Fatalf("enable: status = %d, want 200", rec.Code)
	}

	// Move to UTC+9: 8:00 local becomes 23:00 UTC the previous day.
	tzTarget := fmt.Sprintf("/users/%s/timezone", user.ID.Hex())
	rec := doJSON(t, router, http.MethodPost, tzTarget,
		`{"tz":"Asia/Tokyo","tz_label":"Japan Standard Time","tz_offset_seconds":32400}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("timezone: status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OffsetMinutes int  `json:"offset_minutes"`
		Resynced      bool `json:"resynced"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.OffsetMinutes != 540 || !resp.Resynced {
		t.Errorf("got offset=%d resynced=%v, want 540 true", resp.OffsetMinutes, resp.Resynced)
	}

	stored, err := settingstore.New(db).Get(ctx, user.ID, models.CadenceDaily)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.HourUTC != 23 || stored.DailyUTCOffset != -1 {
		t.Errorf("resynced mirror: got hour=%d shift=%d, want 23/-1", stored.HourUTC, stored.DailyUTCOffset)
	}

	// Same offset again: no resync.
	rec = doJSON(t, router, http.MethodPost, tzTarget,
		`{"tz":"Asia/Tokyo","tz_label":"Japan Standard Time","tz_offset_seconds":32400}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat timezone: status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse repeat response: %v", err)
	}
	if resp.Resynced {
		t.Error("repeated sync with the same offset reported a resync")
	}
}

func TestListReturnsEmptyArrayForUnknownUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	router := settingsRouter(t, fx)

	rec := doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/users/%s/settings", primitive.NewObjectID().Hex()), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}
