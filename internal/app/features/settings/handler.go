// internal/app/features/settings/handler.go

// Package settings is the notification-settings API: typed per-cadence
// timing input, defaults on first opt-in, and the timezone sync that
// re-normalizes a user's stored schedules.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/digesthub/internal/app/store/notificationsettings"
	"github.com/dalemusser/digesthub/internal/app/store/users"
	"github.com/dalemusser/digesthub/internal/app/system/schedule"
	"github.com/dalemusser/digesthub/internal/app/system/timeouts"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler holds dependencies for the settings endpoints.
type Handler struct {
	Users    *userstore.Store
	Settings *settingstore.Store
	Log      *zap.Logger
}

// NewHandler constructs a settings Handler.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Settings: settingstore.New(db),
		Log:      logger,
	}
}

// timingRequest is the typed per-cadence timing body for upserts.
// Omitted fields fall back to the stored value, or to the cadence
// defaults on first opt-in.
type timingRequest struct {
	Enabled    bool `json:"enabled"`
	Hour       *int `json:"hour,omitempty"`
	DayOfWeek  *int `json:"day_of_week,omitempty"`
	DayOfMonth *int `json:"day_of_month,omitempty"`
}

// timezoneRequest mirrors what the Slack profile sync reports.
type timezoneRequest struct {
	Tz              string `json:"tz"`
	TzLabel         string `json:"tz_label"`
	TzOffsetSeconds int    `json:"tz_offset_seconds"`
}

// List handles GET /users/{userID}/settings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathObjectID(w, r, "userID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	settings, err := h.Settings.ListForUser(ctx, userID)
	if err != nil {
		h.Log.Error("list settings failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		http.Error(w, "failed to list settings", http.StatusInternalServerError)
		return
	}
	if settings == nil {
		settings = []models.NotificationSetting{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(settings)
}

// Upsert handles PUT /users/{userID}/settings/{cadence}.
//
// On first opt-in the cadence defaults fill any omitted timing fields
// (daily 8:00, weekly Friday 8:00, monthly first-of-month 8:00). The
// UTC mirror is recomputed from the user's current timezone offset on
// every write. Disabling the last enabled cadence deletes all of the
// user's settings.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathObjectID(w, r, "userID")
	if !ok {
		return
	}
	cadence := models.Cadence(chi.URLParam(r, "cadence"))
	if !cadence.Valid() {
		http.Error(w, "unknown cadence", http.StatusBadRequest)
		return
	}

	var req timingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.Log.Error("load user failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	// Start from the stored timing, or the cadence defaults on first
	// opt-in, then layer the submitted fields on top.
	input := schedule.DefaultTiming(cadence)
	existing, err := h.Settings.Get(ctx, userID, cadence)
	switch {
	case err == nil:
		input.Hour = existing.LocalHour
		input.DayOfWeek = existing.LocalDayOfWeek
		input.DayOfMonth = existing.LocalDayOfMonth
	case errors.Is(err, mongo.ErrNoDocuments):
		// first opt-in, keep defaults
	default:
		h.Log.Error("load setting failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		http.Error(w, "failed to load setting", http.StatusInternalServerError)
		return
	}
	if req.Hour != nil {
		input.Hour = *req.Hour
	}
	if req.DayOfWeek != nil {
		input.DayOfWeek = *req.DayOfWeek
	}
	if req.DayOfMonth != nil {
		input.DayOfMonth = *req.DayOfMonth
	}

	utc, err := schedule.ToUTC(input, user.TzOffsetMinutes)
	if err != nil {
		var cfgErr *schedule.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, cfgErr.Error(), http.StatusBadRequest)
			return
		}
		h.Log.Error("normalize timing failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		http.Error(w, "failed to normalize timing", http.StatusInternalServerError)
		return
	}

	setting := models.NotificationSetting{
		UserID:          userID,
		Cadence:         cadence,
		Enabled:         req.Enabled,
		LocalHour:       input.Hour,
		LocalDayOfWeek:  input.DayOfWeek,
		LocalDayOfMonth: input.DayOfMonth,
		HourUTC:         utc.HourUTC,
		DailyUTCOffset:  utc.DailyUTCOffset,
		DayOfWeekUTC:    utc.DayOfWeekUTC,
		DayOfMonthUTC:   utc.DayOfMonthUTC,
	}
	if err := h.Settings.Upsert(ctx, setting); err != nil {
		h.Log.Error("upsert setting failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		http.Error(w, "failed to save setting", http.StatusInternalServerError)
		return
	}

	if !req.Enabled {
		if deleted, err := h.deleteIfAllDisabled(ctx, userID); err != nil {
			h.Log.Error("disable-all cleanup failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		} else if deleted {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(setting)
}

// UpdateTimezone handles POST /users/{userID}/timezone.
//
// Slack reports the offset in seconds; it is stored in minutes. When
// the offset actually changed, every setting the user owns is
// re-normalized against it. Normalization is deterministic, so a
// repeated sync with the same offset is a no-op.
func (h *Handler) UpdateTimezone(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathObjectID(w, r, "userID")
	if !ok {
		return
	}

	var req timezoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	offsetMinutes := req.TzOffsetSeconds / 60

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	changed, err := h.Users.UpdateTimezone(ctx, userID, req.Tz, req.TzLabel, offsetMinutes)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.Log.Error("update timezone failed", zap.Error(err), zap.String("user_id", userID.Hex()))
		http.Error(w, "failed to update timezone", http.StatusInternalServerError)
		return
	}

	if changed {
		if err := h.Settings.ResyncForUser(ctx, userID, offsetMinutes); err != nil {
			h.Log.Error("settings resync failed after timezone change",
				zap.Error(err),
				zap.String("user_id", userID.Hex()),
				zap.Int("offset_minutes", offsetMinutes),
			)
			http.Error(w, "failed to resync settings", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"offset_minutes": offsetMinutes,
		"resynced":       changed,
	})
}

// deleteIfAllDisabled removes every setting when none remain enabled.
func (h *Handler) deleteIfAllDisabled(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	settings, err := h.Settings.ListForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, s := range settings {
		if s.Enabled {
			return false, nil
		}
	}
	if err := h.Settings.DeleteForUser(ctx, userID); err != nil {
		return false, err
	}
	return true, nil
}

func pathObjectID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}
