// internal/app/features/jobs/handler.go

// Package jobs exposes the externally-triggered job endpoints. The
// hourly digest tick is driven by an outside timer (cron, Cloud
// Scheduler) hitting POST /jobs/tick; the service holds no timers of
// its own between ticks.
package jobs

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/digesthub/internal/app/system/digest"
	"go.uber.org/zap"
)

// TickRunner runs one scheduling tick.
type TickRunner interface {
	RunTick(ctx context.Context, nowUTC time.Time) (digest.TickReport, error)
}

// Handler holds dependencies for the job endpoints.
type Handler struct {
	Scheduler TickRunner
	Token     string
	Log       *zap.Logger
}

// NewHandler constructs a jobs Handler. Token guards the trigger
// endpoint; requests must carry it as a bearer token.
func NewHandler(scheduler TickRunner, token string, logger *zap.Logger) *Handler {
	return &Handler{
		Scheduler: scheduler,
		Token:     token,
		Log:       logger,
	}
}

// Tick handles POST /jobs/tick.
//
// The tick time defaults to the current hour; an optional `at`
// parameter (RFC 3339) lets an operator replay a specific tick. The
// response is the tick report. The run is synchronous so the external
// timer observes completion.
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	nowUTC := time.Now().UTC().Truncate(time.Hour)
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			http.Error(w, "invalid 'at' timestamp, want RFC 3339", http.StatusBadRequest)
			return
		}
		nowUTC = parsed.UTC().Truncate(time.Hour)
	}

	report, err := h.Scheduler.RunTick(r.Context(), nowUTC)
	if err != nil {
		h.Log.Error("tick failed", zap.Error(err), zap.Time("now_utc", nowUTC))
		http.Error(w, "tick failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.Token == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.Token)) == 1
}
