// internal/app/features/webhooks/handler.go

// Package webhooks ingests GitHub webhook deliveries into activity
// records: signature verification, installation lifecycle handling,
// sender attribution through linked integration accounts, and a
// one-line ingest-time summary for each event.
package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/digesthub/internal/app/store/activity"
	"github.com/dalemusser/digesthub/internal/app/store/integrations"
	"github.com/dalemusser/digesthub/internal/app/system/githubapi"
	"github.com/dalemusser/digesthub/internal/app/system/metrics"
	"github.com/dalemusser/digesthub/internal/app/system/summarize"
	"github.com/dalemusser/digesthub/internal/app/system/timeouts"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxPayloadBytes caps webhook bodies; GitHub's own limit is 25 MB.
const maxPayloadBytes = 25 << 20

// acceptedEvents are the event types ingested as activity. Everything
// else is acknowledged and dropped.
var acceptedEvents = map[string]bool{
	models.EventPush:              true,
	models.EventPullRequest:       true,
	models.EventPullRequestReview: true,
	models.EventIssues:            true,
	models.EventIssueComment:      true,
	models.EventCommitComment:     true,
	models.EventRelease:           true,
}

// Handler holds dependencies for webhook ingestion. GitHub is optional;
// when set, push deliveries are enriched with commit detail fetched
// through the App API before summarization.
type Handler struct {
	Integrations *integrationstore.Store
	Activity     *activity.Store
	Summarizer   summarize.Summarizer
	GitHubAPI    *githubapi.Client
	Secret       string
	Log          *zap.Logger
}

// NewHandler constructs a webhooks Handler. secret is the GitHub
// webhook signing secret.
func NewHandler(db *mongo.Database, summarizer summarize.Summarizer, gh *githubapi.Client, secret string, logger *zap.Logger) *Handler {
	return &Handler{
		Integrations: integrationstore.New(db),
		Activity:     activity.New(db),
		Summarizer:   summarizer,
		GitHubAPI:    gh,
		Secret:       secret,
		Log:          logger,
	}
}

// githubEvent is the slice of a delivery payload ingestion needs.
type githubEvent struct {
	Action       string `json:"action"`
	Installation struct {
		ID      int64 `json:"id"`
		Account struct {
			Login string `json:"login"`
		} `json:"account"`
	} `json:"installation"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// GitHub handles POST /webhooks/github.
//
// Deliveries with a bad signature get 401. Everything verified is
// acknowledged with 2xx even when dropped (unknown event type,
// unlinked sender) so GitHub does not retry what we chose to ignore.
func (h *Handler) GitHub(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if !h.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")

	var event githubEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if eventType == "installation" {
		h.handleInstallation(ctx, w, event, body)
		return
	}

	if !acceptedEvents[eventType] {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if event.Installation.ID == 0 || event.Sender.Login == "" {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	installationID := strconv.FormatInt(event.Installation.ID, 10)
	inst, err := h.Integrations.GetInstallation(ctx, models.IntegrationGitHub, installationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Log.Warn("delivery for unknown installation, dropping",
				zap.String("installation_id", installationID),
				zap.String("event", eventType),
			)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		h.Log.Error("installation lookup failed", zap.Error(err))
		http.Error(w, "installation lookup failed", http.StatusInternalServerError)
		return
	}
	if inst.OrganizationID == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	acct, err := h.Integrations.AccountByExternalID(ctx, models.IntegrationGitHub, event.Sender.Login, *inst.OrganizationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Sender has not linked their GitHub identity; nothing to attribute.
			w.WriteHeader(http.StatusAccepted)
			return
		}
		h.Log.Error("account lookup failed", zap.Error(err))
		http.Error(w, "account lookup failed", http.StatusInternalServerError)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if eventType == models.EventPush {
		h.enrichPush(ctx, inst, payload)
	}

	record := models.ActivityRecord{
		UserID:         acct.UserID,
		OrganizationID: *inst.OrganizationID,
		Source:         models.ActivitySourceGitHub,
		EventType:      eventType,
		Summary:        h.summarizeEvent(ctx, eventType, payload),
		RawPayload:     payload,
		OccurredAt:     time.Now().UTC(),
	}
	if err := h.Activity.Save(ctx, record); err != nil {
		h.Log.Error("failed to save activity record", zap.Error(err),
			zap.String("user_id", acct.UserID.Hex()),
			zap.String("event", eventType),
		)
		http.Error(w, "failed to save activity", http.StatusInternalServerError)
		return
	}
	metrics.ActivityRecordsTotal.WithLabelValues(models.ActivitySourceGitHub).Inc()

	w.WriteHeader(http.StatusCreated)
}

// handleInstallation persists app install/uninstall lifecycle events.
func (h *Handler) handleInstallation(ctx context.Context, w http.ResponseWriter, event githubEvent, body []byte) {
	installationID := strconv.FormatInt(event.Installation.ID, 10)

	switch event.Action {
	case "created", "unsuspend", "new_permissions_accepted":
		var data map[string]any
		_ = json.Unmarshal(body, &data)
		err := h.Integrations.UpsertInstallation(ctx, models.IntegrationInstallation{
			IntegrationName: models.IntegrationGitHub,
			ExternalID:      installationID,
			AccountName:     event.Installation.Account.Login,
			Data:            data,
		})
		if err != nil {
			h.Log.Error("failed to persist installation", zap.Error(err),
				zap.String("installation_id", installationID))
			http.Error(w, "failed to persist installation", http.StatusInternalServerError)
			return
		}
	case "deleted":
		if err := h.Integrations.DeleteInstallation(ctx, models.IntegrationGitHub, installationID); err != nil {
			h.Log.Error("failed to remove installation", zap.Error(err),
				zap.String("installation_id", installationID))
			http.Error(w, "failed to remove installation", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// summarizeEvent builds the one-line ingest-time summary. A summarizer
// failure degrades to a generic line; the activity fact is never
// dropped because the summary call failed.
func (h *Handler) summarizeEvent(ctx context.Context, eventType string, payload map[string]any) string {
	prompt, err := summarize.EventUserPrompt(payload)
	if err == nil {
		sctx, cancel := context.WithTimeout(ctx, timeouts.External())
		summary, serr := h.Summarizer.Summarize(sctx, summarize.EventSystemPrompt, prompt)
		cancel()
		if serr == nil && summary != "" {
			return summary
		}
		err = serr
	}
	h.Log.Warn("event summarization failed, using generic summary",
		zap.Error(err), zap.String("event", eventType))
	return fmt.Sprintf("GitHub %s event", eventType)
}

// enrichPush attaches head-commit detail to push payloads so the
// summary can mention files changed, not just the commit message.
// Enrichment is best effort; the delivery is ingested unchanged when
// it fails.
func (h *Handler) enrichPush(ctx context.Context, inst models.IntegrationInstallation, payload map[string]any) {
	if h.GitHubAPI == nil {
		return
	}
	repo, _ := payload["repository"].(map[string]any)
	fullName, _ := repo["full_name"].(string)
	head, _ := payload["head_commit"].(map[string]any)
	sha, _ := head["id"].(string)
	if fullName == "" || sha == "" {
		return
	}

	gctx, cancel := context.WithTimeout(ctx, timeouts.External())
	defer cancel()
	body, err := h.GitHubAPI.Request(gctx, inst, http.MethodGet, fmt.Sprintf("/repos/%s/commits/%s", fullName, sha), nil)
	if err != nil {
		h.Log.Warn("push enrichment failed", zap.Error(err), zap.String("repo", fullName))
		return
	}

	var detail map[string]any
	if err := json.Unmarshal(body, &detail); err != nil {
		return
	}
	payload["head_commit_detail"] = detail
}

func (h *Handler) verifySignature(body []byte, header string) bool {
	if h.Secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
