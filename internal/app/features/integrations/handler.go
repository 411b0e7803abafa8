// internal/app/features/integrations/handler.go

// Package integrations is the admin API for registering Slack
// workspace installs and linking users to their Slack identities. A
// freshly linked user gets the welcome message over the same delivery
// path digests use.
package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/digesthub/internal/app/store/integrations"
	"github.com/dalemusser/digesthub/internal/app/store/organizations"
	"github.com/dalemusser/digesthub/internal/app/store/users"
	"github.com/dalemusser/digesthub/internal/app/system/deliver"
	"github.com/dalemusser/digesthub/internal/app/system/timeouts"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// IntroSender is the slice of the delivery client the link flow needs.
type IntroSender interface {
	ResolveTarget(ctx context.Context, userID, orgID primitive.ObjectID) (deliver.Target, error)
	SendIntro(ctx context.Context, target deliver.Target, userName string) error
}

// Handler holds dependencies for the integration endpoints.
type Handler struct {
	Orgs         *orgstore.Store
	Integrations *integrationstore.Store
	Users        *userstore.Store
	Intro        IntroSender
	Log          *zap.Logger
}

// NewHandler constructs an integrations Handler.
func NewHandler(db *mongo.Database, intro IntroSender, logger *zap.Logger) *Handler {
	return &Handler{
		Orgs:         orgstore.New(db),
		Integrations: integrationstore.New(db),
		Users:        userstore.New(db),
		Intro:        intro,
		Log:          logger,
	}
}

type slackInstallRequest struct {
	TeamID       string `json:"team_id"`
	TeamName     string `json:"team_name"`
	IsEnterprise bool   `json:"is_enterprise"`
	BotToken     string `json:"bot_token"`
}

type slackLinkRequest struct {
	UserID      string `json:"user_id"`
	SlackUserID string `json:"slack_user_id"`
}

// SlackInstall handles POST /integrations/slack/install.
//
// Registers (or refreshes) a workspace install: the organization is
// created on first contact and the bot token stored as the workspace
// credential digests are delivered with.
func (h *Handler) SlackInstall(w http.ResponseWriter, r *http.Request) {
	var req slackInstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.TeamID == "" || req.BotToken == "" {
		http.Error(w, "team_id and bot_token are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	org, err := h.Orgs.FindOrCreateBySlackID(ctx, req.TeamID, req.TeamName, req.IsEnterprise)
	if err != nil {
		h.Log.Error("find-or-create organization failed", zap.Error(err), zap.String("slack_team", req.TeamID))
		http.Error(w, "failed to register organization", http.StatusInternalServerError)
		return
	}

	err = h.Integrations.UpsertInstallation(ctx, models.IntegrationInstallation{
		IntegrationName: models.IntegrationSlack,
		ExternalID:      req.TeamID,
		AccountName:     req.TeamName,
		AccessToken:     req.BotToken,
		OrganizationID:  &org.ID,
	})
	if err != nil {
		h.Log.Error("persist slack installation failed", zap.Error(err), zap.String("slack_team", req.TeamID))
		http.Error(w, "failed to persist installation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"organization_id": org.ID.Hex()})
}

// SlackLink handles POST /integrations/slack/link.
//
// Links a user to their Slack identity within their organization and
// sends them the welcome message. A failed welcome message does not
// undo the link.
func (h *Handler) SlackLink(w http.ResponseWriter, r *http.Request) {
	var req slackLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	if req.SlackUserID == "" {
		http.Error(w, "slack_user_id is required", http.StatusBadRequest)
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
		h.Log.Error("load user failed", zap.Error(err), zap.String("user_id", req.UserID))
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}
	if user.OrganizationID == nil {
		http.Error(w, "user has no organization", http.StatusConflict)
		return
	}

	err = h.Integrations.UpsertAccount(ctx, models.IntegrationAccount{
		IntegrationName: models.IntegrationSlack,
		ExternalID:      req.SlackUserID,
		UserID:          user.ID,
		OrganizationID:  *user.OrganizationID,
	})
	if err != nil {
		h.Log.Error("link slack account failed", zap.Error(err), zap.String("user_id", req.UserID))
		http.Error(w, "failed to link slack account", http.StatusInternalServerError)
		return
	}

	ictx, cancel := context.WithTimeout(r.Context(), timeouts.External())
	defer cancel()
	target, err := h.Intro.ResolveTarget(ictx, user.ID, *user.OrganizationID)
	if err == nil {
		err = h.Intro.SendIntro(ictx, target, user.FullName)
	}
	if err != nil {
		h.Log.Warn("welcome message not sent", zap.Error(err), zap.String("user_id", req.UserID))
	}

	w.WriteHeader(http.StatusNoContent)
}
