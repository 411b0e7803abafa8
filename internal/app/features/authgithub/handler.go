// internal/app/features/authgithub/handler.go

// Package authgithub implements the GitHub connect flow: an OAuth
// redirect that links a user's GitHub identity to their DigestHub
// account so webhook deliveries can be attributed to them. The GitHub
// App installation itself is persisted by the installation webhook.
package authgithub

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dalemusser/digesthub/internal/app/store/integrations"
	"github.com/dalemusser/digesthub/internal/app/system/timeouts"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const (
	stateCookieName = "digesthub_oauth_state"
	stateTTL        = 10 * time.Minute
)

// Handler handles the GitHub OAuth connect flow.
type Handler struct {
	Integrations *integrationstore.Store
	Log          *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://digesthub.example.com/auth/github/callback"

	cookie *securecookie.SecureCookie
}

// NewHandler creates a GitHub connect handler. stateKey signs the
// short-lived state cookie that carries the flow context between the
// redirect and the callback.
func NewHandler(db *mongo.Database, clientID, clientSecret, baseURL string, stateKey []byte, logger *zap.Logger) *Handler {
	return &Handler{
		Integrations: integrationstore.New(db),
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/github/callback",
		cookie:       securecookie.New(stateKey, nil),
	}
}

// oauth2Config returns the GitHub OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes:       []string{"read:user"},
		Endpoint:     githuboauth.Endpoint,
	}
}

// IsConfigured returns true if the GitHub OAuth client is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// stateClaims is what the signed state cookie carries.
type stateClaims struct {
	State     string    `json:"state"`
	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ServeConnect handles GET /auth/github.
//
// The initiating user and organization arrive as query parameters; they
// ride through the flow in the signed state cookie so the callback can
// link the GitHub identity to the right account.
func (h *Handler) ServeConnect(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("GitHub OAuth not configured")
		http.Error(w, "GitHub connect is not configured", http.StatusServiceUnavailable)
		return
	}

	userID := r.URL.Query().Get("user_id")
	orgID := r.URL.Query().Get("org_id")
	if _, err := primitive.ObjectIDFromHex(userID); err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	if _, err := primitive.ObjectIDFromHex(orgID); err != nil {
		http.Error(w, "invalid org_id", http.StatusBadRequest)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	encoded, err := h.cookie.Encode(stateCookieName, stateClaims{
		State:     state,
		UserID:    userID,
		OrgID:     orgID,
		ExpiresAt: time.Now().UTC().Add(stateTTL),
	})
	if err != nil {
		h.Log.Error("failed to encode state cookie", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/auth/github",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// ServeCallback handles GET /auth/github/callback: validates the state
// against the signed cookie, exchanges the code, fetches the GitHub
// user, and links the identity as an integration account.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("GitHub OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Error(w, "GitHub authorization was denied", http.StatusBadRequest)
		return
	}

	claims, ok := h.validStateClaims(r)
	if !ok {
		http.Error(w, "invalid or expired OAuth state", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	orgID, err := primitive.ObjectIDFromHex(claims.OrgID)
	if err != nil {
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.External())
	defer cancel()

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	ghUser, err := fetchGitHubUser(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch GitHub user", zap.Error(err))
		http.Error(w, "failed to fetch GitHub user", http.StatusBadGateway)
		return
	}

	err = h.Integrations.UpsertAccount(ctx, models.IntegrationAccount{
		IntegrationName: models.IntegrationGitHub,
		ExternalID:      ghUser.Login,
		UserID:          userID,
		OrganizationID:  orgID,
		Username:        ghUser.Login,
	})
	if err != nil {
		h.Log.Error("failed to link GitHub account", zap.Error(err),
			zap.String("user_id", userID.Hex()),
			zap.String("github_login", ghUser.Login))
		http.Error(w, "failed to link GitHub account", http.StatusInternalServerError)
		return
	}

	// Clear the state cookie; the flow is done.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/auth/github", MaxAge: -1})

	h.Log.Info("linked GitHub account",
		zap.String("user_id", userID.Hex()),
		zap.String("github_login", ghUser.Login))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"linked": ghUser.Login,
	})
}

func (h *Handler) validStateClaims(r *http.Request) (stateClaims, bool) {
	state := r.URL.Query().Get("state")
	if state == "" {
		return stateClaims{}, false
	}
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return stateClaims{}, false
	}
	var claims stateClaims
	if err := h.cookie.Decode(stateCookieName, cookie.Value, &claims); err != nil {
		return stateClaims{}, false
	}
	if claims.State != state || time.Now().UTC().After(claims.ExpiresAt) {
		return stateClaims{}, false
	}
	return claims, true
}

// githubUser is the slice of GET /user ingestion needs.
type githubUser struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Name  string `json:"name"`
}

func fetchGitHubUser(ctx context.Context, token *oauth2.Token) (githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return githubUser{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return githubUser{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return githubUser{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return githubUser{}, fmt.Errorf("GET /user: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var u githubUser
	if err := json.Unmarshal(body, &u); err != nil {
		return githubUser{}, err
	}
	if u.Login == "" {
		return githubUser{}, fmt.Errorf("GET /user returned no login")
	}
	return u, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
