// internal/app/system/githubapi/githubapi.go

// Package githubapi is the GitHub App client. It mints installation
// access tokens from the app's private key and wraps API calls in a
// bounded retry loop that re-authenticates on credential rejection.
package githubapi

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dalemusser/digesthub/internal/app/store/integrations"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAPIBase = "https://api.github.com"

	// maxReauths bounds credential refresh attempts per request. A
	// request makes at most maxReauths+1 round trips.
	maxReauths = 3
)

// AppAuth signs the short-lived JWTs a GitHub App authenticates with.
type AppAuth struct {
	appID      string
	privateKey *rsa.PrivateKey
}

// NewAppAuth parses the app's PEM private key.
func NewAppAuth(appID string, pemKey []byte) (*AppAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}
	return &AppAuth{appID: appID, privateKey: key}, nil
}

// MintJWT produces a signed app JWT. GitHub caps validity at ten
// minutes; the issued-at is backdated a minute to absorb clock skew.
func (a *AppAuth) MintJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign app JWT: %w", err)
	}
	return signed, nil
}

// Client calls the GitHub API on behalf of an installation.
type Client struct {
	auth         *AppAuth
	integrations *integrationstore.Store
	apiBase      string
	client       *http.Client
}

// Option adjusts a Client. Used by tests to point at a fake server.
type Option func(*Client)

// WithAPIBase overrides the GitHub API base URL.
func WithAPIBase(u string) Option {
	return func(c *Client) { c.apiBase = u }
}

// New creates a GitHub App API client.
func New(auth *AppAuth, integrations *integrationstore.Store, opts ...Option) *Client {
	c := &Client{
		auth:         auth,
		integrations: integrations,
		apiBase:      defaultAPIBase,
		client:       &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InstallationToken mints a fresh access token for an installation
// using the app JWT.
func (c *Client) InstallationToken(ctx context.Context, installationID string) (string, error) {
	appJWT, err := c.auth.MintJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", c.apiBase, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("token request HTTP %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp installationTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", fmt.Errorf("token response missing token")
	}
	return tokenResp.Token, nil
}

// Request performs one API call for an installation. When the stored
// credential is rejected with a 401, a fresh installation token is
// minted, persisted, and the call retried with it, up to maxReauths
// times. Any other failure, including exhausting the reauth limit,
// returns an error.
func (c *Client) Request(ctx context.Context, inst models.IntegrationInstallation, method, path string, payload any) ([]byte, error) {
	token := inst.AccessToken

	var lastStatus int
	var lastBody []byte
	for attempt := 0; attempt <= maxReauths; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal request payload: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("create API request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("API request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read API response: %w", err)
		}

		if resp.StatusCode != http.StatusUnauthorized {
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, fmt.Errorf("API request %s %s: HTTP %d: %s", method, path, resp.StatusCode, string(body))
			}
			return body, nil
		}

		lastStatus = resp.StatusCode
		lastBody = body
		if attempt == maxReauths {
			break
		}

		token, err = c.reauth(ctx, inst)
		if err != nil {
			return nil, fmt.Errorf("re-authenticate installation %s: %w", inst.ExternalID, err)
		}
	}

	return nil, fmt.Errorf("API request %s %s: credential rejected after %d reauth attempts: HTTP %d: %s",
		method, path, maxReauths, lastStatus, string(lastBody))
}

// reauth mints a fresh installation token, persists it so later calls
// start from the new credential, and returns it for the retry.
func (c *Client) reauth(ctx context.Context, inst models.IntegrationInstallation) (string, error) {
	token, err := c.InstallationToken(ctx, inst.ExternalID)
	if err != nil {
		return "", err
	}
	if err := c.integrations.UpdateAccessToken(ctx, inst.ID, token); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	return token, nil
}
