// internal/app/system/deliver/slack.go

// Package deliver sends digest messages to their recipients over Slack.
// Target resolution and the actual send are separate steps so the
// pipeline can fail a run before composing anything when the recipient
// has no usable destination.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dalemusser/digesthub/internal/app/store/integrations"
	"github.com/dalemusser/digesthub/internal/app/system/metrics"
	"github.com/dalemusser/digesthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const defaultAPIBase = "https://slack.com/api"

// ErrNoTarget indicates the recipient has no linked Slack account or
// their workspace has no installation with a credential.
var ErrNoTarget = errors.New("no delivery target")

// Target is a resolved destination: a Slack channel (the recipient's
// DM) plus the workspace credential to post with.
type Target struct {
	ChannelID string
	token     string
}

// Deliverer resolves destinations and sends digest text.
type Deliverer interface {
	ResolveTarget(ctx context.Context, userID, orgID primitive.ObjectID) (Target, error)
	Send(ctx context.Context, target Target, text string) error
}

// Client is the Slack-backed Deliverer.
type Client struct {
	integrations *integrationstore.Store
	apiBase      string
	client       *http.Client
}

// Option adjusts a Client. Used by tests to point at a fake server.
type Option func(*Client)

// WithAPIBase overrides the Slack API base URL.
func WithAPIBase(u string) Option {
	return func(c *Client) { c.apiBase = u }
}

// New creates a Slack delivery client.
func New(integrations *integrationstore.Store, opts ...Option) *Client {
	c := &Client{
		integrations: integrations,
		apiBase:      defaultAPIBase,
		client:       &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveTarget finds the recipient's Slack DM channel and the
// workspace token. Returns ErrNoTarget when either half is missing.
func (c *Client) ResolveTarget(ctx context.Context, userID, orgID primitive.ObjectID) (Target, error) {
	acct, err := c.integrations.AccountForUser(ctx, models.IntegrationSlack, userID, orgID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Target{}, ErrNoTarget
		}
		return Target{}, fmt.Errorf("resolve slack account: %w", err)
	}

	inst, err := c.integrations.InstallationForOrg(ctx, models.IntegrationSlack, orgID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Target{}, ErrNoTarget
		}
		return Target{}, fmt.Errorf("resolve slack installation: %w", err)
	}
	if inst.AccessToken == "" {
		return Target{}, ErrNoTarget
	}

	return Target{ChannelID: acct.ExternalID, token: inst.AccessToken}, nil
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Send posts text to the target channel via chat.postMessage.
func (c *Client) Send(ctx context.Context, target Target, text string) error {
	start := time.Now()
	defer func() {
		metrics.DeliverDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(postMessageRequest{Channel: target.ChannelID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal postMessage request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create postMessage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+target.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("postMessage request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read postMessage response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("postMessage HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var pmResp postMessageResponse
	if err := json.Unmarshal(respBody, &pmResp); err != nil {
		return fmt.Errorf("decode postMessage response: %w", err)
	}
	if !pmResp.OK {
		return fmt.Errorf("postMessage rejected: %s", pmResp.Error)
	}
	return nil
}

// SendIntro posts the welcome message to a newly linked user's DM.
func (c *Client) SendIntro(ctx context.Context, target Target, userName string) error {
	if userName == "" {
		userName = "there"
	}
	text := fmt.Sprintf(`Hi %s! :wave:

Welcome to *DigestHub*! :tada:

DigestHub is a simple Slack app that helps you stay up to date with your team's activity on GitHub. You can choose to receive daily or weekly or monthly digests of your team's activity. I'll just send you a message when there's updates to share.

To get started with DigestHub, head over to the settings page. That's where you can configure your teams, integrations, and notification settings.

Have a great day! :smile:`, userName)
	return c.Send(ctx, target, text)
}
