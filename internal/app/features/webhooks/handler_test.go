// internal/app/features/webhooks/handler_test.go
package webhooks

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubRejectsBadSignature(t *testing.T) {
	h := &Handler{Secret: "whsec", Log: zap.NewNop()}
	body := []byte(`{"action":"opened"}`)

	tests := []struct {
		name string
		sig  string
	}{
		{"missing signature", ""},
		{"wrong signature", "sha256=deadbeef"},
		{"signed with wrong secret", sign("other", body)},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/github", bytes.NewReader(body))
		req.Header.Set("X-GitHub-Event", "pull_request")
		if tt.sig != "" {
			req.Header.Set("X-Hub-Signature-256", tt.sig)
		}
		rec := httptest.NewRecorder()
		h.GitHub(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tt.name, rec.Code)
		}
	}
}

func TestGitHubIgnoresUnknownEventTypes(t *testing.T) {
	h := &Handler{Secret: "whsec", Log: zap.NewNop()}
	body := []byte(`{"zen":"Keep it logically awesome."}`)

	req := httptest.NewRequest(http.MethodPost, "/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", sign("whsec", body))
	rec := httptest.NewRecorder()
	h.GitHub(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202 for an ignored event", rec.Code)
	}
}

func TestGitHubRejectsWithoutConfiguredSecret(t *testing.T) {
	h := &Handler{Secret: "", Log: zap.NewNop()}
	body := []byte(`{}`)

	req := httptest.NewRequest(http.MethodPost, "/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", sign("", body))
	rec := httptest.NewRecorder()
	h.GitHub(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when no secret is configured", rec.Code)
	}
}
