package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, okTapis("", nil))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := env.handler.Health.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, okTapis("", nil))
	env.store.Create()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := env.handler.Health.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status            string   `json:"status"`
		Version           string   `json:"version"`
		UpstreamURL       string   `json:"upstream_url"`
		CredentialSources []string `json:"credential_sources"`
		ActiveSessions    int      `json:"active_sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Version != "test" {
		t.Errorf("version = %q, want %q", body.Version, "test")
	}
	if body.UpstreamURL != env.cfg.Upstream.BaseURL {
		t.Errorf("upstream_url = %q, want %q", body.UpstreamURL, env.cfg.Upstream.BaseURL)
	}
	if len(body.CredentialSources) == 0 || body.CredentialSources[0] != "stored_token" {
		t.Errorf("credential_sources = %v, want stored_token first", body.CredentialSources)
	}
	if body.ActiveSessions != 1 {
		t.Errorf("active_sessions = %d, want 1", body.ActiveSessions)
	}
}
