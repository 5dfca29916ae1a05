package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tapis-file-proxy/internal/config"
	"tapis-file-proxy/internal/credential"
	"tapis-file-proxy/internal/session"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg      *config.Config
	version  Version
	chain    *credential.Chain
	sessions *session.Store
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version, chain *credential.Chain, sessions *session.Store) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v, chain: chain, sessions: sessions}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ok",
		"version":            string(h.version),
		"upstream_url":       h.cfg.Upstream.BaseURL,
		"credential_sources": h.chain.Names(),
		"active_sessions":    h.sessions.Len(),
	})
}
