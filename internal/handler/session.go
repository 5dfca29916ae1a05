package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"tapis-file-proxy/internal/config"
	"tapis-file-proxy/internal/credential"
	"tapis-file-proxy/internal/session"
)

// sessionRequest is the body of POST /tapis-session.
type sessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	// Key selects a session value slot. Empty means the OAuth2 token slot.
	Key string `json:"key"`
}

// SessionHandler lets a login flow hand a Tapis token to the proxy.
type SessionHandler struct {
	store  *session.Store
	keys   []string
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(store *session.Store, cfg *config.Config, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		store:  store,
		keys:   cfg.Auth.SessionKeys,
		logger: logger.With("component", "session_handler"),
		now:    time.Now,
	}
}

// Create stores a token in the caller's session, starting one if needed.
// The token comes from the JSON body, or from an Authorization bearer header
// when the body carries none.
func (h *SessionHandler) Create(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "request body must be a JSON object",
		})
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		if tok, err := (credential.BearerHeader{}).Resolve(c); err == nil {
			req.AccessToken = tok
		}
	}
	tok, err := credential.AccessToken(req.AccessToken)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "access_token is required",
		})
	}
	if req.Key != "" && !slices.Contains(h.keys, req.Key) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unknown session key " + req.Key,
		})
	}

	sess := h.store.LookupOrCreate(c)
	if req.Key == "" {
		t := &session.Token{AccessToken: tok, RefreshToken: req.RefreshToken}
		if req.ExpiresIn > 0 {
			t.Expiry = h.now().Add(time.Duration(req.ExpiresIn) * time.Second)
		}
		sess.SetToken(t)
	} else {
		sess.SetValue(req.Key, tok)
	}

	slot := req.Key
	if slot == "" {
		slot = "oauth2"
	}
	h.logger.Info("tapis token stored", "slot", slot)
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"slot":   slot,
	})
}

// Delete ends the caller's session.
func (h *SessionHandler) Delete(c echo.Context) error {
	h.store.End(c)
	return c.NoContent(http.StatusNoContent)
}
