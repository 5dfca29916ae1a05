package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"tapis-file-proxy/internal/resource"
)

// ResourceHandler exposes the catalog resource hooks over HTTP.
type ResourceHandler struct {
	rewriter *resource.Rewriter
	logger   *slog.Logger
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(rw *resource.Rewriter, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{
		rewriter: rw,
		logger:   logger.With("component", "resource_handler"),
	}
}

// Show returns the posted resource with any tapis:// URL rewritten to the
// proxy download route.
func (h *ResourceHandler) Show(c echo.Context) error {
	doc, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return h.readError(c, err)
	}
	out, err := h.rewriter.Show(doc)
	if err != nil {
		return h.documentError(c, err)
	}
	return c.JSONBlob(http.StatusOK, out)
}

// Validate checks the posted resource before it is created or updated.
// A valid document is echoed back.
func (h *ResourceHandler) Validate(c echo.Context) error {
	doc, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return h.readError(c, err)
	}
	if err := resource.Validate(doc); err != nil {
		if errors.Is(err, resource.ErrInvalidTapisURL) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{
				"error": map[string][]string{
					"url": {"Invalid tapis:// URL format"},
				},
			})
		}
		return h.documentError(c, err)
	}
	return c.JSONBlob(http.StatusOK, doc)
}

// TapisURL reports whether ?url= is a tapis:// URL and where it is served.
func (h *ResourceHandler) TapisURL(c echo.Context) error {
	u := c.QueryParam("url")
	if u == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "url query parameter is required",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"is_tapis_url": resource.IsTapisURL(u),
		"download_url": h.rewriter.DownloadURL(u),
		"view_url":     h.rewriter.ViewURL(u),
	})
}

func (h *ResourceHandler) readError(c echo.Context, err error) error {
	// The body limit middleware surfaces oversize bodies as an HTTP error.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	h.logger.Warn("reading resource body", "err", err)
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error": "could not read request body",
	})
}

func (h *ResourceHandler) documentError(c echo.Context, err error) error {
	if errors.Is(err, resource.ErrInvalidDocument) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	h.logger.Error("rewriting resource", "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
