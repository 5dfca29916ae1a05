package handler

import (
	"github.com/labstack/echo/v4"
)

// Handlers groups the route handlers so they can be injected as one value.
type Handlers struct {
	File     *FileHandler
	Session  *SessionHandler
	Resource *ResourceHandler
	Health   *HealthHandler
}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Healthz)
	e.GET("/proxy/status", h.Health.Status)

	e.GET("/tapis-file/*", h.File.Serve)

	e.POST("/tapis-session", h.Session.Create)
	e.DELETE("/tapis-session", h.Session.Delete)

	e.POST("/api/resource/show", h.Resource.Show)
	e.POST("/api/resource/validate", h.Resource.Validate)
	e.GET("/api/tapis-url", h.Resource.TapisURL)
}
