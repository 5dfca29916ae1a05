package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are request headers that must not reach handlers.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// fileRoutePrefix marks responses that carry user file content.
const fileRoutePrefix = "/tapis-file/"

// SecurityHeaders returns an Echo middleware that strips hop-by-hop request
// headers and sets response security headers.
//
// File content is served inline from this origin, so file responses are
// sandboxed and kept out of shared caches. Headers are set before the handler
// runs because file bodies are streamed and commit headers on the first chunk.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "no-referrer")
			if strings.HasPrefix(c.Request().URL.Path, fileRoutePrefix) {
				h.Set("Content-Security-Policy", "sandbox")
				h.Set("Cache-Control", "private, no-store")
			}

			return next(c)
		}
	}
}
