// Package middleware provides Echo middleware for logging, metrics, security
// and credential forwarding.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// CredentialSourceKey is the echo context key under which handlers record
// which credential source authorized the request.
const CredentialSourceKey = "credential_source"

// RequestLogger returns an Echo middleware that logs each request with slog.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			}
			if src, ok := c.Get(CredentialSourceKey).(string); ok && src != "" {
				attrs = append(attrs, "credential_source", src)
			}
			logger.Info("request", attrs...)

			return err
		}
	}
}
