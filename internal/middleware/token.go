package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// ForwardedToken copies a token set by a trusted front proxy (for example
// oauth2-proxy's X-Forwarded-Access-Token) into the echo context under key,
// then removes the header so it is never relayed further. An empty header
// name disables the middleware.
func ForwardedToken(header, key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if header == "" {
			return next
		}
		return func(c echo.Context) error {
			req := c.Request()
			if tok := strings.TrimSpace(req.Header.Get(header)); tok != "" {
				c.Set(key, tok)
			}
			req.Header.Del(header)
			return next(c)
		}
	}
}
