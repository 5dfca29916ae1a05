package middleware

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tapis-file-proxy/internal/metrics"
)

// MetricsMiddleware records request count, latency and body bytes for every
// inbound request except those whose path is listed in skip (typically the
// scrape endpoint itself).
func MetricsMiddleware(m *metrics.Metrics, skip ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if slices.Contains(skip, c.Request().URL.Path) {
				return next(c)
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()
			start := time.Now()

			err := next(c)

			method := metrics.NormalizeMethod(c.Request().Method)
			path := metrics.NormalizePath(c.Request().URL.Path)
			status := strconv.Itoa(responseStatus(c, err))

			m.RequestsTotal.WithLabelValues(method, status, path).Inc()
			m.RequestDuration.WithLabelValues(method, status, path).Observe(time.Since(start).Seconds())
			if size := c.Response().Size; size > 0 {
				m.ResponseBytes.WithLabelValues(path).Add(float64(size))
			}
			return err
		}
	}
}

// responseStatus returns the status the client will see. An *echo.HTTPError
// returned by the handler is written later by Echo's error handler, so its
// code takes precedence over the not-yet-written response status.
func responseStatus(c echo.Context, err error) int {
	var he *echo.HTTPError
	if err != nil && errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}
