package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRateLimit(t *testing.T) {
	e := echo.New()

	// 1 request per second, burst of 1: a quick second request should be rejected.
	e.Use(RateLimit(1))
	e.GET("/tapis-file/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/tapis-file/sys/a", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	got429 := false
	for i := 0; i < 10; i++ {
		req = httptest.NewRequest(http.MethodGet, "/tapis-file/sys/a", http.NoBody)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=UTF-8" {
				t.Errorf("Content-Type = %q, want text/plain", ct)
			}
			break
		}
	}
	if !got429 {
		t.Error("expected at least one 429 response after burst, got none")
	}

	// Health probes are never limited.
	for i := 0; i < 5; i++ {
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
		if rec.Code != http.StatusOK {
			t.Fatalf("/healthz status = %d, want %d", rec.Code, http.StatusOK)
		}
	}
}
