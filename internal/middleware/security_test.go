package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders_AddsHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/tapis-file/*", func(c echo.Context) error {
		// Streamed responses commit headers before the handler returns.
		c.Response().WriteHeader(http.StatusOK)
		_, err := c.Response().Write([]byte("chunk"))
		return err
	})

	req := httptest.NewRequest(http.MethodGet, "/tapis-file/sys/a.csv", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	tests := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "SAMEORIGIN",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "sandbox",
		"Cache-Control":           "private, no-store",
	}
	for k, want := range tests {
		if v := rec.Header().Get(k); v != want {
			t.Errorf("%s = %q, want %q", k, v, want)
		}
	}
}

func TestSecurityHeaders_FileOnlyHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options missing on non-file route")
	}
	for _, k := range []string{"Content-Security-Policy", "Cache-Control"} {
		if v := rec.Header().Get(k); v != "" {
			t.Errorf("%s = %q on non-file route, want empty", k, v)
		}
	}
}

func TestSecurityHeaders_StripsHopByHop(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())

	var gotConnection, gotProxyAuth string
	e.GET("/test", func(c echo.Context) error {
		gotConnection = c.Request().Header.Get("Connection")
		gotProxyAuth = c.Request().Header.Get("Proxy-Authorization")
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if gotConnection != "" {
		t.Errorf("Connection header should be stripped, got %q", gotConnection)
	}
	if gotProxyAuth != "" {
		t.Errorf("Proxy-Authorization header should be stripped, got %q", gotProxyAuth)
	}
}
