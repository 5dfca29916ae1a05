package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	env := newTestEnv(t, okTapis("text/plain", []byte("ok")))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		header     map[string]string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", "", nil, http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", "", nil, http.StatusOK},
		{"GET /tapis-file/ with token", http.MethodGet, "/tapis-file/sys/a.txt", "", map[string]string{"X-Tapis-Token": "t"}, http.StatusOK},
		{"GET /tapis-file/ without token", http.MethodGet, "/tapis-file/sys/a.txt", "", nil, http.StatusUnauthorized},
		{"POST /tapis-file/ not allowed", http.MethodPost, "/tapis-file/sys/a.txt", "", nil, http.StatusMethodNotAllowed},
		{"POST /tapis-session", http.MethodPost, "/tapis-session", `{"access_token":"t"}`, map[string]string{"Content-Type": "application/json"}, http.StatusOK},
		{"DELETE /tapis-session", http.MethodDelete, "/tapis-session", "", nil, http.StatusNoContent},
		{"POST /api/resource/show", http.MethodPost, "/api/resource/show", `{}`, nil, http.StatusOK},
		{"POST /api/resource/validate", http.MethodPost, "/api/resource/validate", `{}`, nil, http.StatusOK},
		{"GET /api/tapis-url", http.MethodGet, "/api/tapis-url?url=x", "", nil, http.StatusOK},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", "", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			env.echo.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
