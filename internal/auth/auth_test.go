package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(okHandler())

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"probe", "GET", "/healthz", "", http.StatusOK},
		{"metrics", "GET", "/metrics", "", http.StatusOK},
		{"viewer", "GET", "/", "", http.StatusOK},
		{"occlusion", "POST", "/api/v1/occlusion", "", http.StatusOK},
		{"curve", "GET", "/api/v1/curve/DEMO-1", "", http.StatusOK},
		{"systems without token", "GET", "/api/v1/systems", "", http.StatusUnauthorized},
		{"fetch with wrong token", "POST", "/api/v1/systems/fetch", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "GET", "/api/v1/systems", "Basic s3cret", http.StatusUnauthorized},
		{"empty bearer", "GET", "/api/v1/systems", "Bearer ", http.StatusUnauthorized},
		{"valid token", "GET", "/api/v1/systems", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", "GET", "/api/v1/stream/frames", "bearer s3cret", http.StatusOK},
		{"curve prefix only", "GET", "/api/v1/curves", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{Enabled: false})(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/systems/fetch", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}
