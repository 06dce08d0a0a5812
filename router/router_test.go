package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/config"
	"github.com/hedgeledger/engine/poolcache"
)

func testSetup() http.Handler {
	cfg := &config.Config{
		Addr:       ":0",
		Env:        "test",
		AdminToken: "secret",
	}
	log := zerolog.New(io.Discard).With().Timestamp().Logger()
	cache := poolcache.New(nil, "", 0, log)
	chains := chain.NewRegistry()
	return NewRouter(cfg, log, nil, cache, chains, nil)
}

func TestHealthEndpoints(t *testing.T) {
	r := testSetup()

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"healthz", "/healthz", http.StatusOK},
		{"ready cold cache", "/ready", http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			rw := httptest.NewRecorder()
			r.ServeHTTP(rw, req)
			if rw.Result().StatusCode != tc.status {
				t.Fatalf("expected %d for %s, got %d", tc.status, tc.path, rw.Result().StatusCode)
			}
		})
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	r := testSetup()

	req := httptest.NewRequest(http.MethodGet, "/admin/chains", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated /admin/chains, got %d", rw.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/chains", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for authenticated /admin/chains, got %d", rw.Result().StatusCode)
	}
}

func TestAdminRejectsWrongToken(t *testing.T) {
	r := testSetup()

	req := httptest.NewRequest(http.MethodGet, "/admin/chains", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rw.Result().StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := testSetup()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	headers := []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"Strict-Transport-Security",
	}
	for _, h := range headers {
		if rw.Header().Get(h) == "" {
			t.Fatalf("expected security header %s to be set", h)
		}
	}
}
