package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/models"
)

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xreal  string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:1234", "203.0.113.7"},
		{"x-real-ip", "", "203.0.113.9", "10.0.0.2:1234", "203.0.113.9"},
		{"remote addr", "", "", "198.51.100.4:5678", "198.51.100.4"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if tt.xreal != "" {
			r.Header.Set("X-Real-IP", tt.xreal)
		}
		if got := RealIP(r); got != tt.want {
			t.Errorf("%s: RealIP() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLoggerLevelTracksStatus(t *testing.T) {
	logAt := func(status int) string {
		var buf bytes.Buffer
		h := Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/classroom/state", nil))
		return buf.String()
	}

	if out := logAt(http.StatusForbidden); !strings.Contains(out, `"level":"info"`) {
		t.Errorf("403 logged as %s, want info", out)
	}
	if out := logAt(http.StatusInternalServerError); !strings.Contains(out, `"level":"error"`) {
		t.Errorf("500 logged as %s, want error", out)
	}
	if out := logAt(http.StatusOK); !strings.Contains(out, `"path":"/classroom/state"`) {
		t.Errorf("log line missing path: %s", out)
	}
}

func TestUserKeyPrefersProfile(t *testing.T) {
	r := httptest.NewRequest("POST", "/classroom/messages", nil)
	r.RemoteAddr = "10.0.0.2:1234"

	if got := userKey(r); got != "ratelimit:ip:10.0.0.2" {
		t.Fatalf("unauthenticated key = %q, want the IP fallback", got)
	}

	p := &models.Profile{ID: uuid.New()}
	r = r.WithContext(context.WithValue(r.Context(), profileContextKey, p))
	want := "ratelimit:user:" + p.ID.String()
	if got := userKey(r); got != want {
		t.Errorf("authenticated key = %q, want %q", got, want)
	}
}

func TestFindLimitGroupRoutesDeterministic(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop())

	post := httptest.NewRequest("POST", "/groups/0b7f/messages", nil)
	l := findLimit(rl.authed, post)
	if l == nil || l.Window != time.Minute {
		t.Fatalf("group message post matched %+v, want the per-minute limit", l)
	}

	create := httptest.NewRequest("POST", "/groups", nil)
	l = findLimit(rl.authed, create)
	if l == nil || l.Window != time.Hour {
		t.Fatalf("group create matched %+v, want the hourly limit", l)
	}
}

func TestPublicLimiterSkipsAuthedRoutes(t *testing.T) {
	// The nil Redis client proves the public table never consults a limit for
	// routes that are limited per user behind auth.
	rl := NewRateLimiter(nil, zerolog.Nop())

	called := false
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/classroom/messages", nil))
	if !called {
		t.Fatal("per-user route was limited before auth")
	}

	if l := findLimit(rl.public, httptest.NewRequest("POST", "/auth/login", nil)); l == nil {
		t.Fatal("login is not limited on the public surface")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/dm/0b7f3a2e":             "/dm/:id",
		"/groups/abc/messages":     "/groups/:id",
		"/lessons/abc":             "/lessons/:id",
		"/classroom/messages/01HV": "/classroom/messages/:id",
		"/classroom/messages":      "/classroom/messages",
		"/health":                  "/health",
	}
	for path, want := range tests {
		if got := normalizePath(path); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", path, got, want)
		}
	}
}
