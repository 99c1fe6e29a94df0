package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/auth"
	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

type stubAuthenticator map[string]auth.Session

func (s stubAuthenticator) Authenticate(token string) (auth.Session, error) {
	session, ok := s[token]
	if !ok {
		return auth.Session{}, auth.ErrInvalidToken
	}
	return session, nil
}

func sessionEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(session.User.Username))
	})
}

func TestRequireSession(t *testing.T) {
	authn := stubAuthenticator{
		"good": {ID: "s1", User: clinic.User{ID: 1, Username: "reem", Role: clinic.RoleReceptionist}},
	}
	handler := RequireSession(authn)(sessionEcho(t))

	tests := []struct {
		name     string
		target   string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "bearer header", target: "/api/me", header: "Bearer good", wantCode: http.StatusOK, wantBody: "reem"},
		{name: "lowercase scheme", target: "/api/me", header: "bearer good", wantCode: http.StatusOK, wantBody: "reem"},
		{name: "query token", target: "/ws/board?token=good", wantCode: http.StatusOK, wantBody: "reem"},
		{name: "missing token", target: "/api/me", wantCode: http.StatusUnauthorized},
		{name: "unknown token", target: "/api/me", header: "Bearer forged", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireRole(clinic.RoleManager)(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	doctor := auth.Session{ID: "s2", User: clinic.User{Role: clinic.RoleDoctor}}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithSession(context.Background(), doctor)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	manager := auth.Session{ID: "s3", User: clinic.User{Role: clinic.RoleManager}}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithSession(context.Background(), manager)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterRefills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	rl.evict(now.Add(time.Minute))
	assert.Empty(t, rl.buckets)
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RateLimit(NewRateLimiter(ctx, 0.001, 1), nil)(ok)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	other.Header.Set("X-Real-Ip", "10.0.0.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.4:4431"
	assert.Equal(t, "192.168.1.4", ByClientIP(req))
	assert.Equal(t, "192.168.1.4", BySession(req))

	req = req.WithContext(WithSession(req.Context(), auth.Session{ID: "abc"}))
	assert.Equal(t, "session:abc", BySession(req))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("debug", &buf)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/visits", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-7", rec.Header().Get("X-Request-ID"))
	out := buf.String()
	assert.Contains(t, out, `"status":409`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"path":"/api/visits"`)
}
