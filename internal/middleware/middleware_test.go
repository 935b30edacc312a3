package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTokens(now func() time.Time) *security.TokenManager {
	return security.NewTokenManager("access", "refresh").WithClock(now)
}

func token(t *testing.T, tm *security.TokenManager, roles ...domain.Role) string {
	t.Helper()
	names := []string{}
	for _, r := range roles {
		names = append(names, string(r))
	}
	tok, err := tm.GenerateAccessToken(security.Subject{UserID: "u1", Email: "u1@example.com", Roles: names, SessionID: "s1"})
	require.NoError(t, err)
	return tok
}

func protected(gate gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/p", gate, func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID, "sessionId": claims.SessionID})
	})
	return r
}

func call(r http.Handler, header string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRoleGates(t *testing.T) {
	tm := newTokens(func() time.Time { return epoch })
	user := "Bearer " + token(t, tm, domain.RoleUser)
	admin := "Bearer " + token(t, tm, domain.RoleUser, domain.RoleAdmin)
	root := "Bearer " + token(t, tm, domain.RoleSuperAdmin)

	cases := []struct {
		name   string
		gate   gin.HandlerFunc
		header string
		want   int
	}{
		{"user passes user gate", RequireUser(tm), user, http.StatusOK},
		{"user blocked by admin gate", RequireAdmin(tm), user, http.StatusForbidden},
		{"admin passes admin gate", RequireAdmin(tm), admin, http.StatusOK},
		{"super admin passes admin gate", RequireAdmin(tm), root, http.StatusOK},
		{"admin blocked by super admin gate", RequireSuperAdmin(tm), admin, http.StatusForbidden},
		{"super admin passes super admin gate", RequireSuperAdmin(tm), root, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := call(protected(tc.gate), tc.header)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "u1", body["userId"])
				assert.Equal(t, "s1", body["sessionId"])
			} else {
				assert.Equal(t, "Insufficient permissions", body["error"])
			}
		})
	}
}

func TestAuthorizeRejectsBadCredentials(t *testing.T) {
	now := epoch
	tm := newTokens(func() time.Time { return now })
	valid := token(t, tm)
	refresh, _, err := tm.GenerateRefreshToken(security.Subject{UserID: "u1"}, "s1")
	require.NoError(t, err)
	r := protected(RequireUser(tm))

	cases := map[string]string{
		"":                  "Authorization header is required",
		"Token " + valid:    "Invalid authorization header format",
		"Bearer":            "Invalid authorization header format",
		"Bearer a b":        "Invalid authorization header format",
		"Bearer garbage":    "Invalid token",
		"Bearer " + refresh: "Invalid token",
	}
	for header, msg := range cases {
		w, body := call(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, msg, body["error"], header)
	}

	now = epoch.Add(security.AccessTokenTTL + time.Second)
	w, body := call(r, "Bearer "+valid)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token expired", body["error"])
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], window, nil
}

func limited(rl *RateLimiter, limit int) *gin.Engine {
	r := gin.New()
	r.POST("/login", rl.Limit("login", limit, 5*time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func post(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	counter := &memCounter{}
	r := limited(NewRateLimiter(counter, zap.NewNop()), 2)

	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
	w := post(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Too many requests","retry_after":"5 minutes"}`, w.Body.String())
	assert.Equal(t, "300", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.2").Code, "limits are per client")
	assert.Contains(t, counter.counts, "login:10.0.0.1")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := limited(NewRateLimiter(&memCounter{err: errors.New("redis down")}, zap.New(core)), 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
	}
	assert.Equal(t, 3, logs.FilterMessage("rate limiter unavailable").Len())

	r = limited(NewRateLimiter(nil, zap.NewNop()), 1)
	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tm := newTokens(func() time.Time { return epoch })
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/p", RequireUser(tm), func(c *gin.Context) { c.Status(http.StatusOK) })

	call(r, "Bearer "+token(t, tm))
	call(r, "")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "u1", entries[0].ContextMap()["userId"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "/p", entries[1].ContextMap()["path"])
}
