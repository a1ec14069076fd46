package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/admin-guard/internal/model"
	"github.com/shopcore/admin-guard/internal/response"
	"github.com/shopcore/admin-guard/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	tokens map[string]*service.Principal
	seen   string
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*service.Principal, error) {
	f.seen = token
	if token == "" {
		return nil, service.ErrNoToken
	}
	if token == "locked" {
		e := *service.ErrAccountLocked
		e.LockoutRemaining = 90 * time.Second
		return nil, &e
	}
	p, ok := f.tokens[token]
	if !ok {
		return nil, service.ErrInvalidToken
	}
	return p, nil
}

func principalFor(role model.Role) *service.Principal {
	return &service.Principal{Account: &model.Account{ID: "acc-" + string(role), Role: role, Status: model.StatusApproved}, SessionID: "sid"}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *response.ErrorBody {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func newAuthRouter(auth *fakeAuth) *gin.Engine {
	r := gin.New()
	r.GET("/me", RequireAdmin(auth, "admin_token"), func(c *gin.Context) {
		c.String(http.StatusOK, GetPrincipal(c).Account.ID)
	})
	r.GET("/admins", RequireAdmin(auth, "admin_token"), RequirePrincipal(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAdmin_TokenSources(t *testing.T) {
	auth := &fakeAuth{tokens: map[string]*service.Principal{"good": principalFor(model.RoleAdmin)}}
	r := newAuthRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acc-admin", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "admin_token", Value: "good"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Query tokens are only honoured on WebSocket upgrades.
	req = httptest.NewRequest(http.MethodGet, "/me?token=good", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.ErrNoToken, decodeError(t, w).Code)
}

func TestRequireAdmin_Failures(t *testing.T) {
	r := newAuthRouter(&fakeAuth{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.ErrInvalidToken, decodeError(t, w).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer locked")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, response.ErrAccountLocked, body.Code)
	assert.Equal(t, 2, body.LockoutMinutes)
}

func TestExtractToken_WebsocketQuery(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	c.Request.Header.Set("Connection", "Upgrade")
	c.Request.Header.Set("Upgrade", "websocket")

	assert.Equal(t, "abc", ExtractToken(c, "admin_token"))
}

func TestRequirePrincipal(t *testing.T) {
	auth := &fakeAuth{tokens: map[string]*service.Principal{
		"admin":     principalFor(model.RoleAdmin),
		"principal": principalFor(model.RolePrincipal),
	}}
	r := newAuthRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/admins", nil)
	req.Header.Set("Authorization", "Bearer admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrInsufficientPrivileges, decodeError(t, w).Code)

	req = httptest.NewRequest(http.MethodGet, "/admins", nil)
	req.Header.Set("Authorization", "Bearer principal")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"))
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "buckets are per IP")

	now = now.Add(20 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"), "one token refills every 20s")
	assert.False(t, rl.Allow("1.2.3.4"))

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	assert.Empty(t, rl.visitors)
}

func TestRateLimiterMiddleware(t *testing.T) {
	r := gin.New()
	r.POST("/login", NewRateLimiter(1, time.Minute).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.ErrRateLimitExceeded, decodeError(t, w).Code)
}

func TestNoStoreAndRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(zerolog.New(&buf)), NoStore())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, buf.String(), `"path":"/health"`)
	assert.Contains(t, buf.String(), `"status":200`)
}
