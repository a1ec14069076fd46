package handler

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/admin-guard/internal/events"
	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/model"
	"github.com/shopcore/admin-guard/internal/service"
	ws "github.com/shopcore/admin-guard/internal/websocket"
)

// stubAuth accepts every token until revoke is called.
type stubAuth struct {
	mu        sync.Mutex
	principal *service.Principal
	err       error
}

func (a *stubAuth) Authenticate(_ context.Context, token string) (*service.Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	if token != "tok-1" {
		return nil, service.ErrInvalidToken
	}
	return a.principal, nil
}

func (a *stubAuth) revoke() {
	a.mu.Lock()
	a.err = service.ErrSessionExpired
	a.mu.Unlock()
}

func testPrincipal() *service.Principal {
	owner := model.NewAccount("owner-1", "Owner", "owner@shop.test", "", time.Now())
	owner.Role = model.RolePrincipal
	owner.Status = model.StatusApproved
	return &service.Principal{Account: owner, SessionID: "s-1"}
}

// withPrincipal stands in for RequireAdmin.
func withPrincipal(p *service.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyPrincipal, p)
		c.Set(middleware.ContextKeyToken, "tok-1")
		c.Next()
	}
}

func newStreamServer(t *testing.T, allowedOrigins []string) (*httptest.Server, *events.Bus, *stubAuth) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	bus := events.NewBus(rdb, zerolog.Nop())

	p := testPrincipal()
	auth := &stubAuth{principal: p}
	h := NewWSHandler(bus, auth, zerolog.Nop(), allowedOrigins)
	h.recheck = 20 * time.Millisecond
	r := gin.New()
	r.GET("/stream", withPrincipal(p), h.SecurityStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, bus, auth
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	return websocket.DefaultDialer.Dial(url, header)
}

func TestSecurityStream_ForwardsEvents(t *testing.T) {
	srv, bus, _ := newStreamServer(t, nil)

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ready ws.ReadyResponse
	require.NoError(t, conn.ReadJSON(&ready))
	assert.Equal(t, ws.EventReady, ready.Event)
	assert.Equal(t, "owner-1", ready.AccountID)

	require.NoError(t, bus.Publish(context.Background(), model.SecurityEvent{
		Type:       model.EventAccountLocked,
		AccountID:  "staff-1",
		Email:      "staff@shop.test",
		OccurredAt: time.Now().UTC(),
	}))

	var got ws.SecurityEventResponse
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, ws.EventSecurityEvent, got.Event)
	assert.Equal(t, model.EventAccountLocked, got.Data.Type)
	assert.Equal(t, "staff-1", got.Data.AccountID)
}

func TestSecurityStream_AnswersPing(t *testing.T) {
	srv, _, _ := newStreamServer(t, nil)

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ready ws.ReadyResponse
	require.NoError(t, conn.ReadJSON(&ready))

	require.NoError(t, conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionPing}))
	var pong ws.PongResponse
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, ws.EventPong, pong.Event)
}

func TestSecurityStream_RejectsForeignOrigin(t *testing.T) {
	srv, _, _ := newStreamServer(t, []string{"https://admin.shop.test"})

	_, resp, err := dial(t, srv, http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dial(t, srv, http.Header{"Origin": {"https://ADMIN.shop.test"}})
	require.NoError(t, err)
	conn.Close()
}

func TestSecurityStream_ClosesWhenSessionEnds(t *testing.T) {
	srv, _, auth := newStreamServer(t, nil)

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ready ws.ReadyResponse
	require.NoError(t, conn.ReadJSON(&ready))

	auth.revoke()

	var msg ws.ErrorResponse
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.EventError, msg.Event)
	assert.Equal(t, "session ended", msg.Error)

	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "server should close the stream")
}

func TestStatusSSE_ClosesWhenSessionEnds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p := testPrincipal()
	auth := &stubAuth{principal: p}
	h := NewSystemHandler(rdb, auth, zerolog.Nop())
	h.interval = 20 * time.Millisecond
	r := gin.New()
	r.GET("/status/stream", withPrincipal(p), h.StatusSSE)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/status/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "), line)

	auth.revoke()

	done := make(chan string, 1)
	go func() {
		rest, _ := io.ReadAll(reader)
		done <- string(rest)
	}()
	select {
	case rest := <-done:
		assert.Contains(t, rest, "event: error")
		assert.Contains(t, rest, "session ended")
	case <-time.After(5 * time.Second):
		t.Fatal("status stream stayed open after the session ended")
	}
}

func TestParseAccountIDAndDuration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/admins/nope/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	_, ok := parseAccountID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, "1d 2h 3m 4s", formatDuration(26*time.Hour+3*time.Minute+4*time.Second))
	assert.Equal(t, "0m 9s", formatDuration(9*time.Second))
}
