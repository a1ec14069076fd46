package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/events"
	"github.com/shopcore/admin-guard/internal/middleware"
	ws "github.com/shopcore/admin-guard/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live security events to principal administrators.
type WSHandler struct {
	bus      *events.Bus
	auth     middleware.Authenticator
	log      zerolog.Logger
	upgrader websocket.Upgrader
	recheck  time.Duration
}

// NewWSHandler creates a new WSHandler. auth re-validates each open stream's
// session while it runs.
func NewWSHandler(bus *events.Bus, auth middleware.Authenticator, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		bus:      bus,
		auth:     auth,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		recheck:  streamRecheckInterval,
	}
}

// SecurityStream godoc
// WS /ws/v1/security/stream
// Upgrades to WebSocket and forwards every published security event until
// the client disconnects or the session stops being valid.
func (h *WSHandler) SecurityStream(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Subscribe before upgrading so a Redis failure is still a plain HTTP error.
	guard := newStreamGuard(h.auth, c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Security stream subscribe failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("account_id", p.Account.ID).
		Str("session_id", p.SessionID).
		Logger()
	wsLog.Info().Msg("Principal connected to security stream")

	if err := ws.WriteTyped(conn, ws.ReadyResponse{Event: ws.EventReady, AccountID: p.Account.ID}); err != nil {
		return
	}

	// Only this goroutine writes; the reader hands pings over via pongs.
	pongs := make(chan struct{}, 1)
	readDone := make(chan struct{})
	go h.readLoop(conn, wsLog, pongs, readDone)

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()
	recheck := time.NewTicker(h.recheck)
	defer recheck.Stop()

	for {
		select {
		case <-readDone:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				_ = ws.WriteError(conn, "event stream closed")
				return
			}
			if err := ws.WriteTyped(conn, ws.SecurityEventResponse{Event: ws.EventSecurityEvent, Data: ev}); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-pongs:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		case <-recheck.C:
			if err := guard.check(ctx); err != nil {
				wsLog.Info().Err(err).Msg("Session no longer valid, closing security stream")
				_ = ws.WriteError(conn, "session ended")
				return
			}
		}
	}
}

// readLoop consumes client frames until the connection closes.
func (h *WSHandler) readLoop(conn *websocket.Conn, wsLog zerolog.Logger, pongs chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	ws.KeepAlive(conn)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			select {
			case pongs <- struct{}{}:
			default:
			}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		}
	}
}
