package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/response"
)

const systemStatusInterval = 7 * time.Second

// SystemHandler reports process and queue health to principals.
type SystemHandler struct {
	rdb       *redis.Client
	auth      middleware.Authenticator
	startTime time.Time
	log       zerolog.Logger
	interval  time.Duration
}

// NewSystemHandler creates a SystemHandler. auth re-validates the session
// behind each status stream.
func NewSystemHandler(rdb *redis.Client, auth middleware.Authenticator, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		auth:      auth,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
		interval:  systemStatusInterval,
	}
}

type systemStatus struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc"`
	NumGC       uint32 `json:"num_gc"`
	AppRSSBytes uint64 `json:"app_rss_bytes,omitempty"`
	GoVersion   string `json:"go_version"`

	RedisOK                bool  `json:"redis_ok"`
	NotificationQueue      int64 `json:"notification_queue"`
	NotificationDeadLetter int64 `json:"notification_dead_letter"`
}

// Health godoc
// GET /health
// Answers 503 when Redis is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Health check: redis unreachable")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "uptime": formatDuration(time.Since(h.startTime))})
}

// Status godoc
// GET /api/v1/admin-auth/system/status
func (h *SystemHandler) Status(c *gin.Context) {
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

// StatusSSE godoc
// GET /api/v1/admin-auth/system/status/stream
// Pushes a status snapshot on connect and every few seconds after.
func (h *SystemHandler) StatusSSE(c *gin.Context) {
	reqCtx := c.Request.Context()
	guard := newStreamGuard(h.auth, c)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Principal connected to system status SSE")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.writeStatus(c)
	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Principal disconnected from system status SSE")
			return
		case <-ticker.C:
			if err := guard.check(reqCtx); err != nil {
				h.log.Info().Err(err).Msg("Session no longer valid, closing system status SSE")
				_, _ = fmt.Fprint(c.Writer, "event: error\ndata: {\"error\":\"session ended\"}\n\n")
				c.Writer.Flush()
				return
			}
			h.writeStatus(c)
		}
	}
}

func (h *SystemHandler) writeStatus(c *gin.Context) {
	data, err := json.Marshal(h.collect(c.Request.Context()))
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemStatus {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := systemStatus{
		Timestamp:  time.Now().Unix(),
		Uptime:     formatDuration(time.Since(h.startTime)),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
	}
	s.AppRSSBytes, _ = readProcessRSS()

	// ── Notification queues (pipelined LLEN) ──
	pipe := h.rdb.Pipeline()
	queueCmd := pipe.LLen(ctx, config.WorkerKey.NotificationQueue)
	deadCmd := pipe.LLen(ctx, config.WorkerKey.NotificationDeadLetter)
	if _, err := pipe.Exec(ctx); err == nil {
		s.RedisOK = true
		s.NotificationQueue, _ = queueCmd.Result()
		s.NotificationDeadLetter, _ = deadCmd.Result()
	}
	return s
}

// readProcessRSS reads VmRSS from /proc/self/status. It fails off Linux.
func readProcessRSS() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		// Format: "VmRSS:     12345 kB"
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("VmRSS not found")
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
