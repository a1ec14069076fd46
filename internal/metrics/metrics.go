package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_guard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_guard_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_guard_store_operation_duration_seconds",
			Help:    "Duration of account store operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"driver", "operation"},
	)

	// Authentication Metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_guard_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"}, // success, invalid_credentials, locked, not_approved
	)

	Lockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_guard_lockouts_total",
			Help: "Accounts put into lockout after repeated failures",
		},
	)

	// Session Metrics
	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_guard_session_events_total",
			Help: "Session lifecycle events",
		},
		[]string{"event"}, // created, evicted, revoked, expired
	)

	// Threat Metrics
	ThreatFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_guard_threat_findings_total",
			Help: "Threat analyzer findings by heuristic",
		},
		[]string{"kind"},
	)

	CoordinatedAttacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_guard_coordinated_attacks_total",
			Help: "Source addresses flagged as coordinated attacks",
		},
	)

	// Notification Metrics
	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_guard_notification_deliveries_total",
			Help: "Notification deliveries by kind and outcome",
		},
		[]string{"kind", "outcome"}, // sent, retried, dead_lettered, enqueue_failed
	)
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// TrackStoreOperation starts a timer for one store call; call ObserveDuration when done.
func TrackStoreOperation(driver, operation string) *prometheus.Timer {
	return prometheus.NewTimer(StoreOperationDuration.WithLabelValues(driver, operation))
}

// TrackLogin increments the login attempt counter.
func TrackLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

// TrackSessions adds n to the counter for a session event.
func TrackSessions(event string, n int) {
	if n <= 0 {
		return
	}
	SessionEvents.WithLabelValues(event).Add(float64(n))
}

// TrackFinding increments the counter for a threat heuristic.
func TrackFinding(kind string) {
	ThreatFindings.WithLabelValues(kind).Inc()
}

// TrackNotification records the outcome of one notification job.
func TrackNotification(kind, outcome string) {
	NotificationDeliveries.WithLabelValues(kind, outcome).Inc()
}
