package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/handler"
	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/middleware"
	"github.com/shopcore/admin-guard/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Session  *handler.SessionHandler
	Password *handler.PasswordHandler
	Admin    *handler.AdminHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// Limiters holds the per-IP limiters of the public endpoints. The caller
// owns their cleanup loops.
type Limiters struct {
	Login    *middleware.RateLimiter
	Register *middleware.RateLimiter
	Reset    *middleware.RateLimiter
}

// NewLimiters builds the public endpoint limiters from config.
func NewLimiters(cfg *config.Config) *Limiters {
	return &Limiters{
		Login:    middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.RateLimitWindow),
		Register: middleware.NewRateLimiter(cfg.RegisterRateLimit, cfg.RateLimitWindow),
		Reset:    middleware.NewRateLimiter(cfg.ResetRateLimit, cfg.RateLimitWindow),
	}
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.Authenticator,
	handlers *Handlers,
	limiters *Limiters,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Limiters, login records and the threat heuristics all key on
	// c.ClientIP(); only listed proxies may set it through X-Forwarded-For.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error().Err(err).Strs("trusted_proxies", cfg.TrustedProxies).Msg("Invalid TRUSTED_PROXIES, trusting none")
		_ = router.SetTrustedProxies(nil)
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log and every envelope carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())

	router.GET("/health", handlers.System.Health)
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	requireAdmin := middleware.RequireAdmin(auth, cfg.CookieName)

	// ─── 1. Public Group (Rate Limited) ────────────────────────────────
	api := router.Group("/api/v1/admin-auth")
	api.Use(middleware.NoStore())
	{
		api.POST("/register", limiters.Register.Middleware(), handlers.Auth.Register)
		api.POST("/login", limiters.Login.Middleware(), handlers.Auth.Login)

		api.POST("/password/reset-request", limiters.Reset.Middleware(), handlers.Password.RequestReset)
		api.POST("/password/verify-code", limiters.Reset.Middleware(), handlers.Password.VerifyCode)
		api.POST("/password/reset", limiters.Reset.Middleware(), handlers.Password.Reset)
	}

	// ─── 2. Authenticated Group (any approved admin) ───────────────────
	authed := api.Group("")
	authed.Use(requireAdmin)
	{
		authed.POST("/logout", handlers.Auth.Logout)
		authed.POST("/logout-all", handlers.Auth.LogoutAll)
		authed.GET("/me", handlers.Auth.Me)
		authed.PATCH("/me/notifications", handlers.Auth.UpdateNotifications)

		authed.GET("/sessions", handlers.Session.List)
		authed.DELETE("/sessions/:id", handlers.Session.Revoke)

		authed.POST("/password/change", handlers.Password.Change)
	}

	// ─── 3. Principal Group ────────────────────────────────────────────
	principal := authed.Group("")
	principal.Use(middleware.RequirePrincipal())
	{
		principal.GET("/admins", handlers.Admin.List)
		principal.GET("/admins/pending", handlers.Admin.Pending)
		principal.POST("/admins/:id/approve", handlers.Admin.Approve)
		principal.POST("/admins/:id/reject", handlers.Admin.Reject)
		principal.POST("/admins/:id/toggle-status", handlers.Admin.ToggleStatus)
		principal.POST("/admins/:id/unlock", handlers.Admin.Unlock)
		principal.DELETE("/admins/:id", handlers.Admin.Delete)

		principal.GET("/system/status", handlers.System.Status)
		principal.GET("/system/status/stream", handlers.System.StatusSSE)
	}

	// ─── 4. WebSocket Group (principals) ───────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(requireAdmin, middleware.RequirePrincipal())
	{
		ws.GET("/security/stream", handlers.WS.SecurityStream)
	}

	return router
}
