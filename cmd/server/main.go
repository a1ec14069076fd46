package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/database"
	"github.com/shopcore/admin-guard/internal/device"
	"github.com/shopcore/admin-guard/internal/events"
	"github.com/shopcore/admin-guard/internal/handler"
	"github.com/shopcore/admin-guard/internal/logger"
	"github.com/shopcore/admin-guard/internal/notify"
	"github.com/shopcore/admin-guard/internal/repository"
	"github.com/shopcore/admin-guard/internal/router"
	"github.com/shopcore/admin-guard/internal/service"
	"github.com/shopcore/admin-guard/internal/validator"
	"github.com/shopcore/admin-guard/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting admin-guard")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to the Account Store ──────────────────────────────────
	store, closeStore, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open account store")
	}
	defer closeStore()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	resolver, err := device.NewResolver(cfg, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid HIGH_RISK_NETWORKS")
	}
	bus := events.NewBus(rdb, log)
	dispatcher := notify.NewDispatcher(rdb, log)
	tokens := service.NewTokenManager(cfg)
	analyzer := service.NewThreatAnalyzer(resolver)

	authService := service.NewAuthService(cfg, store, tokens, resolver, analyzer, dispatcher, bus, log)
	approvalService := service.NewApprovalService(cfg, store, dispatcher, bus, log)
	resetService := service.NewPasswordResetService(cfg, store, dispatcher, log)
	monitor := service.NewSecurityMonitor(store, bus, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, authService, approvalService),
		Session:  handler.NewSessionHandler(authService),
		Password: handler.NewPasswordHandler(authService, resetService),
		Admin:    handler.NewAdminHandler(approvalService),
		WS:       handler.NewWSHandler(bus, authService, log, cfg.AllowedOrigins),
		System:   handler.NewSystemHandler(rdb, authService, log),
	}
	limiters := router.NewLimiters(cfg)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	startWorker := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(workerCtx)
		}()
	}

	mailer, err := notify.NewMailer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure mailer")
	}
	for i := 0; i < cfg.NotificationWorkers; i++ {
		startWorker(worker.NewNotificationWorker(cfg, rdb, mailer, log).Start)
	}
	startWorker(worker.NewMaintenanceWorker(monitor, cfg.MaintenanceInterval, log).Start)

	limiterDone := make(chan struct{})
	for _, rl := range []interface{ Run(<-chan struct{}) }{limiters.Login, limiters.Register, limiters.Reset} {
		go rl.Run(limiterDone)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiters, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for in-flight jobs.
	close(limiterDone)
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
