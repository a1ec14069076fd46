package main

import (
	"context"
	"time"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/database"
	"github.com/shopcore/admin-guard/internal/events"
	"github.com/shopcore/admin-guard/internal/logger"
	"github.com/shopcore/admin-guard/internal/repository"
	"github.com/shopcore/admin-guard/internal/service"
	"github.com/shopcore/admin-guard/internal/worker"
)

// maintenance runs one session sweep and coordinated-attack scan, for cron
// deployments that keep the in-process worker disabled.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, closeStore, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open account store")
	}
	defer closeStore()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	monitor := service.NewSecurityMonitor(store, events.NewBus(rdb, log), log)
	worker.NewMaintenanceWorker(monitor, cfg.MaintenanceInterval, log).RunOnce(ctx)

	log.Info().Msg("Maintenance run complete")
}
