package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/service"
)

// MaintenanceJobs is the slice of SecurityMonitor the worker drives.
type MaintenanceJobs interface {
	SweepExpiredSessions(ctx context.Context) (int, error)
	DetectCoordinatedAttacks(ctx context.Context) ([]service.AttackReport, error)
}

// MaintenanceWorker runs the session sweep and coordinated-attack scan on a
// fixed interval, once immediately at start.
type MaintenanceWorker struct {
	jobs     MaintenanceJobs
	interval time.Duration
	log      zerolog.Logger
}

// NewMaintenanceWorker creates a worker that runs jobs every interval.
func NewMaintenanceWorker(jobs MaintenanceJobs, interval time.Duration, log zerolog.Logger) *MaintenanceWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &MaintenanceWorker{
		jobs:     jobs,
		interval: interval,
		log:      log.With().Str("component", "maintenance_worker").Logger(),
	}
}

// Start runs the jobs once immediately and then on every tick until ctx is cancelled.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("MaintenanceWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			w.log.Info().Msg("MaintenanceWorker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes both jobs. A failing job is logged and does not stop the other.
func (w *MaintenanceWorker) RunOnce(ctx context.Context) {
	if _, err := w.jobs.SweepExpiredSessions(ctx); err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("Session sweep failed")
	}
	if _, err := w.jobs.DetectCoordinatedAttacks(ctx); err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("Coordinated attack scan failed")
	}
}
