package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/notify"
)

const (
	PollTimeout = 1 * time.Second // Must be >= 1s to satisfy Redis
	SendTimeout = 30 * time.Second
	// RedisBackoff is the pause after a Redis connection error.
	RedisBackoff = 3 * time.Second
)

// NotificationWorker drains the notification queue and delivers each job
// through the mailer. Failed jobs go back on the queue until they run out of
// attempts, then move to the dead-letter list.
type NotificationWorker struct {
	rdb         *redis.Client
	mailer      notify.Mailer
	maxAttempts int
	queue       string
	deadLetter  string
	backoff     time.Duration
	log         zerolog.Logger
}

// NewNotificationWorker creates a worker draining WorkerKey.NotificationQueue.
// A job is tried at most NotificationMaxAttempts times before it is dead-lettered.
func NewNotificationWorker(cfg *config.Config, rdb *redis.Client, mailer notify.Mailer, log zerolog.Logger) *NotificationWorker {
	maxAttempts := cfg.NotificationMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &NotificationWorker{
		rdb:         rdb,
		mailer:      mailer,
		maxAttempts: maxAttempts,
		queue:       config.WorkerKey.NotificationQueue,
		deadLetter:  config.WorkerKey.NotificationDeadLetter,
		backoff:     RedisBackoff,
		log:         log.With().Str("component", "notification_worker").Logger(),
	}
}

// Start blocks on BLPOP and delivers jobs until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.log.Info().Int("max_attempts", w.maxAttempts).Msg("NotificationWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("NotificationWorker stopped")
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, w.queue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Dur("backoff", w.backoff).Msg("Redis connection error")
			sleep(ctx, w.backoff)
			continue
		}
		if len(result) < 2 {
			continue
		}

		w.process(ctx, result[1])
	}
}

// process delivers one raw job. Malformed payloads cannot be retried and are
// dead-lettered as-is.
func (w *NotificationWorker) process(ctx context.Context, raw string) {
	var job notify.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Dead-lettering malformed notification")
		w.push(ctx, w.deadLetter, []byte(raw))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, SendTimeout)
	err := w.mailer.Send(sendCtx, job.Message)
	cancel()

	if err == nil {
		metrics.TrackNotification(string(job.Kind), "sent")
		w.log.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Str("to", job.Message.To).Msg("Notification sent")
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	encoded, _ := json.Marshal(job)

	if job.Attempts >= w.maxAttempts {
		metrics.TrackNotification(string(job.Kind), "dead_lettered")
		w.log.Error().Err(err).Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("Notification dead-lettered")
		w.push(ctx, w.deadLetter, encoded)
		return
	}

	metrics.TrackNotification(string(job.Kind), "retry")
	w.log.Warn().Err(err).Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("Notification failed, requeueing")
	w.push(ctx, w.queue, encoded)
}

// push appends payload to list, logging instead of failing.
func (w *NotificationWorker) push(ctx context.Context, list string, payload []byte) {
	// Detached so a shutdown mid-delivery does not lose the job.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.rdb.RPush(pushCtx, list, payload).Err(); err != nil {
		w.log.Error().Err(err).Str("list", list).Msg("CRITICAL: Failed to push notification back to Redis. Data loss occurred.")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
