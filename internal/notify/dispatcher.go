// Package notify renders security emails and hands them to the notification
// queue. Delivery happens in worker.NotificationWorker, so request handlers
// never wait on SMTP.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/metrics"
	"github.com/shopcore/admin-guard/internal/model"
)

// Message is one rendered email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Job is the queued unit of delivery.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Message    Message   `json:"message"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`
}

type templateData struct {
	Name           string
	Email          string
	When           string
	Device         model.DeviceInfo
	Findings       []string
	Code           string
	Expires        string
	Reason         string
	ApplicantName  string
	ApplicantEmail string
}

// Dispatcher renders notifications and pushes them onto the Redis queue.
type Dispatcher struct {
	rdb   *redis.Client
	queue string
	log   zerolog.Logger
	now   func() time.Time
}

// NewDispatcher creates a Dispatcher writing to WorkerKey.NotificationQueue.
func NewDispatcher(rdb *redis.Client, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		rdb:   rdb,
		queue: config.WorkerKey.NotificationQueue,
		log:   log.With().Str("component", "notify_dispatcher").Logger(),
		now:   time.Now,
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, kind Kind, to string, data templateData) error {
	subject, body, err := render(kind, data)
	if err != nil {
		return err
	}

	job := Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Message:    Message{To: to, Subject: subject, Body: body},
		EnqueuedAt: d.now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := d.rdb.RPush(ctx, d.queue, raw).Err(); err != nil {
		metrics.TrackNotification(string(kind), "enqueue_failed")
		return fmt.Errorf("enqueue notification: %w", err)
	}

	metrics.TrackNotification(string(kind), "queued")
	d.log.Debug().Str("job_id", job.ID).Str("kind", string(kind)).Str("to", to).Msg("Notification queued")
	return nil
}

func (d *Dispatcher) stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ─── service.Notifier ───────────────────────────────────────────────────

// SendLoginNotification queues a new-login notice.
func (d *Dispatcher) SendLoginNotification(ctx context.Context, a *model.Account, dev model.DeviceInfo) error {
	return d.enqueue(ctx, KindLogin, a.Email, templateData{
		Name:   a.Name,
		When:   d.stamp(d.now()),
		Device: dev,
	})
}

// SendSecurityAlert queues the threat findings for the account owner.
func (d *Dispatcher) SendSecurityAlert(ctx context.Context, a *model.Account, findings []string, dev model.DeviceInfo) error {
	return d.enqueue(ctx, KindSecurityAlert, a.Email, templateData{
		Name:     a.Name,
		When:     d.stamp(d.now()),
		Device:   dev,
		Findings: findings,
	})
}

// SendPasswordResetEmail queues the reset code. The code travels only in the queued job.
func (d *Dispatcher) SendPasswordResetEmail(ctx context.Context, a *model.Account, code string, expires time.Time) error {
	return d.enqueue(ctx, KindPasswordReset, a.Email, templateData{
		Name:    a.Name,
		Code:    code,
		Expires: d.stamp(expires),
	})
}

// SendApprovalNotification tells the applicant the account was approved.
func (d *Dispatcher) SendApprovalNotification(ctx context.Context, a *model.Account) error {
	return d.enqueue(ctx, KindApproval, a.Email, templateData{Name: a.Name, Email: a.Email})
}

// SendRejectionNotification tells the applicant the account was rejected.
func (d *Dispatcher) SendRejectionNotification(ctx context.Context, a *model.Account, reason string) error {
	return d.enqueue(ctx, KindRejection, a.Email, templateData{Name: a.Name, Email: a.Email, Reason: reason})
}

// SendNewRegistrationAlert tells one principal about a pending applicant.
func (d *Dispatcher) SendNewRegistrationAlert(ctx context.Context, principal, applicant *model.Account) error {
	return d.enqueue(ctx, KindNewRegistration, principal.Email, templateData{
		Name:           principal.Name,
		When:           d.stamp(applicant.CreatedAt),
		ApplicantName:  applicant.Name,
		ApplicantEmail: applicant.Email,
	})
}

// SendPasswordChangedNotice confirms a password change to the account owner.
func (d *Dispatcher) SendPasswordChangedNotice(ctx context.Context, a *model.Account, dev model.DeviceInfo) error {
	return d.enqueue(ctx, KindPasswordChanged, a.Email, templateData{
		Name:   a.Name,
		When:   d.stamp(d.now()),
		Device: dev,
	})
}
