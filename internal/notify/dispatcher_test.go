package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/model"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewDispatcher(rdb, zerolog.Nop())
	d.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return d, mr
}

func popJob(t *testing.T, mr *miniredis.Miniredis) Job {
	t.Helper()
	raw, err := mr.Lpop(config.WorkerKey.NotificationQueue)
	require.NoError(t, err)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	return job
}

func account() *model.Account {
	return &model.Account{ID: "acc-1", Name: "Ama Mensah", Email: "ama@shop.test"}
}

func TestDispatcher_PasswordReset(t *testing.T) {
	d, mr := newTestDispatcher(t)
	expires := time.Date(2026, 3, 1, 9, 45, 0, 0, time.UTC)

	require.NoError(t, d.SendPasswordResetEmail(context.Background(), account(), "042917", expires))

	job := popJob(t, mr)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, KindPasswordReset, job.Kind)
	assert.Zero(t, job.Attempts)
	assert.Equal(t, "ama@shop.test", job.Message.To)
	assert.Equal(t, "Your password reset code", job.Message.Subject)
	assert.Contains(t, job.Message.Body, "042917")
	assert.Contains(t, job.Message.Body, "Sun, 01 Mar 2026 09:45 UTC")
}

func TestDispatcher_SecurityAlertListsFindings(t *testing.T) {
	d, mr := newTestDispatcher(t)
	dev := model.DeviceInfo{IP: "81.2.69.1", Browser: "Chrome", OS: "Windows", Location: "London, United Kingdom"}
	findings := []string{
		"Rapid location change: Accra, Ghana to London, United Kingdom within 20 minutes",
		"Login from a new device: Chrome on Windows",
	}

	require.NoError(t, d.SendSecurityAlert(context.Background(), account(), findings, dev))

	body := popJob(t, mr).Message.Body
	assert.Contains(t, body, "Hello Ama Mensah")
	assert.Contains(t, body, "  - Rapid location change")
	assert.Contains(t, body, "  - Login from a new device")
	assert.Contains(t, body, "London, United Kingdom")
}

func TestDispatcher_RejectionReasonIsOptional(t *testing.T) {
	d, mr := newTestDispatcher(t)
	ctx := context.Background()

	require.NoError(t, d.SendRejectionNotification(ctx, account(), "incomplete details"))
	require.NoError(t, d.SendRejectionNotification(ctx, account(), ""))

	assert.Contains(t, popJob(t, mr).Message.Body, "Reason: incomplete details")
	assert.NotContains(t, popJob(t, mr).Message.Body, "Reason:")
}

func TestDispatcher_EveryKindRenders(t *testing.T) {
	d, mr := newTestDispatcher(t)
	ctx := context.Background()
	a := account()
	applicant := &model.Account{Name: "Kofi", Email: "kofi@shop.test", CreatedAt: d.now()}

	require.NoError(t, d.SendLoginNotification(ctx, a, model.DeviceInfo{IP: "41.66.0.1"}))
	require.NoError(t, d.SendApprovalNotification(ctx, a))
	require.NoError(t, d.SendNewRegistrationAlert(ctx, a, applicant))
	require.NoError(t, d.SendPasswordChangedNotice(ctx, a, model.DeviceInfo{}))

	want := []Kind{KindLogin, KindApproval, KindNewRegistration, KindPasswordChanged}
	for _, kind := range want {
		job := popJob(t, mr)
		assert.Equal(t, kind, job.Kind)
		assert.NotEmpty(t, job.Message.Subject)
		assert.NotContains(t, job.Message.Body, "<no value>")
	}
}

func TestDispatcher_RedisDown(t *testing.T) {
	d, mr := newTestDispatcher(t)
	mr.Close()

	err := d.SendApprovalNotification(context.Background(), account())
	assert.Error(t, err)
}

func TestRenderUnknownKind(t *testing.T) {
	_, _, err := render(Kind("carrier_pigeon"), templateData{})
	assert.Error(t, err)
}
