package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/admin-guard/internal/model"
)

func TestSweepExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stale := env.seedAccount(t, "stale@shop.test", model.RoleAdmin, model.StatusApproved)
	fresh := env.seedAccount(t, "fresh@shop.test", model.RoleAdmin, model.StatusApproved)

	for i := 0; i < 2; i++ {
		_, err := env.login(t, "stale@shop.test", "41.66.0.1")
		require.NoError(t, err)
	}
	env.clock.Advance(20 * time.Hour)
	_, err := env.login(t, "fresh@shop.test", "41.66.0.1")
	require.NoError(t, err)

	env.clock.Advance(5 * time.Hour)
	n, err := env.monitor.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Empty(t, activeSessions(env.store.get(t, stale.ID)))
	assert.Len(t, activeSessions(env.store.get(t, fresh.ID)), 1)

	n, err = env.monitor.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDetectCoordinatedAttacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	attacker := LoginInput{Password: "Wrong-pass1", IP: "5.9.0.1"}
	var victims []string
	for _, email := range []string{"v1@shop.test", "v2@shop.test", "v3@shop.test"} {
		victims = append(victims, env.seedAccount(t, email, model.RoleAdmin, model.StatusApproved).ID)
		attacker.Email = email
		for i := 0; i < 3; i++ {
			_, _ = env.auth.Login(ctx, attacker)
		}
	}

	// Two locked accounts from another address stay under the threshold.
	for _, email := range []string{"w1@shop.test", "w2@shop.test"} {
		env.seedAccount(t, email, model.RoleAdmin, model.StatusApproved)
		for i := 0; i < 3; i++ {
			_, _ = env.auth.Login(ctx, LoginInput{Email: email, Password: "nope", IP: "8.8.8.8"})
		}
	}

	reports, err := env.monitor.DetectCoordinatedAttacks(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "5.9.0.1", reports[0].IP)
	assert.ElementsMatch(t, victims, reports[0].AccountIDs)
	assert.Equal(t, 9, reports[0].Attempts)

	events := env.events.byType(model.EventCoordinatedAttack)
	require.Len(t, events, 1)
	assert.Equal(t, "5.9.0.1", events[0].IP)
}

func TestDetectCoordinatedAttacks_IgnoresExpiredLockouts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, email := range []string{"x1@shop.test", "x2@shop.test", "x3@shop.test"} {
		env.seedAccount(t, email, model.RoleAdmin, model.StatusApproved)
		for i := 0; i < 3; i++ {
			_, _ = env.auth.Login(ctx, LoginInput{Email: email, Password: "nope", IP: "5.9.0.1"})
		}
	}

	env.clock.Advance(6 * time.Minute)
	reports, err := env.monitor.DetectCoordinatedAttacks(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)
}
