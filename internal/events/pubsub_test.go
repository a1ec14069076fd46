package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/admin-guard/internal/model"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewBus(rdb, zerolog.Nop())
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	sent := model.SecurityEvent{
		Type:       model.EventAccountLocked,
		AccountID:  "acc-1",
		IP:         "5.9.0.1",
		OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.Publish(ctx, sent))

	select {
	case got := <-sub.Events():
		assert.Equal(t, sent.Type, got.Type)
		assert.Equal(t, sent.AccountID, got.AccountID)
		assert.True(t, sent.OccurredAt.Equal(got.OccurredAt))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := newTestBus(t)
	assert.NoError(t, bus.Publish(context.Background(), model.SecurityEvent{Type: model.EventAccountSuspended}))
}

func TestSubscriptionCloseEndsFeed(t *testing.T) {
	bus := newTestBus(t)
	sub, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed")
	}
}
