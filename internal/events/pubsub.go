// Package events fans security events out over Redis Pub/Sub so every
// server instance can stream them to connected principals.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/model"
)

// Bus publishes to and subscribes from the security events channel.
type Bus struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

func NewBus(rdb *redis.Client, log zerolog.Logger) *Bus {
	return &Bus{
		rdb:     rdb,
		channel: config.CacheKey.SecurityEventsChannel(),
		log:     log.With().Str("component", "event_bus").Logger(),
	}
}

// Publish broadcasts ev. Having no subscribers is not an error.
func (b *Bus) Publish(ctx context.Context, ev model.SecurityEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscription is a live feed of security events.
type Subscription struct {
	pubsub *redis.PubSub
	events chan model.SecurityEvent
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan model.SecurityEvent {
	return s.events
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe opens a feed. It returns once Redis has confirmed the
// subscription, so events published afterwards are not missed.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	sub := &Subscription{pubsub: ps, events: make(chan model.SecurityEvent, 16)}
	go func() {
		defer close(sub.events)
		for msg := range ps.Channel() {
			var ev model.SecurityEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Error().Err(err).Msg("Discarding malformed security event")
				continue
			}
			select {
			case sub.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}
