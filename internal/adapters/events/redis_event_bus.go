package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	redisclient "github.com/zatekoja/teleconsult/internal/infrastructure/clients/redis"
)

const subscriberBuffer = 100

// RedisEventBus implements the EventBus interface using Redis Pub/Sub so that
// every API replica sees appointment events regardless of which one wrote them.
// Each channel holds one Redis subscription shared by all local subscribers.
type RedisEventBus struct {
	client   *redisclient.Client
	channels map[string]*channelSubscription
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// channelSubscription is one Redis subscription and its local listeners
type channelSubscription struct {
	pubsub    *redis.PubSub
	listeners map[chan *entities.AppointmentEvent]struct{}
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		channels: make(map[string]*channelSubscription),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish serialises the event as JSON and publishes it on channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Int64("appointment_id", event.AppointmentID).
		Msg("published appointment event")
	return nil
}

// Subscribe returns a channel of events published on channel. The returned
// channel is closed when ctx is done or the bus is closed.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	if b.ctx.Err() != nil {
		return nil, errors.New("event bus is closed")
	}

	listener := make(chan *entities.AppointmentEvent, subscriberBuffer)

	b.mu.Lock()
	sub, ok := b.channels[channel]
	if !ok {
		sub = &channelSubscription{
			pubsub:    b.client.Client().Subscribe(b.ctx, channel),
			listeners: make(map[chan *entities.AppointmentEvent]struct{}),
		}
		b.channels[channel] = sub
		go b.receive(channel, sub)
	}
	sub.listeners[listener] = struct{}{}
	count := len(sub.listeners)
	b.mu.Unlock()

	log.Debug().Str("channel", channel).Int("subscribers", count).Msg("subscribed to channel")

	go func() {
		<-ctx.Done()
		b.removeListener(channel, listener)
	}()

	return listener, nil
}

func (b *RedisEventBus) receive(channel string, sub *channelSubscription) {
	defer b.release(channel, sub)

	messages := sub.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.AppointmentEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("failed to unmarshal appointment event")
				continue
			}
			b.fanOut(channel, sub, &event)
		}
	}
}

// fanOut delivers without blocking; a slow listener misses the event.
func (b *RedisEventBus) fanOut(channel string, sub *channelSubscription, event *entities.AppointmentEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for listener := range sub.listeners {
		select {
		case listener <- event:
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber channel full, skipping event")
		}
	}
}

func (b *RedisEventBus) removeListener(channel string, listener chan *entities.AppointmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.channels[channel]
	if !ok {
		return
	}
	if _, ok := sub.listeners[listener]; !ok {
		return
	}
	delete(sub.listeners, listener)
	close(listener)

	if len(sub.listeners) == 0 {
		delete(b.channels, channel)
		if err := sub.pubsub.Close(); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("failed to close subscription")
		}
		log.Debug().Str("channel", channel).Msg("closed subscription")
	}
}

// release closes sub and its remaining listeners. It leaves the channel entry
// alone if a newer subscription has replaced sub.
func (b *RedisEventBus) release(channel string, sub *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.channels[channel]; ok && current == sub {
		delete(b.channels, channel)
	}
	for listener := range sub.listeners {
		close(listener)
	}
	sub.listeners = map[chan *entities.AppointmentEvent]struct{}{}
	_ = sub.pubsub.Close()
}

// Unsubscribe drops every local subscriber of a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	sub, ok := b.channels[channel]
	if ok {
		delete(b.channels, channel)
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}
	// Closing the pubsub ends receive, which closes the listeners
	if err := sub.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	return nil
}

// Close cancels every subscription. Listeners are closed as their receive
// loops exit.
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	subs := make(map[string]*channelSubscription, len(b.channels))
	for channel, sub := range b.channels {
		subs[channel] = sub
	}
	b.mu.Unlock()

	var errs []error
	for channel, sub := range subs {
		if err := sub.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
		}
	}

	log.Info().Msg("event bus closed")
	return errors.Join(errs...)
}
