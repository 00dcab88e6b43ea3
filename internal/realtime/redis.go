package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultChannel = "cancha-llena:cambios"

	pingTimeout    = 5 * time.Second
	publishTimeout = 2 * time.Second
	outboxSize     = 256
)

// Connect opens a Redis client and checks it answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// RedisBridge joins the local hub to a Redis channel. Local events are
// delivered to the hub and forwarded to Redis; events published on the
// channel by other writers, such as the booking bot, are relayed into the
// hub. Events carrying this bridge's own origin are ignored.
type RedisBridge struct {
	client   *redis.Client
	hub      *Hub
	channel  string
	instance string
	outbox   chan Event
	log      *zap.Logger
}

func NewRedisBridge(client *redis.Client, hub *Hub, channel string, log *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{
		client:   client,
		hub:      hub,
		channel:  channel,
		instance: uuid.NewString(),
		outbox:   make(chan Event, outboxSize),
		log:      log,
	}
}

// Publish delivers e locally and queues it for Redis.
func (b *RedisBridge) Publish(e Event) {
	b.hub.Publish(e)

	e.Origin = b.instance
	select {
	case b.outbox <- e:
	default:
		b.log.Warn("redis outbox full, event not forwarded", zap.String("table", e.Table))
	}
}

// Run forwards queued events and relays remote ones until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info("redis bridge listening", zap.String("channel", b.channel), zap.String("instance", b.instance))

	incoming := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-b.outbox:
			b.forward(ctx, e)
		case msg, ok := <-incoming:
			if !ok {
				return fmt.Errorf("subscription to %s closed", b.channel)
			}
			b.relay(msg.Payload)
		}
	}
}

func (b *RedisBridge) forward(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.log.Warn("encode event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn("redis publish failed", zap.String("table", e.Table), zap.Error(err))
	}
}

func (b *RedisBridge) relay(payload string) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		b.log.Warn("undecodable change event", zap.Error(err))
		return
	}
	if e.Origin == b.instance || e.Table == "" {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.hub.Publish(e)
}
