package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

type relayMessage struct {
	Origin   string   `json:"origin"`
	Envelope Envelope `json:"envelope"`
}

// RedisRelay shares one broadcast stream between several server processes.
// Local emissions reach the local hub immediately and are queued for Redis;
// envelopes published by other processes are re-published on the local hub.
type RedisRelay struct {
	hub     *Hub
	client  *redis.Client
	channel string
	origin  string
	outbox  chan Envelope
	logger  *slog.Logger
	down    atomic.Bool
}

func NewRedisRelay(hub *Hub, redisURL, channel string, logger *slog.Logger) (*RedisRelay, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return newRedisRelay(hub, redis.NewClient(opt), channel, logger), nil
}

func newRedisRelay(hub *Hub, client *redis.Client, channel string, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{
		hub:     hub,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		outbox:  make(chan Envelope, 256),
		logger:  logger,
	}
}

func (r *RedisRelay) Emit(e Event) {
	r.publish(newEnvelope(EventProcessingUpdate, e))
}

func (r *RedisRelay) EmitError(msg string) {
	r.publish(newEnvelope(EventError, msg))
}

func (r *RedisRelay) publish(env Envelope) {
	r.hub.Publish(env)
	if r.down.Load() {
		return
	}
	select {
	case r.outbox <- env:
	default:
		r.logger.Warn("redis relay outbox full, event not shared", "event", env.Event)
	}
}

// Run pumps the outbox to Redis and forwards foreign envelopes to the hub
// until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	incoming := sub.Channel()

	r.logger.Info("redis relay started", "channel", r.channel, "origin", r.origin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-r.outbox:
			payload, err := encodeRelayMessage(r.origin, env)
			if err != nil {
				r.logger.Warn("redis relay encode failed", "error", err)
				continue
			}
			if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
				r.logger.Warn("redis publish failed", "error", err)
			}
		case msg, ok := <-incoming:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			env, foreign, err := decodeRelayMessage(msg.Payload, r.origin)
			if err != nil {
				r.logger.Warn("redis relay decode failed", "error", err)
				continue
			}
			if foreign {
				r.hub.Publish(env)
			}
		}
	}
}

// Serve runs the relay until ctx is done. A Redis failure is logged and the
// relay degrades to the local hub instead of stopping the caller.
func (r *RedisRelay) Serve(ctx context.Context) {
	if err := r.Run(ctx); err != nil {
		r.down.Store(true)
		r.logger.Error("redis relay stopped, serving local listeners only", "error", err)
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func encodeRelayMessage(origin string, env Envelope) ([]byte, error) {
	return json.Marshal(relayMessage{Origin: origin, Envelope: env})
}

// decodeRelayMessage reports foreign=false for messages this process sent.
func decodeRelayMessage(payload, self string) (Envelope, bool, error) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Envelope{}, false, err
	}
	return msg.Envelope, msg.Origin != self, nil
}
