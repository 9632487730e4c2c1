// Package broadcast relays engine events to Redis so other processes can
// follow prices and opportunities without talking to the engine.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"arbwatch/internal/config"
	"arbwatch/internal/events"
	"arbwatch/internal/model"

	"github.com/redis/go-redis/v9"
)

// PricesKey is the hash holding the latest price per exchange for an instrument.
const PricesKey = "arbwatch:prices:"

// Message is the JSON envelope published for every event.
type Message struct {
	Type      events.Kind `json:"type"`
	Data      any         `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// RedisPublisher publishes events to a pub/sub channel and mirrors the latest
// quotes into per-instrument hashes.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection with PING.
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return NewRedisPublisherFromClient(rdb, cfg.Channel, logger), nil
}

// NewRedisPublisherFromClient wraps an existing client.
func NewRedisPublisherFromClient(rdb *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = "arbitrage:events"
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}
}

// Channel returns the pub/sub channel events are published on.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Handle implements events.Handler. Failures are logged and dropped.
func (p *RedisPublisher) Handle(ctx context.Context, ev events.Event) {
	body, err := json.Marshal(Message{Type: ev.Kind, Data: ev.Payload, Timestamp: ev.At.UnixMilli()})
	if err != nil {
		p.logger.Debug("redis: encode event", "kind", ev.Kind, "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, body).Err(); err != nil {
		p.logger.Debug("redis: publish", "channel", p.channel, "error", err)
	}

	if q, ok := ev.Payload.(model.PriceQuote); ok {
		if err := p.rdb.HSet(ctx, PricesKey+q.Instrument, q.Exchange, strconv.FormatFloat(q.Price, 'f', -1, 64)).Err(); err != nil {
			p.logger.Debug("redis: hset price", "symbol", q.Instrument, "error", err)
		}
	}
}

// LatestPrices reads back the mirrored prices for an instrument, keyed by exchange.
func (p *RedisPublisher) LatestPrices(ctx context.Context, instrument string) (map[string]float64, error) {
	m, err := p.rdb.HGetAll(ctx, PricesKey+instrument).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: hgetall %s: %w", instrument, err)
	}
	out := make(map[string]float64, len(m))
	for ex, v := range m {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out[ex] = f
	}
	return out, nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
