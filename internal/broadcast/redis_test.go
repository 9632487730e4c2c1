package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"arbwatch/internal/config"
	"arbwatch/internal/events"
	"arbwatch/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*RedisPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisPublisherFromClient(rdb, "", logger), rdb
}

func TestRedisPublisher_Handle(t *testing.T) {
	ctx := context.Background()
	pub, rdb := newTestPublisher(t)
	assert.Equal(t, "arbitrage:events", pub.Channel())

	sub := rdb.Subscribe(ctx, pub.Channel())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	at := time.UnixMilli(1_700_000_000_000)
	opp := model.CrossOpportunity{ID: "arb_1", Instrument: "BTC/USDT", BuyExchange: "kraken", SellExchange: "binance", ProfitPercent: 1.2}
	pub.Handle(ctx, events.Event{Kind: events.CrossOpportunity, Payload: opp, At: at})

	select {
	case msg := <-sub.Channel():
		var got struct {
			Type      string                 `json:"type"`
			Data      model.CrossOpportunity `json:"data"`
			Timestamp int64                  `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "arbitrage:opportunity", got.Type)
		assert.Equal(t, opp.ID, got.Data.ID)
		assert.Equal(t, "binance", got.Data.SellExchange)
		assert.Equal(t, at.UnixMilli(), got.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestRedisPublisher_MirrorsPrices(t *testing.T) {
	ctx := context.Background()
	pub, _ := newTestPublisher(t)

	pub.Handle(ctx, events.Event{Kind: events.PriceUpdate, Payload: model.PriceQuote{Exchange: "binance", Instrument: "ETH/USDT", Price: 2500.5}, At: time.Now()})
	pub.Handle(ctx, events.Event{Kind: events.PriceUpdate, Payload: model.PriceQuote{Exchange: "kraken", Instrument: "ETH/USDT", Price: 2499}, At: time.Now()})
	pub.Handle(ctx, events.Event{Kind: events.PriceUpdate, Payload: model.PriceQuote{Exchange: "binance", Instrument: "ETH/USDT", Price: 2501}, At: time.Now()})

	prices, err := pub.LatestPrices(ctx, "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"binance": 2501, "kraken": 2499}, prices)
}

func TestRedisPublisher_FailuresAreSwallowed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	pub := NewRedisPublisherFromClient(rdb, "custom", slog.New(slog.NewTextHandler(io.Discard, nil)))
	mr.Close()

	assert.NotPanics(t, func() {
		pub.Handle(context.Background(), events.Event{Kind: events.TriangleRemoved, Payload: "x", At: time.Now()})
	})
}

func TestNewRedisPublisher(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, err := NewRedisPublisher(ctx, config.RedisConfig{Addr: mr.Addr(), Channel: "events"}, logger)
	require.NoError(t, err)
	defer pub.Close()
	assert.Equal(t, "events", pub.Channel())

	mr.Close()
	_, err = NewRedisPublisher(ctx, config.RedisConfig{Addr: mr.Addr()}, logger)
	assert.Error(t, err)
}
