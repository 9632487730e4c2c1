package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"arbwatch/internal/model"

	"github.com/gorilla/websocket"
)

const coinbaseURL = "wss://ws-feed.exchange.coinbase.com"

// CoinbaseClient implements the ExchangeClient interface for Coinbase Exchange.
// Coinbase quotes in USD; those products are reported as USDT instruments so
// they line up with the other venues.
type CoinbaseClient struct {
	streamer
	url string
}

// NewCoinbaseClient creates a new CoinbaseClient. An empty url uses the public endpoint.
func NewCoinbaseClient(logger *slog.Logger, listener StatusListener, url string) *CoinbaseClient {
	if url == "" {
		url = coinbaseURL
	}
	return &CoinbaseClient{streamer: newStreamer(logger, listener), url: url}
}

func (c *CoinbaseClient) GetName() string {
	return "coinbase"
}

// StartStream subscribes to the ticker channel for every instrument.
func (c *CoinbaseClient) StartStream(ctx context.Context, priceChan chan<- model.PriceQuote, instruments []string) error {
	products := coinbaseProducts(instruments)
	return c.run(ctx, feedSpec{
		name: c.GetName(),
		url:  c.url,
		subscribe: func(conn *websocket.Conn) error {
			return conn.WriteJSON(map[string]interface{}{
				"type":        "subscribe",
				"product_ids": products,
				"channels":    []string{"ticker"},
			})
		},
		parse: parseCoinbase,
	}, priceChan)
}

func coinbaseProducts(instruments []string) []string {
	products := make([]string, 0, len(instruments))
	seen := make(map[string]bool)
	for _, inst := range instruments {
		base, quote, ok := splitInstrument(inst)
		if !ok {
			continue
		}
		if quote == "USDT" {
			quote = "USD"
		}
		p := base + "-" + quote
		if !seen[p] {
			seen[p] = true
			products = append(products, p)
		}
	}
	return products
}

type coinbaseTicker struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Open24h   string `json:"open_24h"`
	Volume24h string `json:"volume_24h"`
	Time      string `json:"time"`
}

func parseCoinbase(message []byte, now time.Time) []model.PriceQuote {
	var t coinbaseTicker
	if err := json.Unmarshal(message, &t); err != nil || t.Type != "ticker" || t.ProductID == "" {
		return nil
	}
	base, quote, ok := strings.Cut(strings.ToUpper(t.ProductID), "-")
	if !ok {
		return nil
	}
	if quote == "USD" {
		quote = "USDT"
	}
	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return nil
	}
	var change float64
	if open, err := strconv.ParseFloat(t.Open24h, 64); err == nil && open > 0 {
		change = (price - open) / open * 100
	}
	baseVolume, _ := strconv.ParseFloat(t.Volume24h, 64)

	ts := now.UnixMilli()
	if parsed, err := time.Parse(time.RFC3339Nano, t.Time); err == nil {
		ts = parsed.UnixMilli()
	}
	return []model.PriceQuote{{
		Exchange:   "coinbase",
		Instrument: instrument(base, quote),
		Price:      price,
		Change24h:  change,
		Volume:     baseVolume * price,
		Timestamp:  ts,
	}}
}
