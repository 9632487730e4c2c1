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

const krakenURL = "wss://ws.kraken.com"

// KrakenClient implements the ExchangeClient interface for Kraken.
type KrakenClient struct {
	streamer
	url string
}

// NewKrakenClient creates a new KrakenClient. An empty url uses the public endpoint.
func NewKrakenClient(logger *slog.Logger, listener StatusListener, url string) *KrakenClient {
	if url == "" {
		url = krakenURL
	}
	return &KrakenClient{streamer: newStreamer(logger, listener), url: url}
}

func (k *KrakenClient) GetName() string {
	return "kraken"
}

// StartStream connects to the Kraken WebSocket API and subscribes to the ticker channel.
func (k *KrakenClient) StartStream(ctx context.Context, priceChan chan<- model.PriceQuote, instruments []string) error {
	pairs := krakenPairs(instruments)
	return k.run(ctx, feedSpec{
		name: k.GetName(),
		url:  k.url,
		subscribe: func(c *websocket.Conn) error {
			return c.WriteJSON(map[string]interface{}{
				"event": "subscribe",
				"pair":  pairs,
				"subscription": map[string]string{
					"name": "ticker",
				},
			})
		},
		parse: parseKraken,
	}, priceChan)
}

// krakenPairs converts instruments to Kraken pair names; BTC is XBT there.
func krakenPairs(instruments []string) []string {
	pairs := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		base, quote, ok := splitInstrument(inst)
		if !ok {
			continue
		}
		pairs = append(pairs, krakenAsset(base, false)+"/"+krakenAsset(quote, false))
	}
	return pairs
}

func krakenAsset(asset string, fromKraken bool) string {
	if fromKraken && asset == "XBT" {
		return "BTC"
	}
	if !fromKraken && asset == "BTC" {
		return "XBT"
	}
	return asset
}

type krakenTicker struct {
	Close  []string `json:"c"`
	Volume []string `json:"v"`
	Open   []string `json:"o"`
}

// parseKraken handles ticker frames of the form [channelID, ticker, "ticker", "XBT/USDT"].
// Event objects (heartbeat, subscriptionStatus) are ignored.
func parseKraken(message []byte, now time.Time) []model.PriceQuote {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil || len(frame) < 4 {
		return nil
	}

	var t krakenTicker
	if err := json.Unmarshal(frame[1], &t); err != nil || len(t.Close) == 0 {
		return nil
	}
	var channel, pair string
	if json.Unmarshal(frame[len(frame)-2], &channel) != nil || channel != "ticker" {
		return nil
	}
	if json.Unmarshal(frame[len(frame)-1], &pair) != nil {
		return nil
	}
	base, quote, ok := splitInstrument(pair)
	if !ok {
		return nil
	}

	price, err := strconv.ParseFloat(t.Close[0], 64)
	if err != nil {
		return nil
	}
	var volume, change float64
	if len(t.Volume) > 1 {
		if v, err := strconv.ParseFloat(t.Volume[1], 64); err == nil {
			volume = v * price
		}
	}
	if len(t.Open) > 1 {
		if o, err := strconv.ParseFloat(t.Open[1], 64); err == nil && o > 0 {
			change = (price - o) / o * 100
		}
	}

	return []model.PriceQuote{{
		Exchange:   "kraken",
		Instrument: instrument(krakenAsset(strings.ToUpper(base), true), krakenAsset(strings.ToUpper(quote), true)),
		Price:      price,
		Change24h:  change,
		Volume:     volume,
		Timestamp:  now.UnixMilli(),
	}}
}
