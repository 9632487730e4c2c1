package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"arbwatch/internal/model"
)

const binanceURL = "wss://stream.binance.com:9443/stream"

// BinanceClient implements the ExchangeClient interface for Binance.
type BinanceClient struct {
	streamer
	url string
}

// NewBinanceClient creates a new BinanceClient. An empty url uses the public endpoint.
func NewBinanceClient(logger *slog.Logger, listener StatusListener, url string) *BinanceClient {
	if url == "" {
		url = binanceURL
	}
	return &BinanceClient{streamer: newStreamer(logger, listener), url: url}
}

func (b *BinanceClient) GetName() string {
	return "binance"
}

// StartStream connects to the Binance combined ticker stream for the given instruments.
func (b *BinanceClient) StartStream(ctx context.Context, priceChan chan<- model.PriceQuote, instruments []string) error {
	return b.run(ctx, feedSpec{
		name:  b.GetName(),
		url:   b.url + "?streams=" + binanceStreams(instruments),
		parse: parseBinance,
	}, priceChan)
}

// binanceStreams renders instruments as "btcusdt@ticker/ethbtc@ticker".
func binanceStreams(instruments []string) string {
	streams := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		base, quote, ok := splitInstrument(inst)
		if !ok {
			continue
		}
		streams = append(streams, strings.ToLower(base+quote)+"@ticker")
	}
	return strings.Join(streams, "/")
}

// binanceTicker lists the lowercase/uppercase twins explicitly since
// encoding/json falls back to case-insensitive key matching.
type binanceTicker struct {
	EventType     string `json:"e"`
	EventTime     int64  `json:"E"`
	Symbol        string `json:"s"`
	PriceChange   string `json:"p"`
	ChangePercent string `json:"P"`
	LastPrice     string `json:"c"`
	CloseTime     int64  `json:"C"`
	LastQty       string `json:"Q"`
	QuoteVolume   string `json:"q"`
}

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// parseBinance handles both combined-stream envelopes and raw ticker payloads.
func parseBinance(message []byte, now time.Time) []model.PriceQuote {
	payload := message
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err == nil && len(env.Data) > 0 {
		payload = env.Data
	}

	var t binanceTicker
	if err := json.Unmarshal(payload, &t); err != nil || t.Symbol == "" || t.LastPrice == "" {
		return nil
	}
	base, quote, ok := splitSymbol(t.Symbol)
	if !ok {
		return nil
	}
	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return nil
	}
	change, _ := strconv.ParseFloat(t.ChangePercent, 64)
	volume, _ := strconv.ParseFloat(t.QuoteVolume, 64)

	ts := t.EventTime
	if ts == 0 {
		ts = now.UnixMilli()
	}
	return []model.PriceQuote{{
		Exchange:   "binance",
		Instrument: instrument(base, quote),
		Price:      price,
		Change24h:  change,
		Volume:     volume,
		Timestamp:  ts,
	}}
}
