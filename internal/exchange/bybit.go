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

const bybitURL = "wss://stream.bybit.com/v5/public/spot"

// BybitClient implements the ExchangeClient interface for Bybit spot tickers.
type BybitClient struct {
	streamer
	url string
}

// NewBybitClient creates a new BybitClient. An empty url uses the public endpoint.
func NewBybitClient(logger *slog.Logger, listener StatusListener, url string) *BybitClient {
	if url == "" {
		url = bybitURL
	}
	return &BybitClient{streamer: newStreamer(logger, listener), url: url}
}

func (b *BybitClient) GetName() string {
	return "bybit"
}

// StartStream subscribes to tickers.<SYMBOL> for every instrument.
func (b *BybitClient) StartStream(ctx context.Context, priceChan chan<- model.PriceQuote, instruments []string) error {
	args := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		if base, quote, ok := splitInstrument(inst); ok {
			args = append(args, "tickers."+base+quote)
		}
	}
	return b.run(ctx, feedSpec{
		name: b.GetName(),
		url:  b.url,
		subscribe: func(c *websocket.Conn) error {
			return c.WriteJSON(map[string]interface{}{
				"op":   "subscribe",
				"args": args,
			})
		},
		parse: parseBybit,
	}, priceChan)
}

type bybitMessage struct {
	Topic string `json:"topic"`
	Ts    int64  `json:"ts"`
	Data  struct {
		Symbol       string `json:"symbol"`
		LastPrice    string `json:"lastPrice"`
		Price24hPcnt string `json:"price24hPcnt"`
		Turnover24h  string `json:"turnover24h"`
	} `json:"data"`
}

func parseBybit(message []byte, now time.Time) []model.PriceQuote {
	var m bybitMessage
	if err := json.Unmarshal(message, &m); err != nil || !strings.HasPrefix(m.Topic, "tickers.") {
		return nil
	}
	symbol := m.Data.Symbol
	if symbol == "" {
		symbol = strings.TrimPrefix(m.Topic, "tickers.")
	}
	base, quote, ok := splitSymbol(symbol)
	if !ok {
		return nil
	}
	price, err := strconv.ParseFloat(m.Data.LastPrice, 64)
	if err != nil {
		return nil
	}
	pcnt, _ := strconv.ParseFloat(m.Data.Price24hPcnt, 64)
	turnover, _ := strconv.ParseFloat(m.Data.Turnover24h, 64)

	ts := m.Ts
	if ts == 0 {
		ts = now.UnixMilli()
	}
	return []model.PriceQuote{{
		Exchange:   "bybit",
		Instrument: instrument(base, quote),
		Price:      price,
		Change24h:  pcnt * 100,
		Volume:     turnover,
		Timestamp:  ts,
	}}
}
