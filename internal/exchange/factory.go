package exchange

import (
	"fmt"
	"log/slog"

	"arbwatch/internal/config"
)

// NewClient creates a new exchange client based on the given name and configuration.
func NewClient(name string, logger *slog.Logger, listener StatusListener, cfg config.ExchangeConfig) (ExchangeClient, error) {
	switch name {
	case "kraken":
		return NewKrakenClient(logger, listener, cfg.URL), nil
	case "binance":
		return NewBinanceClient(logger, listener, cfg.URL), nil
	case "bybit":
		return NewBybitClient(logger, listener, cfg.URL), nil
	case "coinbase":
		return NewCoinbaseClient(logger, listener, cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}

// DefaultSymbols are the base assets streamed against USDT when an exchange lists none.
var DefaultSymbols = []string{"BTC", "ETH", "SOL", "BNB", "XRP", "ADA", "DOGE", "DOT", "LINK", "MATIC"}

// Instruments builds the subscription list for one exchange: every symbol
// against USDT, plus the legs of any triangle configured on it.
func Instruments(symbols []string, triangleLegs []string) []string {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	seen := make(map[string]bool)
	var out []string
	add := func(inst string) {
		if !seen[inst] {
			seen[inst] = true
			out = append(out, inst)
		}
	}
	for _, s := range symbols {
		add(instrument(s, "USDT"))
	}
	for _, leg := range triangleLegs {
		if base, quote, ok := splitInstrument(leg); ok {
			add(instrument(base, quote))
		}
	}
	return out
}
