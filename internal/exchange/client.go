package exchange

import (
	"context"
	"strings"

	"arbwatch/internal/model"
)

// ExchangeClient defines the standard interface for all exchange clients.
// StartStream delivers normalized quotes for the given "BASE/QUOTE"
// instruments until ctx is cancelled, reconnecting on failure.
type ExchangeClient interface {
	GetName() string
	StartStream(ctx context.Context, priceChan chan<- model.PriceQuote, instruments []string) error
}

// StatusListener is told when a client's connection goes up or down.
type StatusListener interface {
	OnExchangeConnect(exchange string)
	OnExchangeDisconnect(exchange string)
}

type nopListener struct{}

func (nopListener) OnExchangeConnect(string)    {}
func (nopListener) OnExchangeDisconnect(string) {}

// knownQuotes are tried longest first when splitting concatenated symbols like ETHBTC.
var knownQuotes = []string{"USDT", "USDC", "BUSD", "EUR", "USD", "BTC", "ETH", "BNB"}

// splitSymbol turns "ETHBTC" into ("ETH", "BTC").
func splitSymbol(s string) (base, quote string, ok bool) {
	s = strings.ToUpper(s)
	for _, q := range knownQuotes {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return s[:len(s)-len(q)], q, true
		}
	}
	return "", "", false
}

// instrument joins base and quote as "BASE/QUOTE".
func instrument(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// splitInstrument splits "BASE/QUOTE".
func splitInstrument(inst string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(strings.ToUpper(inst), "/")
	return base, quote, ok && base != "" && quote != ""
}
