package metrics

import (
	"context"

	"arbwatch/internal/arbitrage"
	"arbwatch/internal/events"
	"arbwatch/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the engine metrics. It consumes the event stream, so the
// engine itself carries no instrumentation.
type Collectors struct {
	Events         *prometheus.CounterVec
	Prices         *prometheus.GaugeVec
	CrossDetected  *prometheus.CounterVec
	CrossProfit    prometheus.Histogram
	TriDetected    *prometheus.CounterVec
	TriProfit      prometheus.Histogram
	TestOrders     prometheus.Counter
	ExchangeUp     *prometheus.GaugeVec
	TrianglesTotal prometheus.Gauge
}

var profitBuckets = []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 10}

// NewCollectors creates the collectors and registers them on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatch_events_total",
			Help: "Engine events published, by kind",
		}, []string{"kind"}),
		Prices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbwatch_price",
			Help: "Latest price per exchange and instrument",
		}, []string{"exchange", "symbol"}),
		CrossDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatch_cross_opportunities_total",
			Help: "Cross-exchange opportunities detected",
		}, []string{"symbol", "buy_exchange", "sell_exchange"}),
		CrossProfit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbwatch_cross_profit_percent",
			Help:    "Profit percent of cross-exchange opportunities",
			Buckets: profitBuckets,
		}),
		TriDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbwatch_triangle_opportunities_total",
			Help: "Triangular opportunities detected",
		}, []string{"exchange", "path"}),
		TriProfit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbwatch_triangle_profit_percent",
			Help:    "Profit percent of triangular opportunities",
			Buckets: profitBuckets,
		}),
		TestOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbwatch_test_orders_total",
			Help: "Simulated test orders recorded",
		}),
		ExchangeUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbwatch_exchange_connected",
			Help: "1 if the exchange feed is connected",
		}, []string{"exchange"}),
		TrianglesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbwatch_triangles_enabled",
			Help: "Enabled triangle configurations",
		}),
	}
	reg.MustRegister(
		c.Events,
		c.Prices,
		c.CrossDetected,
		c.CrossProfit,
		c.TriDetected,
		c.TriProfit,
		c.TestOrders,
		c.ExchangeUp,
		c.TrianglesTotal,
	)
	return c
}

// RegisterDropped exposes the dropped-event count of an async sink.
func RegisterDropped(reg prometheus.Registerer, sink string, a *events.Async) {
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name:        "arbwatch_events_dropped_total",
		Help:        "Events dropped because a sink queue was full",
		ConstLabels: prometheus.Labels{"sink": sink},
	}, func() float64 { return float64(a.Dropped()) }))
}

// TriangleCounter reports enabled triangle counts.
type TriangleCounter interface {
	Counts() (total, enabled int)
}

// Handler returns an events.Handler that updates the collectors.
// Registry changes refresh the enabled-triangle gauge from counter.
func (c *Collectors) Handler(counter TriangleCounter) events.Handler {
	return events.HandlerFunc(func(_ context.Context, ev events.Event) {
		c.Events.WithLabelValues(string(ev.Kind)).Inc()

		switch p := ev.Payload.(type) {
		case model.PriceQuote:
			c.Prices.WithLabelValues(p.Exchange, p.Instrument).Set(p.Price)
		case model.CrossOpportunity:
			c.CrossDetected.WithLabelValues(p.Instrument, p.BuyExchange, p.SellExchange).Inc()
			c.CrossProfit.Observe(p.ProfitPercent)
		case model.TriangleOpportunity:
			c.TriDetected.WithLabelValues(p.Exchange, p.Path).Inc()
			c.TriProfit.Observe(p.ProfitPercent)
		case arbitrage.LogBatch:
			c.TestOrders.Inc()
		case arbitrage.ConnectionChange:
			v := 0.0
			if p.Connected {
				v = 1
			}
			c.ExchangeUp.WithLabelValues(p.Exchange).Set(v)
		}

		switch ev.Kind {
		case events.TriangleAdded, events.TriangleUpdated, events.TriangleRemoved,
			events.TriangleToggled, events.TrianglesEnabled, events.TrianglesDisabled:
			if counter != nil {
				_, enabled := counter.Counts()
				c.TrianglesTotal.Set(float64(enabled))
			}
		}
	})
}
