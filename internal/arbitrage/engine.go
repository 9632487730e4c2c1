package arbitrage

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"arbwatch/internal/config"
	"arbwatch/internal/events"
	"arbwatch/internal/model"
)

// ArbitrageEngine owns all detection state: prices, triangles, opportunity
// logs and the test order simulator. Adapters call OnPriceUpdate concurrently.
type ArbitrageEngine struct {
	logger *slog.Logger
	sink   events.Sink

	prices     *PriceStore
	cross      *CrossExchangeDetector
	triangles  *TriangleRegistry
	triangular *TriangularDetector
	log        *OpportunityLog
	testOrders *TestOrderSimulator

	statsMu       sync.RWMutex
	exchangeStats map[string]*model.ExchangeStatus

	now func() time.Time
}

// NewArbitrageEngine creates a new instance of the ArbitrageEngine.
// A nil sink discards events. A nil cfg uses the default thresholds and triangles.
func NewArbitrageEngine(logger *slog.Logger, sink events.Sink, cfg *config.Config) *ArbitrageEngine {
	if sink == nil {
		sink = events.Nop{}
	}

	minPercent, minVolume, history := DefaultMinArbitragePercent, DefaultMinVolumeUSD, DefaultCrossHistory
	seed := DefaultTriangles()
	if cfg != nil {
		// Zero thresholds are honoured; LoadConfig already applies the defaults.
		minPercent = cfg.Engine.MinArbitragePercent
		minVolume = cfg.Engine.MinVolumeUSD
		if cfg.Engine.CrossHistory > 0 {
			history = cfg.Engine.CrossHistory
		}
		if len(cfg.Triangles) > 0 {
			seed = cfg.Triangles
		}
	}

	prices := NewPriceStore()
	e := &ArbitrageEngine{
		logger:        logger,
		sink:          sink,
		prices:        prices,
		cross:         NewCrossExchangeDetector(minPercent, minVolume),
		triangles:     NewTriangleRegistry(sink, seed),
		triangular:    NewTriangularDetector(prices),
		log:           NewOpportunityLog(history),
		testOrders:    NewTestOrderSimulator(logger, sink),
		exchangeStats: make(map[string]*model.ExchangeStatus),
		now:           time.Now,
	}
	if cfg != nil {
		for name, ex := range cfg.Exchanges {
			if ex.Enabled {
				e.exchangeStats[name] = &model.ExchangeStatus{}
			}
		}
	}
	return e
}

// OnPriceUpdate applies a normalized quote and runs detection for it.
// It returns false when the quote is malformed and was ignored.
func (e *ArbitrageEngine) OnPriceUpdate(q model.PriceQuote) bool {
	if q.Instrument == "" || q.Exchange == "" || !(q.Price > 0) || math.IsInf(q.Price, 0) {
		e.logger.Debug("Dropping malformed price update", "exchange", q.Exchange, "symbol", q.Instrument, "price", q.Price)
		return false
	}

	var crossOpps []model.CrossOpportunity
	e.prices.PutAndScan(q, func(quotes []model.PriceQuote) {
		crossOpps = e.cross.Detect(quotes)
	})
	e.touchExchange(q.Exchange)
	e.sink.Publish(events.PriceUpdate, q)

	for _, opp := range crossOpps {
		e.log.AddCross(opp)
		e.sink.Publish(events.CrossOpportunity, opp)
		e.logger.Info("Cross-exchange arbitrage detected",
			"symbol", opp.Instrument,
			"buyExchange", opp.BuyExchange,
			"sellExchange", opp.SellExchange,
			"buyPrice", opp.BuyPrice,
			"sellPrice", opp.SellPrice,
			"profitPercent", opp.ProfitPercent,
		)
	}

	for _, opp := range e.triangular.Detect(e.triangles.Enabled(q.Exchange)) {
		e.log.AddTriangle(opp)
		e.sink.Publish(events.TriangleOpp, opp)
		e.logger.Info("Triangular arbitrage detected",
			"path", opp.Path,
			"exchange", opp.Exchange,
			"profitPercent", opp.ProfitPercent,
			"simulated", opp.Simulated,
		)
		e.testOrders.Record(opp)
	}
	return true
}

func (e *ArbitrageEngine) touchExchange(name string) {
	ts := e.now().UnixMilli()
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	st, ok := e.exchangeStats[name]
	if !ok {
		st = &model.ExchangeStatus{}
		e.exchangeStats[name] = st
	}
	st.LastUpdate = &ts
}

// ConnectionChange is the payload of an exchange:status event.
type ConnectionChange struct {
	Exchange  string `json:"exchange"`
	Connected bool   `json:"connected"`
}

// OnExchangeConnect marks an exchange feed as connected.
func (e *ArbitrageEngine) OnExchangeConnect(name string) {
	e.setConnected(name, true)
}

// OnExchangeDisconnect marks an exchange feed as disconnected.
func (e *ArbitrageEngine) OnExchangeDisconnect(name string) {
	e.setConnected(name, false)
}

func (e *ArbitrageEngine) setConnected(name string, connected bool) {
	e.statsMu.Lock()
	st, ok := e.exchangeStats[name]
	if !ok {
		st = &model.ExchangeStatus{}
		e.exchangeStats[name] = st
	}
	st.Connected = connected
	e.statsMu.Unlock()

	e.sink.Publish(events.ExchangeStatus, ConnectionChange{Exchange: name, Connected: connected})
	e.logger.Info("Exchange connectivity changed", "exchange", name, "connected", connected)
}

// Prices returns the latest quotes for one instrument, or for all when instrument is empty.
func (e *ArbitrageEngine) Prices(instrument string) map[string][]model.PriceQuote {
	if instrument == "" {
		return e.prices.Snapshot()
	}
	quotes := e.prices.Quotes(instrument)
	if len(quotes) == 0 {
		return map[string][]model.PriceQuote{}
	}
	return map[string][]model.PriceQuote{instrument: quotes}
}

// Stats are the cross-exchange counters exposed to operators.
type Stats struct {
	Opportunities int                             `json:"opportunities"`
	Exchanges     map[string]model.ExchangeStatus `json:"exchanges"`
	Symbols       int                             `json:"symbols"`
}

// Stats returns detected opportunity count, tracked instruments and exchange status.
func (e *ArbitrageEngine) Stats() Stats {
	return Stats{
		Opportunities: e.log.CrossDetected(),
		Exchanges:     e.ExchangeStatuses(),
		Symbols:       len(e.prices.Instruments()),
	}
}

// ExchangeStatuses returns a copy of every exchange's connectivity and freshness.
func (e *ArbitrageEngine) ExchangeStatuses() map[string]model.ExchangeStatus {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	out := make(map[string]model.ExchangeStatus, len(e.exchangeStats))
	for name, st := range e.exchangeStats {
		cp := *st
		if st.LastUpdate != nil {
			ts := *st.LastUpdate
			cp.LastUpdate = &ts
		}
		out[name] = cp
	}
	return out
}

// Exchanges returns the sorted names of every exchange the engine knows about.
func (e *ArbitrageEngine) Exchanges() []string {
	statuses := e.ExchangeStatuses()
	out := make([]string, 0, len(statuses))
	for name := range statuses {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TriangleStats summarizes the triangular side of the engine.
type TriangleStats struct {
	TotalTriangles     int     `json:"totalTriangles"`
	EnabledTriangles   int     `json:"enabledTriangles"`
	TotalOpportunities int     `json:"totalOpportunities"`
	AvgProfit          float64 `json:"avgProfit"`
	BestProfit         float64 `json:"bestProfit"`
	TestOrdersEnabled  bool    `json:"testOrdersEnabled"`
}

// TriangleStats returns registry and opportunity counters.
func (e *ArbitrageEngine) TriangleStats() TriangleStats {
	total, enabled := e.triangles.Counts()
	sum := e.log.Summary()
	return TriangleStats{
		TotalTriangles:     total,
		EnabledTriangles:   enabled,
		TotalOpportunities: sum.Count,
		AvgProfit:          sum.AvgProfit,
		BestProfit:         sum.BestProfit,
		TestOrdersEnabled:  e.testOrders.Armed(),
	}
}

// Opportunities returns up to n recent cross-exchange opportunities, newest first.
func (e *ArbitrageEngine) Opportunities(n int) []model.CrossOpportunity {
	return e.log.RecentCross(n)
}

// RecentTriangleOpportunities returns up to n triangular opportunities, newest first.
func (e *ArbitrageEngine) RecentTriangleOpportunities(n int) []model.TriangleOpportunity {
	return e.log.RecentTriangles(n)
}

// BestTriangleOpportunities returns up to n triangular opportunities by profit.
func (e *ArbitrageEngine) BestTriangleOpportunities(n int) []model.TriangleOpportunity {
	return e.log.BestTriangles(n)
}

// Triangles exposes the triangle registry.
func (e *ArbitrageEngine) Triangles() *TriangleRegistry {
	return e.triangles
}

// TestOrders exposes the test order simulator.
func (e *ArbitrageEngine) TestOrders() *TestOrderSimulator {
	return e.testOrders
}
