package arbitrage

import (
	"testing"

	"arbwatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing(t *testing.T) {
	r := newRing[int](3)
	assert.Empty(t, r.newest(5))

	for i := 1; i <= 5; i++ {
		r.push(i)
	}
	assert.Len(t, r.newest(-1), 3)
	assert.Len(t, r.buf, 3)
	assert.Equal(t, []int{5, 4, 3}, r.newest(-1))
	assert.Equal(t, []int{5}, r.newest(1))

	r.clear()
	assert.Empty(t, r.newest(-1))
	r.push(9)
	assert.Equal(t, []int{9}, r.newest(10))
}

func TestPriceStore(t *testing.T) {
	s := NewPriceStore()

	_, ok := s.Quote("BTC/USDT", "binance")
	assert.False(t, ok)
	assert.Nil(t, s.Quotes("BTC/USDT"))

	s.Put(quote("binance", "BTC/USDT", 100, 1))
	s.Put(quote("kraken", "BTC/USDT", 101, 1))
	s.Put(quote("binance", "BTC/USDT", 102, 1))

	quotes := s.Quotes("BTC/USDT")
	require.Len(t, quotes, 2)
	assert.Equal(t, "binance", quotes[0].Exchange)
	assert.Equal(t, 102.0, quotes[0].Price)

	p, ok := s.Price("kraken", "BTC/USDT")
	assert.True(t, ok)
	assert.Equal(t, 101.0, p)

	var scanned []model.PriceQuote
	s.PutAndScan(quote("bybit", "BTC/USDT", 103, 1), func(q []model.PriceQuote) { scanned = q })
	assert.Len(t, scanned, 3)
	assert.Equal(t, []string{"BTC/USDT"}, s.Instruments())
}

func TestCrossExchangeDetector(t *testing.T) {
	d := NewCrossExchangeDetector(0.5, 1000)

	t.Run("single exchange", func(t *testing.T) {
		assert.Empty(t, d.Detect([]model.PriceQuote{quote("binance", "BTC/USDT", 1, 5000)}))
	})

	t.Run("below threshold", func(t *testing.T) {
		assert.Empty(t, d.Detect([]model.PriceQuote{
			quote("binance", "BTC/USDT", 50000, 5000),
			quote("kraken", "BTC/USDT", 50200, 5000),
		}))
	})

	t.Run("buy side is the cheaper quote", func(t *testing.T) {
		opps := d.Detect([]model.PriceQuote{
			quote("kraken", "BTC/USDT", 50300, 1500),
			quote("binance", "BTC/USDT", 50000, 2000),
		})
		require.Len(t, opps, 1)
		assert.Equal(t, "binance", opps[0].BuyExchange)
		assert.Equal(t, "kraken", opps[0].SellExchange)
		assert.Equal(t, 1500.0, opps[0].Volume)
	})

	t.Run("every pair is compared", func(t *testing.T) {
		opps := d.Detect([]model.PriceQuote{
			quote("binance", "ETH/USDT", 100, 5000),
			quote("kraken", "ETH/USDT", 101, 5000),
			quote("bybit", "ETH/USDT", 102, 5000),
		})
		assert.Len(t, opps, 3)
		ids := map[string]bool{}
		for _, o := range opps {
			ids[o.ID] = true
		}
		assert.Len(t, ids, 3)
	})
}

type staticPrices map[string]float64

func (p staticPrices) Price(exchange, instrument string) (float64, bool) {
	v, ok := p[exchange+":"+instrument]
	return v, ok
}

func TestTriangularDetector(t *testing.T) {
	cfg := model.TriangleConfig{
		ID: "btc-eth-usdt-binance", SymbolA: "BTC", SymbolB: "ETH", SymbolC: "USDT",
		Exchange: "binance", Enabled: true, MinProfitPercent: 0.3, TestMode: false,
	}

	t.Run("formula", func(t *testing.T) {
		d := NewTriangularDetector(staticPrices{
			"binance:BTC/USDT": 1,
			"binance:ETH/BTC":  2,
			"binance:ETH/USDT": 0.504,
		})
		opp, ok := d.Evaluate(cfg)
		require.True(t, ok)
		assert.InDelta(t, 0.8, opp.ProfitPercent, 1e-9)
		assert.Equal(t, 1.0, opp.BuyPrice)
		assert.Equal(t, 2.0, opp.ConvertPrice)
		assert.Equal(t, 0.504, opp.SellPrice)
		assert.False(t, opp.Simulated)
	})

	t.Run("below threshold", func(t *testing.T) {
		d := NewTriangularDetector(staticPrices{
			"binance:BTC/USDT": 1,
			"binance:ETH/BTC":  2,
			"binance:ETH/USDT": 0.501,
		})
		_, ok := d.Evaluate(cfg)
		assert.False(t, ok)
	})

	t.Run("missing leg", func(t *testing.T) {
		d := NewTriangularDetector(staticPrices{
			"binance:BTC/USDT": 1,
			"binance:ETH/USDT": 0.504,
		})
		assert.Empty(t, d.Detect([]model.TriangleConfig{cfg}))
	})
}
