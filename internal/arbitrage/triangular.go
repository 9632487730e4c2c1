package arbitrage

import (
	"time"

	"arbwatch/internal/model"

	"github.com/google/uuid"
)

// PriceLookup resolves the latest price of an instrument on an exchange.
type PriceLookup interface {
	Price(exchange, instrument string) (float64, bool)
}

// TriangularDetector evaluates triangle cycles against one exchange's prices.
type TriangularDetector struct {
	prices PriceLookup
	now    func() time.Time
}

// NewTriangularDetector creates a detector reading prices from lookup.
func NewTriangularDetector(lookup PriceLookup) *TriangularDetector {
	return &TriangularDetector{prices: lookup, now: time.Now}
}

// Evaluate runs the round trip for one triangle starting from 1 unit of C:
//
//	amountA  = 1 / price(A/C)
//	amountB  = amountA * price(B/A)
//	amountC2 = amountB * price(B/C)
//
// It reports false when a leg price is unknown or the profit is below the
// triangle's threshold.
func (d *TriangularDetector) Evaluate(t model.TriangleConfig) (model.TriangleOpportunity, bool) {
	acSym, baSym, bcSym := t.Legs()
	priceAC, ok := d.prices.Price(t.Exchange, acSym)
	if !ok {
		return model.TriangleOpportunity{}, false
	}
	priceBA, ok := d.prices.Price(t.Exchange, baSym)
	if !ok {
		return model.TriangleOpportunity{}, false
	}
	priceBC, ok := d.prices.Price(t.Exchange, bcSym)
	if !ok {
		return model.TriangleOpportunity{}, false
	}

	amountA := 1 / priceAC
	amountB := amountA * priceBA
	amountC2 := amountB * priceBC

	profitPercent := (amountC2 - 1) * 100
	if profitPercent < t.MinProfitPercent {
		return model.TriangleOpportunity{}, false
	}

	return model.TriangleOpportunity{
		ID:              "tri_" + uuid.NewString(),
		ConfigID:        t.ID,
		Exchange:        t.Exchange,
		Path:            t.Path(),
		BuyPrice:        priceAC,
		ConvertPrice:    priceBA,
		SellPrice:       priceBC,
		ProfitPercent:   profitPercent,
		EstimatedProfit: (amountC2 - 1) * 100,
		Timestamp:       d.now().UnixMilli(),
		Simulated:       t.TestMode,
	}, true
}

// Detect evaluates every triangle in configs and returns the profitable ones.
func (d *TriangularDetector) Detect(configs []model.TriangleConfig) []model.TriangleOpportunity {
	var out []model.TriangleOpportunity
	for _, t := range configs {
		if opp, ok := d.Evaluate(t); ok {
			out = append(out, opp)
		}
	}
	return out
}
