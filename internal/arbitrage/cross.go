package arbitrage

import (
	"time"

	"arbwatch/internal/model"

	"github.com/google/uuid"
)

// Defaults for the cross-exchange thresholds.
const (
	DefaultMinArbitragePercent = 0.5
	DefaultMinVolumeUSD        = 1000.0
)

// CrossExchangeDetector compares every pair of exchanges quoting the same instrument.
type CrossExchangeDetector struct {
	MinArbitragePercent float64
	MinVolumeUSD        float64

	now func() time.Time
}

// NewCrossExchangeDetector creates a detector with the given thresholds.
func NewCrossExchangeDetector(minPercent, minVolume float64) *CrossExchangeDetector {
	return &CrossExchangeDetector{
		MinArbitragePercent: minPercent,
		MinVolumeUSD:        minVolume,
		now:                 time.Now,
	}
}

// Detect returns one opportunity for every unordered pair of quotes whose
// spread and volumes clear the thresholds. The same persistent spread is
// reported again on every call.
func (d *CrossExchangeDetector) Detect(quotes []model.PriceQuote) []model.CrossOpportunity {
	if len(quotes) < 2 {
		return nil
	}

	var out []model.CrossOpportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			lower, higher := quotes[i], quotes[j]
			if higher.Price < lower.Price {
				lower, higher = higher, lower
			}

			profitPercent := (higher.Price - lower.Price) / lower.Price * 100
			if profitPercent < d.MinArbitragePercent {
				continue
			}
			if lower.Volume < d.MinVolumeUSD || higher.Volume < d.MinVolumeUSD {
				continue
			}

			out = append(out, model.CrossOpportunity{
				ID:            "arb_" + uuid.NewString(),
				Instrument:    lower.Instrument,
				BuyExchange:   lower.Exchange,
				SellExchange:  higher.Exchange,
				BuyPrice:      lower.Price,
				SellPrice:     higher.Price,
				ProfitPercent: profitPercent,
				Volume:        min(lower.Volume, higher.Volume),
				Timestamp:     d.now().UnixMilli(),
				Status:        model.StatusDetected,
			})
		}
	}
	return out
}
