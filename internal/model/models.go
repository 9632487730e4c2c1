package model

import (
	"fmt"
	"strings"
	"time"
)

// PriceQuote represents the latest normalized ticker for one instrument on one exchange.
type PriceQuote struct {
	Exchange   string  `json:"exchange"`
	Instrument string  `json:"symbol"`
	Price      float64 `json:"price"`
	Change24h  float64 `json:"change24h"`
	Volume     float64 `json:"volume"`
	Timestamp  int64   `json:"timestamp"`
}

// OpportunityStatus is the lifecycle state of a cross-exchange opportunity.
type OpportunityStatus string

const (
	StatusDetected OpportunityStatus = "detected"
	StatusExecuted OpportunityStatus = "executed"
	StatusExpired  OpportunityStatus = "expired"
)

// CrossOpportunity is a price divergence for the same instrument on two exchanges.
type CrossOpportunity struct {
	ID            string            `json:"id" db:"id"`
	Instrument    string            `json:"symbol" db:"instrument"`
	BuyExchange   string            `json:"buyExchange" db:"buy_exchange"`
	SellExchange  string            `json:"sellExchange" db:"sell_exchange"`
	BuyPrice      float64           `json:"buyPrice" db:"buy_price"`
	SellPrice     float64           `json:"sellPrice" db:"sell_price"`
	ProfitPercent float64           `json:"profitPercent" db:"profit_percent"`
	Volume        float64           `json:"volume" db:"volume"`
	Timestamp     int64             `json:"timestamp" db:"detected_at"`
	Status        OpportunityStatus `json:"status" db:"status"`
}

// TriangleConfig describes one A→B→C→A cycle watched on a single exchange.
type TriangleConfig struct {
	ID               string  `json:"id" mapstructure:"id"`
	SymbolA          string  `json:"symbolA" mapstructure:"symbol_a"`
	SymbolB          string  `json:"symbolB" mapstructure:"symbol_b"`
	SymbolC          string  `json:"symbolC" mapstructure:"symbol_c"`
	Exchange         string  `json:"exchange" mapstructure:"exchange"`
	Enabled          bool    `json:"enabled" mapstructure:"enabled"`
	MinProfitPercent float64 `json:"minProfitPercent" mapstructure:"min_profit_percent"`
	TestMode         bool    `json:"testMode" mapstructure:"test_mode"`
}

// TriangleID derives the registry key for a triangle: lower(A)-lower(B)-lower(C)-exchange.
func TriangleID(symbolA, symbolB, symbolC, exchange string) string {
	return strings.ToLower(symbolA) + "-" + strings.ToLower(symbolB) + "-" + strings.ToLower(symbolC) + "-" + exchange
}

// Path renders the cycle as A→B→C→A.
func (t TriangleConfig) Path() string {
	return t.SymbolA + "→" + t.SymbolB + "→" + t.SymbolC + "→" + t.SymbolA
}

// Legs returns the three instruments the triangle needs: A/C, B/A and B/C.
func (t TriangleConfig) Legs() (ac, ba, bc string) {
	return t.SymbolA + "/" + t.SymbolC, t.SymbolB + "/" + t.SymbolA, t.SymbolB + "/" + t.SymbolC
}

// TriangleUpdate carries the fields of a partial triangle update. Nil fields are left untouched.
type TriangleUpdate struct {
	SymbolA          *string  `json:"symbolA,omitempty"`
	SymbolB          *string  `json:"symbolB,omitempty"`
	SymbolC          *string  `json:"symbolC,omitempty"`
	Exchange         *string  `json:"exchange,omitempty"`
	Enabled          *bool    `json:"enabled,omitempty"`
	MinProfitPercent *float64 `json:"minProfitPercent,omitempty"`
	TestMode         *bool    `json:"testMode,omitempty"`
}

// Apply merges the set fields of u into t. The id is never changed.
func (u TriangleUpdate) Apply(t TriangleConfig) TriangleConfig {
	if u.SymbolA != nil {
		t.SymbolA = *u.SymbolA
	}
	if u.SymbolB != nil {
		t.SymbolB = *u.SymbolB
	}
	if u.SymbolC != nil {
		t.SymbolC = *u.SymbolC
	}
	if u.Exchange != nil {
		t.Exchange = *u.Exchange
	}
	if u.Enabled != nil {
		t.Enabled = *u.Enabled
	}
	if u.MinProfitPercent != nil {
		t.MinProfitPercent = *u.MinProfitPercent
	}
	if u.TestMode != nil {
		t.TestMode = *u.TestMode
	}
	return t
}

// TriangleOpportunity is a profitable evaluation of a TriangleConfig.
type TriangleOpportunity struct {
	ID              string  `json:"id" db:"id"`
	ConfigID        string  `json:"configId" db:"config_id"`
	Exchange        string  `json:"exchange" db:"exchange"`
	Path            string  `json:"path" db:"path"`
	BuyPrice        float64 `json:"buyPrice" db:"buy_price"`
	ConvertPrice    float64 `json:"convertPrice" db:"convert_price"`
	SellPrice       float64 `json:"sellPrice" db:"sell_price"`
	ProfitPercent   float64 `json:"profitPercent" db:"profit_percent"`
	EstimatedProfit float64 `json:"estimatedProfit" db:"estimated_profit"`
	Timestamp       int64   `json:"timestamp" db:"detected_at"`
	Simulated       bool    `json:"simulated" db:"simulated"`
}

// TestOrderLogEntry is the record of one simulated execution. No funds are ever moved.
type TestOrderLogEntry struct {
	ID            string    `json:"id" db:"id"`
	Path          string    `json:"path" db:"path"`
	Exchange      string    `json:"exchange" db:"exchange"`
	ProfitPercent float64   `json:"profitPercent" db:"profit_percent"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	Text          string    `json:"text" db:"text"`
}

// NewTestOrderLogEntry formats the log record for a simulated execution of opp.
func NewTestOrderLogEntry(id string, opp TriangleOpportunity, at time.Time) TestOrderLogEntry {
	text := fmt.Sprintf("[%s] TEST ORDER EXECUTED\n  Path: %s\n  Exchange: %s\n  Profit: %.3f%%\n  Status: SIMULATED (no real funds used)",
		at.UTC().Format(time.RFC3339Nano), opp.Path, opp.Exchange, opp.ProfitPercent)
	return TestOrderLogEntry{
		ID:            id,
		Path:          opp.Path,
		Exchange:      opp.Exchange,
		ProfitPercent: opp.ProfitPercent,
		CreatedAt:     at,
		Text:          text,
	}
}

// ExchangeStatus is the connectivity and freshness of one exchange feed.
type ExchangeStatus struct {
	Connected  bool   `json:"connected"`
	LastUpdate *int64 `json:"lastUpdate"`
}
