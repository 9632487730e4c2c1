package arbitrage

import (
	"errors"
	"strings"
	"sync"

	"arbwatch/internal/events"
	"arbwatch/internal/model"
)

var (
	// ErrTriangleNotFound is returned by the API layer when a triangle id is unknown.
	ErrTriangleNotFound = errors.New("triangle not found")
	// ErrInvalidTriangle is returned when a triangle is missing a symbol or exchange.
	ErrInvalidTriangle = errors.New("triangle requires symbolA, symbolB, symbolC and exchange")
)

// TriangleRegistry owns the configured triangles. Iteration order is insertion order.
// Events are published under the lock, so their order matches the order of
// mutations; sink must not block or call back into the registry.
type TriangleRegistry struct {
	mu        sync.RWMutex
	order     []string
	triangles map[string]*model.TriangleConfig
	sink      events.Sink
}

// NewTriangleRegistry creates a registry seeded with the given configs.
// Seed entries keep a caller-supplied id; empty ids are derived.
func NewTriangleRegistry(sink events.Sink, seed []model.TriangleConfig) *TriangleRegistry {
	if sink == nil {
		sink = events.Nop{}
	}
	r := &TriangleRegistry{
		triangles: make(map[string]*model.TriangleConfig),
		sink:      sink,
	}
	for _, t := range seed {
		if t.ID == "" {
			t.ID = model.TriangleID(t.SymbolA, t.SymbolB, t.SymbolC, t.Exchange)
		}
		r.set(t)
	}
	return r
}

func (r *TriangleRegistry) set(t model.TriangleConfig) {
	if _, ok := r.triangles[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.triangles[t.ID] = &t
}

func validTriangle(t model.TriangleConfig) bool {
	for _, s := range []string{t.SymbolA, t.SymbolB, t.SymbolC, t.Exchange} {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// Add stores t under its derived id, overwriting any triangle with the same id.
func (r *TriangleRegistry) Add(t model.TriangleConfig) (model.TriangleConfig, error) {
	if !validTriangle(t) {
		return model.TriangleConfig{}, ErrInvalidTriangle
	}
	t.ID = model.TriangleID(t.SymbolA, t.SymbolB, t.SymbolC, t.Exchange)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.set(t)
	r.sink.Publish(events.TriangleAdded, t)
	return t, nil
}

// Update merges u into the triangle with the given id.
func (r *TriangleRegistry) Update(id string, u model.TriangleUpdate) (model.TriangleConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.triangles[id]
	if !ok {
		return model.TriangleConfig{}, false
	}
	updated := u.Apply(*existing)
	updated.ID = id
	*existing = updated
	r.sink.Publish(events.TriangleUpdated, updated)
	return updated, true
}

// Remove deletes the triangle and reports whether it existed.
func (r *TriangleRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.triangles[id]; !ok {
		return false
	}
	delete(r.triangles, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.sink.Publish(events.TriangleRemoved, id)
	return true
}

// ToggleResult is the payload of a triangle:toggled event.
type ToggleResult struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// Toggle flips the enabled flag of a triangle.
func (r *TriangleRegistry) Toggle(id string) (model.TriangleConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.triangles[id]
	if !ok {
		return model.TriangleConfig{}, false
	}
	existing.Enabled = !existing.Enabled
	t := *existing
	r.sink.Publish(events.TriangleToggled, ToggleResult{ID: id, Enabled: t.Enabled})
	return t, true
}

// BulkResult is the payload of the bulk enable/disable events.
type BulkResult struct {
	Count int `json:"count"`
}

// EnableAll enables every triangle and returns how many were touched.
func (r *TriangleRegistry) EnableAll() int {
	return r.setAll(true, events.TrianglesEnabled)
}

// DisableAll disables every triangle and returns how many were touched.
func (r *TriangleRegistry) DisableAll() int {
	return r.setAll(false, events.TrianglesDisabled)
}

func (r *TriangleRegistry) setAll(enabled bool, kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.triangles {
		t.Enabled = enabled
	}
	n := len(r.triangles)
	r.sink.Publish(kind, BulkResult{Count: n})
	return n
}

// List returns a snapshot of all triangles.
func (r *TriangleRegistry) List() []model.TriangleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.TriangleConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.triangles[id])
	}
	return out
}

// Get returns a single triangle.
func (r *TriangleRegistry) Get(id string) (model.TriangleConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triangles[id]
	if !ok {
		return model.TriangleConfig{}, false
	}
	return *t, true
}

// Enabled returns the enabled triangles configured for exchange.
func (r *TriangleRegistry) Enabled(exchange string) []model.TriangleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.TriangleConfig
	for _, id := range r.order {
		if t := r.triangles[id]; t.Enabled && t.Exchange == exchange {
			out = append(out, *t)
		}
	}
	return out
}

// Counts returns the total and enabled number of triangles.
func (r *TriangleRegistry) Counts() (total, enabled int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.triangles {
		if t.Enabled {
			enabled++
		}
	}
	return len(r.triangles), enabled
}

// DefaultTriangles is the seed used when no triangles are configured.
func DefaultTriangles() []model.TriangleConfig {
	tri := func(a, b, c, ex string, enabled bool, minProfit float64) model.TriangleConfig {
		return model.TriangleConfig{
			ID:               model.TriangleID(a, b, c, ex),
			SymbolA:          a,
			SymbolB:          b,
			SymbolC:          c,
			Exchange:         ex,
			Enabled:          enabled,
			MinProfitPercent: minProfit,
			TestMode:         true,
		}
	}
	return []model.TriangleConfig{
		tri("BTC", "ETH", "USDT", "binance", true, 0.3),
		tri("BTC", "SOL", "USDT", "binance", true, 0.3),
		tri("ETH", "SOL", "USDT", "binance", true, 0.3),
		tri("LTC", "XRP", "USDT", "binance", true, 0.4),
		tri("XMR", "DOT", "USDT", "bybit", true, 0.5),
		tri("ATOM", "OSMO", "USDT", "binance", false, 0.5),
		tri("BTC", "ETH", "USDT", "coinbase", false, 0.3),
		tri("ETH", "SOL", "USDT", "kraken", false, 0.4),
	}
}
