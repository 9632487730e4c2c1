package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"arbwatch/internal/arbitrage"
	"arbwatch/internal/model"
)

// Engine is what the API needs from the detection engine.
type Engine interface {
	Stats() arbitrage.Stats
	TriangleStats() arbitrage.TriangleStats
	ExchangeStatuses() map[string]model.ExchangeStatus
	Opportunities(n int) []model.CrossOpportunity
	Prices(instrument string) map[string][]model.PriceQuote
	RecentTriangleOpportunities(n int) []model.TriangleOpportunity
	BestTriangleOpportunities(n int) []model.TriangleOpportunity
	Triangles() *arbitrage.TriangleRegistry
	TestOrders() *arbitrage.TestOrderSimulator
}

// API serves the operator endpoints.
type API struct {
	engine Engine
	logger *slog.Logger
	now    func() time.Time
}

// NewAPI creates an API over engine.
func NewAPI(engine Engine, logger *slog.Logger) *API {
	return &API{engine: engine, logger: logger.With("component", "api"), now: time.Now}
}

type healthResponse struct {
	Status      string          `json:"status"`
	Connections map[string]bool `json:"connections"`
	Timestamp   string          `json:"timestamp"`
}

// Health reports liveness and per-exchange connectivity.
// GET /health
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	conns := make(map[string]bool)
	for name, st := range a.engine.ExchangeStatuses() {
		conns[name] = st.Connected
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Connections: conns,
		Timestamp:   a.now().UTC().Format(time.RFC3339),
	})
}

type statsResponse struct {
	CrossExchange arbitrage.Stats                 `json:"crossExchange"`
	Triangular    arbitrage.TriangleStats         `json:"triangular"`
	Connections   map[string]model.ExchangeStatus `json:"connections"`
}

// Stats returns cross-exchange and triangular counters.
// GET /stats
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		CrossExchange: a.engine.Stats(),
		Triangular:    a.engine.TriangleStats(),
		Connections:   a.engine.ExchangeStatuses(),
	})
}

// Opportunities returns recent cross-exchange opportunities, newest first.
// GET /api/opportunities?limit=50
func (a *API) Opportunities(w http.ResponseWriter, r *http.Request) {
	opps := a.engine.Opportunities(queryLimit(r, 50))
	if opps == nil {
		opps = []model.CrossOpportunity{}
	}
	writeJSON(w, http.StatusOK, opps)
}

// Prices returns the latest quotes, optionally for one symbol.
// GET /api/prices?symbol=BTC/USDT
func (a *API) Prices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Prices(r.URL.Query().Get("symbol")))
}

// ListTriangles returns every configured triangle.
// GET /api/triangles
func (a *API) ListTriangles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Triangles().List())
}

// GetTriangle returns one triangle.
// GET /api/triangles/{id}
func (a *API) GetTriangle(w http.ResponseWriter, r *http.Request) {
	t, ok := a.engine.Triangles().Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, arbitrage.ErrTriangleNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AddTriangle creates or replaces a triangle. The id is derived from the body.
// POST /api/triangles
func (a *API) AddTriangle(w http.ResponseWriter, r *http.Request) {
	var t model.TriangleConfig
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := a.engine.Triangles().Add(t)
	if err != nil {
		if errors.Is(err, arbitrage.ErrInvalidTriangle) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error("add triangle failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add triangle")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

// UpdateTriangle merges the body into an existing triangle.
// PUT /api/triangles/{id}
func (a *API) UpdateTriangle(w http.ResponseWriter, r *http.Request) {
	var u model.TriangleUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	t, ok := a.engine.Triangles().Update(r.PathValue("id"), u)
	if !ok {
		writeError(w, http.StatusNotFound, arbitrage.ErrTriangleNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// RemoveTriangle deletes a triangle.
// DELETE /api/triangles/{id}
func (a *API) RemoveTriangle(w http.ResponseWriter, r *http.Request) {
	if !a.engine.Triangles().Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, arbitrage.ErrTriangleNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ToggleTriangle flips a triangle's enabled flag.
// POST /api/triangles/{id}/toggle
func (a *API) ToggleTriangle(w http.ResponseWriter, r *http.Request) {
	t, ok := a.engine.Triangles().Toggle(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, arbitrage.ErrTriangleNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// EnableAllTriangles enables every triangle.
// POST /api/triangles/enable-all
func (a *API) EnableAllTriangles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"enabled": a.engine.Triangles().EnableAll()})
}

// DisableAllTriangles disables every triangle.
// POST /api/triangles/disable-all
func (a *API) DisableAllTriangles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"disabled": a.engine.Triangles().DisableAll()})
}

// BestTriangleOpportunities returns the most profitable recent triangular opportunities.
// GET /api/triangles/opportunities?limit=10
func (a *API) BestTriangleOpportunities(w http.ResponseWriter, r *http.Request) {
	opps := a.engine.BestTriangleOpportunities(queryLimit(r, 10))
	if opps == nil {
		opps = []model.TriangleOpportunity{}
	}
	writeJSON(w, http.StatusOK, opps)
}

// RecentTriangleOpportunities returns triangular opportunities, newest first.
// GET /api/triangles/recent?limit=50
func (a *API) RecentTriangleOpportunities(w http.ResponseWriter, r *http.Request) {
	opps := a.engine.RecentTriangleOpportunities(queryLimit(r, 50))
	if opps == nil {
		opps = []model.TriangleOpportunity{}
	}
	writeJSON(w, http.StatusOK, opps)
}

type testOrderStatus struct {
	Enabled bool     `json:"enabled"`
	Logs    []string `json:"logs"`
}

// TestOrderStatus reports whether test orders are armed and the newest log lines.
// GET /api/testorders/status
func (a *API) TestOrderStatus(w http.ResponseWriter, r *http.Request) {
	sim := a.engine.TestOrders()
	writeJSON(w, http.StatusOK, testOrderStatus{
		Enabled: sim.Armed(),
		Logs:    sim.LogLines(arbitrage.TestOrderBroadcast),
	})
}

// SetTestOrders arms or disarms the simulator.
// POST /api/testorders/{action} where action is enable or disable
func (a *API) SetTestOrders(w http.ResponseWriter, r *http.Request) {
	var armed bool
	switch r.PathValue("action") {
	case "enable":
		armed = true
	case "disable":
		armed = false
	default:
		writeError(w, http.StatusBadRequest, "invalid action, use enable or disable")
		return
	}
	a.engine.TestOrders().SetArmed(armed)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": armed})
}

// ClearTestOrders empties the test order log.
// DELETE /api/testorders/logs
func (a *API) ClearTestOrders(w http.ResponseWriter, r *http.Request) {
	a.engine.TestOrders().Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// queryLimit parses ?limit, falling back to def for missing or non-positive values.
func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
