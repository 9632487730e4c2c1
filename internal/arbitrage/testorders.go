package arbitrage

import (
	"log/slog"
	"sync"
	"time"

	"arbwatch/internal/events"
	"arbwatch/internal/model"

	"github.com/google/uuid"
)

const (
	// TestOrderLogSize caps the simulated execution log.
	TestOrderLogSize = 1000
	// TestOrderBroadcast is how many entries accompany a testorder:log event.
	TestOrderBroadcast = 50
)

// TestOrderSimulator records simulated executions of triangular opportunities
// while armed. It has no access to any order placement interface.
type TestOrderSimulator struct {
	logger *slog.Logger
	sink   events.Sink
	now    func() time.Time

	mu    sync.Mutex
	armed bool
	logs  *ring[model.TestOrderLogEntry]
}

// NewTestOrderSimulator creates a disarmed simulator.
func NewTestOrderSimulator(logger *slog.Logger, sink events.Sink) *TestOrderSimulator {
	if sink == nil {
		sink = events.Nop{}
	}
	return &TestOrderSimulator{
		logger: logger,
		sink:   sink,
		now:    time.Now,
		logs:   newRing[model.TestOrderLogEntry](TestOrderLogSize),
	}
}

// ArmedState is the payload of a testorder:enabled event.
type ArmedState struct {
	Enabled bool `json:"enabled"`
}

// SetArmed arms or disarms the simulator.
func (s *TestOrderSimulator) SetArmed(armed bool) {
	s.mu.Lock()
	s.armed = armed
	s.mu.Unlock()

	s.sink.Publish(events.TestOrderEnabled, ArmedState{Enabled: armed})
	s.logger.Info("Test orders toggled", "enabled", armed)
}

// Armed reports whether simulated executions are being recorded.
func (s *TestOrderSimulator) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// LogBatch is the payload of a testorder:log event.
type LogBatch struct {
	Entry model.TestOrderLogEntry `json:"entry"`
	Logs  []string                `json:"logs"`
}

// Record logs a simulated execution of opp if the simulator is armed and
// the opportunity came from a triangle in test mode.
func (s *TestOrderSimulator) Record(opp model.TriangleOpportunity) (model.TestOrderLogEntry, bool) {
	if !opp.Simulated {
		return model.TestOrderLogEntry{}, false
	}

	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return model.TestOrderLogEntry{}, false
	}
	entry := model.NewTestOrderLogEntry("test_"+uuid.NewString(), opp, s.now())
	s.logs.push(entry)
	recent := texts(s.logs.newest(TestOrderBroadcast))
	s.mu.Unlock()

	s.sink.Publish(events.TestOrderLog, LogBatch{Entry: entry, Logs: recent})
	s.logger.Info("Test order simulated",
		"path", opp.Path,
		"exchange", opp.Exchange,
		"profitPercent", opp.ProfitPercent,
	)
	return entry, true
}

// Logs returns up to n log entries, newest first.
func (s *TestOrderSimulator) Logs(n int) []model.TestOrderLogEntry {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs.newest(n)
}

// LogLines returns the formatted text of up to n entries, newest first.
func (s *TestOrderSimulator) LogLines(n int) []string {
	return texts(s.Logs(n))
}

// Clear empties the log.
func (s *TestOrderSimulator) Clear() {
	s.mu.Lock()
	s.logs.clear()
	s.mu.Unlock()

	s.sink.Publish(events.TestOrderLogsClear, nil)
}

func texts(entries []model.TestOrderLogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}
