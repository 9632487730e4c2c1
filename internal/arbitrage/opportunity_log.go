package arbitrage

import (
	"sort"
	"sync"

	"arbwatch/internal/model"
)

const (
	// MaxRecentCross is the most cross-exchange opportunities a read returns.
	MaxRecentCross = 50
	// TriangleLogSize is the hard cap of the triangular opportunity log.
	TriangleLogSize = 100
	// DefaultCrossHistory is the default number of cross opportunities retained.
	DefaultCrossHistory = 1000
)

// OpportunityLog records detected opportunities, newest first. Cross-exchange
// and triangular opportunities are kept in separate bounded logs.
type OpportunityLog struct {
	crossMu    sync.RWMutex
	cross      *ring[model.CrossOpportunity]
	crossTotal int

	triMu sync.RWMutex
	tri   *ring[model.TriangleOpportunity]
}

// NewOpportunityLog creates a log retaining crossHistory cross opportunities.
func NewOpportunityLog(crossHistory int) *OpportunityLog {
	if crossHistory < MaxRecentCross {
		crossHistory = MaxRecentCross
	}
	return &OpportunityLog{
		cross: newRing[model.CrossOpportunity](crossHistory),
		tri:   newRing[model.TriangleOpportunity](TriangleLogSize),
	}
}

// AddCross appends a cross-exchange opportunity.
func (l *OpportunityLog) AddCross(o model.CrossOpportunity) {
	l.crossMu.Lock()
	defer l.crossMu.Unlock()
	l.cross.push(o)
	l.crossTotal++
}

// RecentCross returns up to n (at most MaxRecentCross) cross opportunities, newest first.
func (l *OpportunityLog) RecentCross(n int) []model.CrossOpportunity {
	if n <= 0 || n > MaxRecentCross {
		n = MaxRecentCross
	}
	l.crossMu.RLock()
	defer l.crossMu.RUnlock()
	return l.cross.newest(n)
}

// CrossDetected returns how many cross opportunities in detected state have been recorded.
func (l *OpportunityLog) CrossDetected() int {
	l.crossMu.RLock()
	defer l.crossMu.RUnlock()
	return l.crossTotal
}

// AddTriangle appends a triangular opportunity, evicting the oldest past the cap.
func (l *OpportunityLog) AddTriangle(o model.TriangleOpportunity) {
	l.triMu.Lock()
	defer l.triMu.Unlock()
	l.tri.push(o)
}

// RecentTriangles returns up to n triangular opportunities, newest first.
func (l *OpportunityLog) RecentTriangles(n int) []model.TriangleOpportunity {
	if n < 0 {
		n = 0
	}
	l.triMu.RLock()
	defer l.triMu.RUnlock()
	return l.tri.newest(n)
}

// BestTriangles returns up to n triangular opportunities ordered by profit,
// highest first. Equal profits keep their newest-first order.
func (l *OpportunityLog) BestTriangles(n int) []model.TriangleOpportunity {
	all := l.RecentTriangles(TriangleLogSize)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ProfitPercent > all[j].ProfitPercent
	})
	if n < 0 {
		n = 0
	}
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// TriangleSummary aggregates the triangular log.
type TriangleSummary struct {
	Count      int
	AvgProfit  float64
	BestProfit float64
}

// Summary computes count, average and best profit over the triangular log.
func (l *OpportunityLog) Summary() TriangleSummary {
	all := l.RecentTriangles(TriangleLogSize)
	s := TriangleSummary{Count: len(all)}
	if len(all) == 0 {
		return s
	}
	sum := 0.0
	s.BestProfit = all[0].ProfitPercent
	for _, o := range all {
		sum += o.ProfitPercent
		s.BestProfit = max(s.BestProfit, o.ProfitPercent)
	}
	s.AvgProfit = sum / float64(len(all))
	return s
}
