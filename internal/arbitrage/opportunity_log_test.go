package arbitrage

import (
	"fmt"
	"sync"
	"testing"

	"arbwatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triOpp(i int, profit float64) model.TriangleOpportunity {
	return model.TriangleOpportunity{ID: fmt.Sprintf("tri_%d", i), ProfitPercent: profit}
}

func TestOpportunityLog_TriangleCap(t *testing.T) {
	l := NewOpportunityLog(DefaultCrossHistory)
	for i := 0; i < 105; i++ {
		l.AddTriangle(triOpp(i, float64(i)))
	}

	all := l.RecentTriangles(1000)
	require.Len(t, all, TriangleLogSize)
	assert.Equal(t, "tri_104", all[0].ID)
	assert.Equal(t, "tri_5", all[len(all)-1].ID)

	recent := l.RecentTriangles(10)
	require.Len(t, recent, 10)
	for i, o := range recent {
		assert.Equal(t, fmt.Sprintf("tri_%d", 104-i), o.ID)
	}
}

func TestOpportunityLog_BestIsStable(t *testing.T) {
	l := NewOpportunityLog(DefaultCrossHistory)
	l.AddTriangle(triOpp(0, 0.5))
	l.AddTriangle(triOpp(1, 0.9))
	l.AddTriangle(triOpp(2, 0.5))
	l.AddTriangle(triOpp(3, 0.9))
	l.AddTriangle(triOpp(4, 0.1))

	best := l.BestTriangles(10)
	ids := make([]string, len(best))
	for i, o := range best {
		ids[i] = o.ID
	}
	// Ties keep newest-first order.
	assert.Equal(t, []string{"tri_3", "tri_1", "tri_2", "tri_0", "tri_4"}, ids)

	assert.Len(t, l.BestTriangles(2), 2)
	assert.Empty(t, l.BestTriangles(0))
}

func TestOpportunityLog_CrossRecent(t *testing.T) {
	l := NewOpportunityLog(60)
	for i := 0; i < 75; i++ {
		l.AddCross(model.CrossOpportunity{ID: fmt.Sprintf("arb_%d", i), Status: model.StatusDetected})
	}

	recent := l.RecentCross(500)
	require.Len(t, recent, MaxRecentCross)
	assert.Equal(t, "arb_74", recent[0].ID)
	assert.Equal(t, "arb_25", recent[MaxRecentCross-1].ID)
	assert.Len(t, l.RecentCross(5), 5)
	assert.Equal(t, 75, l.CrossDetected())
}

func TestOpportunityLog_Summary(t *testing.T) {
	l := NewOpportunityLog(DefaultCrossHistory)
	assert.Equal(t, TriangleSummary{}, l.Summary())

	l.AddTriangle(triOpp(0, 0.4))
	l.AddTriangle(triOpp(1, 1.0))
	s := l.Summary()
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 0.7, s.AvgProfit, 1e-9)
	assert.Equal(t, 1.0, s.BestProfit)
}

func TestOpportunityLog_ConcurrentAppend(t *testing.T) {
	l := NewOpportunityLog(DefaultCrossHistory)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.AddTriangle(triOpp(i, 1))
				assert.LessOrEqual(t, len(l.RecentTriangles(1000)), TriangleLogSize)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, l.RecentTriangles(1000), TriangleLogSize)
}
