package vaxmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeCommander struct {
	closed int
	killed int
}

func (f *fakeCommander) TabClose(pid uint32, tab int32) { f.closed++ }
func (f *fakeCommander) TabCreateEmpty(pid uint32)      {}
func (f *fakeCommander) Kill(names []string)            { f.killed += len(names) }
func (f *fakeCommander) TabRefresh()                    {}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe(Stats{
		BlockedCount:   2,
		UnblockedCount: 1,
		TabsAlive:      5,
		ActivePermits:  map[string]bool{"free-time": true},
	})

	if got := gaugeValue(t, m.BlockedCategories); got != 2 {
		t.Errorf("BlockedCategories = %v, want 2", got)
	}
	if got := gaugeValue(t, m.TabsAlive); got != 5 {
		t.Errorf("TabsAlive = %v, want 5", got)
	}
}

func TestWrapCommanderCountsActions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	inner := &fakeCommander{}
	wrapped := WrapCommander(inner, m)

	wrapped.TabClose(1, 1)
	wrapped.TabClose(1, 2)
	wrapped.Kill([]string{"steam", "lutris"})

	if inner.closed != 2 {
		t.Fatalf("expected the inner commander to see both closures, got %d", inner.closed)
	}
	if got := counterValue(t, m.TabCloseTotal); got != 2 {
		t.Errorf("TabCloseTotal = %v, want 2", got)
	}
	if got := counterValue(t, m.ProcessKillTotal); got != 2 {
		t.Errorf("ProcessKillTotal = %v, want 2", got)
	}
}
