package vaxmetrics

// Stats is the subset of engine.Engine.Stats() vaxmetrics depends on,
// kept as a local type (rather than importing internal/engine) since
// the daemon is the one place that bridges the two.
type Stats struct {
	BlockedCount   int
	UnblockedCount int
	TabsAlive      int
	ActivePermits  map[string]bool
}

// Observe updates every gauge from a fresh snapshot. The daemon calls
// this from engine.Engine.OnReconcile, so it always runs on the
// engine's owning goroutine.
func (m *Metrics) Observe(s Stats) {
	m.BlockedCategories.Set(float64(s.BlockedCount))
	m.UnblockedCategories.Set(float64(s.UnblockedCount))
	m.TabsAlive.Set(float64(s.TabsAlive))
	for name, active := range s.ActivePermits {
		v := 0.0
		if active {
			v = 1.0
		}
		m.PermitActive.WithLabelValues(name).Set(v)
	}
}
