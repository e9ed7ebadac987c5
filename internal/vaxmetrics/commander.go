package vaxmetrics

// Commander is the minimal surface vaxmetrics wraps to count
// enforcement actions. engine.Commander satisfies it structurally.
type Commander interface {
	TabClose(pid uint32, tab int32)
	TabCreateEmpty(pid uint32)
	Kill(names []string)
	TabRefresh()
}

// countingCommander wraps a Commander, incrementing TabCloseTotal and
// ProcessKillTotal as enforcement commands pass through, then
// delegating to the wrapped implementation.
type countingCommander struct {
	Commander
	metrics *Metrics
}

// WrapCommander returns a Commander that counts tab closures and
// process kills before delegating to inner.
func WrapCommander(inner Commander, metrics *Metrics) Commander {
	return &countingCommander{Commander: inner, metrics: metrics}
}

func (c *countingCommander) TabClose(pid uint32, tab int32) {
	c.metrics.TabCloseTotal.Inc()
	c.Commander.TabClose(pid, tab)
}

func (c *countingCommander) Kill(names []string) {
	c.metrics.ProcessKillTotal.Add(float64(len(names)))
	c.Commander.Kill(names)
}
