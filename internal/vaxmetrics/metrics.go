// Package vaxmetrics exposes the daemon's prometheus metrics, grounded
// on the pack's Kubernetes-adjacent repos that instrument a
// reconcile-style control loop with github.com/prometheus/client_golang
// gauges/counters rather than hand-rolled counters.
package vaxmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every series the engine's reconcile pass updates.
type Metrics struct {
	BlockedCategories   prometheus.Gauge
	UnblockedCategories prometheus.Gauge
	TabsAlive           prometheus.Gauge
	PermitActive        *prometheus.GaugeVec
	TabCloseTotal       prometheus.Counter
	ProcessKillTotal    prometheus.Counter
}

// New constructs and registers every metric against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlockedCategories: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaxtify_blocked_categories",
			Help: "Number of categories currently in the blocked mask.",
		}),
		UnblockedCategories: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaxtify_unblocked_categories",
			Help: "Number of categories currently in the unblocked mask.",
		}),
		TabsAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaxtify_tabs_alive",
			Help: "Number of browser tabs not yet asked to close.",
		}),
		PermitActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaxtify_permit_active",
			Help: "1 if the named permit is currently active, 0 otherwise.",
		}, []string{"permit"}),
		TabCloseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaxtify_tab_close_total",
			Help: "Total number of TabClose commands issued.",
		}),
		ProcessKillTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaxtify_process_kill_total",
			Help: "Total number of process kill commands issued.",
		}),
	}

	reg.MustRegister(
		m.BlockedCategories,
		m.UnblockedCategories,
		m.TabsAlive,
		m.PermitActive,
		m.TabCloseTotal,
		m.ProcessKillTotal,
	)
	return m
}
