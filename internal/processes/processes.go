// Package processes implements the Processes manager of spec.md §4.5:
// periodic evaluation of the declared process names against the same
// effective-blocked predicate Tabs uses, enforced by issuing a kill
// command for the blocked names. The running process table is not
// read here.
package processes

import (
	"time"

	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/bitset"
	"github.com/vaxtify/vaxtifyd/internal/lookups"
)

// Commander is the capability interface Processes uses to kill matched
// process names (spec.md §4.7). Implementations typically shell out to
// the OS process table; see internal/ipcbus for the production one.
type Commander interface {
	Kill(names []string)
}

// Manager checks every declared process name on an interval and asks
// its Commander to kill the names whose category mask is effectively
// blocked.
type Manager struct {
	lookups *lookups.Lookups
	cmd     Commander
	log     *zap.SugaredLogger

	scanEach     time.Duration
	whenLastScan time.Time
}

// New constructs a Processes manager. scanEach is
// general.processes_scan_each, already defaulted by internal/config.
func New(l *lookups.Lookups, cmd Commander, scanEach time.Duration, now time.Time, log *zap.SugaredLogger) *Manager {
	return &Manager{
		lookups:      l,
		cmd:          cmd,
		log:          log,
		scanEach:     scanEach,
		whenLastScan: now,
	}
}

// Rescan is a no-op unless the scan interval has elapsed, in which
// case it re-evaluates every declared process name against
// blocked/unblocked and kills the ones that are effectively blocked
// (spec.md §4.5).
func (m *Manager) Rescan(blocked, unblocked *bitset.Set, now time.Time) {
	if now.Sub(m.whenLastScan) < m.scanEach {
		return
	}
	m.whenLastScan = now

	var toKill []string
	for _, name := range m.lookups.ProcessNames() {
		mask := m.lookups.ProcessToMask(name)
		if bitset.EffectiveBlocked(&mask, blocked, unblocked) {
			toKill = append(toKill, name)
		}
	}
	if len(toKill) > 0 {
		m.log.Infof("killing %d blocked process(es): %v", len(toKill), toKill)
		m.cmd.Kill(toKill)
	}
}

// WhenReload returns the next time Rescan should actually act,
// following spec.md §4.5's "Next-wake" rule.
func (m *Manager) WhenReload() time.Time {
	return m.whenLastScan.Add(m.scanEach)
}
