// Package tabs implements the Tabs manager of spec.md §4.4: the
// indexed set of known browser tabs, enforcing block decisions by
// commanding tab closure with the close-cascade and
// anti-browser-exit-guard variants.
package tabs

import (
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/bitset"
	"github.com/vaxtify/vaxtifyd/internal/config"
	"github.com/vaxtify/vaxtifyd/internal/lookups"
)

// Key identifies a tab by the browser instance that owns it and the
// browser-local tab id (spec.md §3).
type Key struct {
	PID uint32
	Tab int32
}

// Commander is the capability interface Tabs uses to emit fire-and-
// forget enforcement commands (spec.md §4.7). Implementations are
// typically backed by the dbus signal emitters in internal/ipcbus.
type Commander interface {
	TabClose(pid uint32, tab int32)
	TabCreateEmpty(pid uint32)
}

type tabState struct {
	mask bitset.Set
	url  *url.URL
}

// Manager owns `tabs` and `alive` (spec.md §4.4).
type Manager struct {
	lookups *lookups.Lookups
	cmd     Commander
	cfg     config.General
	log     *zap.SugaredLogger

	tabs  map[Key]tabState
	alive map[Key]struct{}

	blockAllUntil *time.Time
}

// New constructs a Tabs manager. cfg carries the three tab-closure
// policy flags validated by internal/config.Validate
// (prevent_browser_close, close_all_on_block, close_all_after_block).
func New(l *lookups.Lookups, cmd Commander, cfg config.General, log *zap.SugaredLogger) *Manager {
	return &Manager{
		lookups: l,
		cmd:     cmd,
		cfg:     cfg,
		log:     log,
		tabs:    make(map[Key]tabState),
		alive:   make(map[Key]struct{}),
	}
}

// AliveCount returns the number of tabs not yet asked to close, for
// metrics.
func (m *Manager) AliveCount() int {
	return len(m.alive)
}

// Insert records (or overwrites) a tab's URL and closes it immediately
// if it is already effectively blocked (spec.md §4.4 "Insert").
func (m *Manager) Insert(key Key, u *url.URL, blocked, unblocked *bitset.Set, now time.Time) {
	mask := m.lookups.URLToMask(u)
	shouldClose := m.shouldBlockAll(now) || bitset.EffectiveBlocked(&mask, blocked, unblocked)

	_, existed := m.tabs[key]
	m.tabs[key] = tabState{mask: mask, url: u}
	if !existed {
		m.alive[key] = struct{}{}
	}

	if shouldClose {
		m.Close(key, now)
	}
}

func (m *Manager) shouldBlockAll(now time.Time) bool {
	return m.blockAllUntil != nil && !now.After(*m.blockAllUntil)
}

// Remove deletes a tab the browser reports as destroyed.
func (m *Manager) Remove(key Key) {
	delete(m.tabs, key)
	delete(m.alive, key)
}

// Clear removes every tab belonging to pid — used for
// TabDeleteAll(pid) and, equivalently, BrowserUnregister(pid)
// (spec.md §6).
func (m *Manager) Clear(pid uint32) {
	for key := range m.tabs {
		if key.PID == pid {
			delete(m.tabs, key)
		}
	}
	for key := range m.alive {
		if key.PID == pid {
			delete(m.alive, key)
		}
	}
}

// Rescan closes every alive tab that has become effectively blocked.
// It iterates over a snapshot of `alive` since Close mutates it
// (spec.md §4.4).
func (m *Manager) Rescan(blocked, unblocked *bitset.Set, now time.Time) {
	toClose := make([]Key, 0, len(m.alive))
	for key := range m.alive {
		state := m.tabs[key]
		if bitset.EffectiveBlocked(&state.mask, blocked, unblocked) {
			toClose = append(toClose, key)
		}
	}
	for _, key := range toClose {
		if _, stillAlive := m.alive[key]; stillAlive {
			m.Close(key, now)
		}
	}
}

// Close removes key from `alive` and issues the commands needed to
// actually close the tab in the browser, including the
// anti-browser-exit guard, the close-all-after-block extension, and
// the close-all-on-block cascade (spec.md §4.4).
func (m *Manager) Close(key Key, now time.Time) {
	if state, ok := m.tabs[key]; ok {
		m.log.Debugf("tab %d/%d blocked on %s", key.PID, key.Tab, state.url)
	}

	_, wasAlive := m.alive[key]
	delete(m.alive, key)

	if m.cfg.CloseAllAfterBlock != nil {
		deadline := now.Add(m.cfg.CloseAllAfterBlock.Dur())
		m.blockAllUntil = &deadline
	}

	if wasAlive && m.cfg.PreventBrowserClose && !m.anyAliveForPID(key.PID) {
		m.cmd.TabCreateEmpty(key.PID)
	}

	m.cmd.TabClose(key.PID, key.Tab)

	if m.cfg.CloseAllOnBlock {
		if other, ok := m.oneAliveForPID(key.PID); ok {
			m.Close(other, now)
		}
	}
}

func (m *Manager) anyAliveForPID(pid uint32) bool {
	for key := range m.alive {
		if key.PID == pid {
			return true
		}
	}
	return false
}

func (m *Manager) oneAliveForPID(pid uint32) (Key, bool) {
	for key := range m.alive {
		if key.PID == pid {
			return key, true
		}
	}
	return Key{}, false
}
