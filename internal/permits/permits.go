// Package permits implements the PermitManager of spec.md §4.3: the
// `unblocked` category bitset driven by user-activated, time-bounded
// overrides.
package permits

import (
	"time"

	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/bitset"
	"github.com/vaxtify/vaxtifyd/internal/config"
	"github.com/vaxtify/vaxtifyd/internal/daywindow"
	"github.com/vaxtify/vaxtifyd/internal/lookups"
)

type state struct {
	expires    *time.Time
	lastActive *time.Time
}

// SavedState is the per-permit runtime state carried across a config
// hot-reload (spec.md §3's "Save state"), keyed by permit name so it
// survives even though ids are reassigned on reload.
type SavedState struct {
	Expires    *time.Time
	LastActive *time.Time
}

// Manager owns the `unblocked` bitset and per-permit activation state.
type Manager struct {
	lookups *lookups.Lookups
	log     *zap.SugaredLogger

	unblocked bitset.Set
	state     []state

	restartTime time.Time
	reloadTime  time.Time
}

// New constructs a PermitManager. Only permits named in saved whose
// name still exists in l's config are restored (spec.md §4.3,
// "Construction from a save state").
func New(l *lookups.Lookups, restartTime, reloadTime time.Time, saved map[string]SavedState, log *zap.SugaredLogger) *Manager {
	m := &Manager{
		lookups:     l,
		log:         log,
		unblocked:   bitset.New(l.NCategories()),
		state:       make([]state, l.Permit.Len()),
		restartTime: restartTime,
		reloadTime:  reloadTime,
	}
	for name, s := range saved {
		if id, ok := l.Permit.ID(name); ok {
			m.state[id] = state{expires: s.Expires, lastActive: s.LastActive}
		}
	}
	return m
}

// Snapshot returns the runtime state of every permit that has ever
// been activated, for carrying across the next config reload.
func (m *Manager) Snapshot() map[string]SavedState {
	out := make(map[string]SavedState)
	m.lookups.Permit.Each(func(id int, name string, _ config.Permit) {
		s := m.state[id]
		if s.expires != nil || s.lastActive != nil {
			out[name] = SavedState{Expires: s.expires, LastActive: s.lastActive}
		}
	})
	return out
}

// Unblocked returns the current `unblocked` bitset.
func (m *Manager) Unblocked() *bitset.Set {
	return &m.unblocked
}

// IsActive reports whether the named permit is currently active, for
// metrics reporting.
func (m *Manager) IsActive(name string) bool {
	id, ok := m.lookups.Permit.ID(name)
	if !ok {
		return false
	}
	return m.state[id].expires != nil
}

// Remaining returns the time left until the named permit expires, for
// the inspection CLI's status view. ok is false if the permit does not
// exist or is not currently active.
func (m *Manager) Remaining(name string, now time.Time) (time.Duration, bool) {
	id, ok := m.lookups.Permit.ID(name)
	if !ok {
		return 0, false
	}
	expires := m.state[id].expires
	if expires == nil {
		return 0, false
	}
	left := expires.Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Activate services a PermitRequest (spec.md §4.3, §4.6). now is the
// current wall-clock time. The restart and reload cooldowns are
// measured from the restartTime and reloadTime given to New; the engine
// passes its process-wide restart time to every New, so the restart
// cooldown spans config reloads.
func (m *Manager) Activate(name string, now time.Time) error {
	id, ok := m.lookups.Permit.ID(name)
	if !ok {
		return ErrPermitDoesNotExist
	}
	details := m.lookups.Permit.Details(id)
	s := &m.state[id]

	if s.lastActive != nil && details.Cooldown != nil {
		deadline := s.lastActive.Add(details.Cooldown.Dur())
		if deadline.After(now) {
			cooldownErr := &CooldownNotFinishedError{Left: deadline.Sub(now)}
			if s.expires != nil {
				return &PermitExtensionRefusedError{Cause: cooldownErr}
			}
			return cooldownErr
		}
	}

	if left := m.lookups.Config.After.Restart.BlockPermits.Dur() - now.Sub(m.restartTime); left > 0 {
		return &CooldownAfterRestartError{Left: left}
	}
	if left := m.lookups.Config.After.Reload.BlockPermits.Dur() - now.Sub(m.reloadTime); left > 0 {
		return &CooldownAfterRestartError{Left: left}
	}

	if details.Available != nil && !daywindow.Contains(*details.Available, now) {
		return &AvailableBadTimeError{Since: details.Available.Since, Until: details.Available.Until}
	}

	activatedAt := now
	expiresAt := now.Add(details.Length.Dur())
	s.lastActive = &activatedAt
	s.expires = &expiresAt
	m.log.Infof("permit %s activated on request", name)
	return nil
}

// Deactivate services a PermitEnd (spec.md §4.3, §4.6).
func (m *Manager) Deactivate(name string) error {
	id, ok := m.lookups.Permit.ID(name)
	if !ok {
		return ErrPermitDoesNotExist
	}
	s := &m.state[id]
	if s.expires == nil {
		return ErrPermitIsNotActive
	}
	s.expires = nil
	m.log.Infof("permit %s deactivated on request", name)
	return nil
}

// Reload recomputes `unblocked`, clearing expired permits along the
// way (spec.md §4.3).
func (m *Manager) Reload(now time.Time) {
	m.unblocked.Clear()
	m.lookups.Permit.Each(func(id int, name string, details config.Permit) {
		s := &m.state[id]
		if s.expires != nil && !s.expires.After(now) {
			s.expires = nil
			m.log.Infof("permit %s deactivated after using allotted time", name)
		}
		if s.expires != nil {
			for _, catName := range details.Categories {
				if catID, ok := m.lookups.Category.ID(catName); ok {
					m.unblocked.Insert(catID)
				}
			}
		}
	})
}

// WhenReload returns the minimum expires among active permits, per
// spec.md §4.3's "Next-wake" rule. ok is false if no permit is active.
func (m *Manager) WhenReload() (time.Time, bool) {
	var min time.Time
	found := false
	for i := range m.state {
		if exp := m.state[i].expires; exp != nil {
			if !found || exp.Before(min) {
				min = *exp
				found = true
			}
		}
	}
	return min, found
}
