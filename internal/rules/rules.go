// Package rules implements the RuleManager of spec.md §4.2: the
// `blocked` category bitset driven by rule schedules and the
// restart/reload safety-gate cooldowns.
package rules

import (
	"time"

	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/bitset"
	"github.com/vaxtify/vaxtifyd/internal/config"
	"github.com/vaxtify/vaxtifyd/internal/daywindow"
	"github.com/vaxtify/vaxtifyd/internal/lookups"
)

// Manager owns the `blocked` bitset and the per-rule was_active cache
// used to detect schedule-edge transitions (spec.md §4.2).
type Manager struct {
	lookups *lookups.Lookups
	log     *zap.SugaredLogger

	blocked   bitset.Set
	wasActive []bool

	restartDeadline time.Time
	reloadDeadline  time.Time
	restartDone     bool
	reloadDone      bool
}

// New constructs a RuleManager. restartTime is stable across config
// reloads; reloadTime is this reload's timestamp (equal to restartTime
// on first construction). Rule schedule state (was_active) always
// starts fresh — spec.md §3 "Save state" discards it on reload.
func New(l *lookups.Lookups, restartTime, reloadTime time.Time, log *zap.SugaredLogger) *Manager {
	return &Manager{
		lookups:         l,
		log:             log,
		blocked:         bitset.New(l.NCategories()),
		wasActive:       make([]bool, len(l.Config.Rule)),
		restartDeadline: restartTime.Add(l.Config.After.Restart.BlockRules.Dur()),
		reloadDeadline:  reloadTime.Add(l.Config.After.Reload.BlockRules.Dur()),
	}
}

// Blocked returns the current `blocked` bitset.
func (m *Manager) Blocked() *bitset.Set {
	return &m.blocked
}

// Reload recomputes `blocked` from the rule schedules and cooldown
// gates, per spec.md §4.2.
func (m *Manager) Reload(now time.Time) {
	m.blocked.Clear()

	if !m.restartDone && !now.Before(m.restartDeadline) {
		m.restartDone = true
	}
	if !m.reloadDone && !now.Before(m.reloadDeadline) {
		m.reloadDone = true
	}

	for i, rule := range m.lookups.Config.Rule {
		isActive := m.isActive(rule, now)
		if isActive != m.wasActive[i] {
			m.wasActive[i] = isActive
			state := "deactivated"
			if isActive {
				state = "activated"
			}
			m.log.Infof("rule %s %s according to schedule", rule.Name, state)
		}
		if isActive {
			for _, catName := range rule.Categories {
				if id, ok := m.lookups.Category.ID(catName); ok {
					m.blocked.Insert(id)
				}
			}
		}
	}
}

// WhenReload returns the next time Reload should be called, following
// spec.md §4.2's "Next-wake computation". ok is false if there is
// nothing to wait for (never the case while either cooldown gate is
// unsatisfied, since their own deadlines are always a candidate).
func (m *Manager) WhenReload(now time.Time) (t time.Time, ok bool) {
	for i, rule := range m.lookups.Config.Rule {
		if m.isActive(rule, now) != m.wasActive[i] {
			return now, true
		}
	}

	var candidates []time.Time
	for _, rule := range m.lookups.Config.Rule {
		if next, ok := nextChangeTime(rule, now); ok {
			candidates = append(candidates, next)
		}
	}
	if !m.restartDone {
		candidates = append(candidates, m.restartDeadline)
	}
	if !m.reloadDone {
		candidates = append(candidates, m.reloadDeadline)
	}

	if len(candidates) == 0 {
		return time.Time{}, false
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c.Before(min) {
			min = c
		}
	}
	return min, true
}

// isActive implements spec.md §4.2's activation formula:
// is_active = rule_schedule_active(now) ∨ ¬restart_done ∨ ¬reload_done.
func (m *Manager) isActive(rule config.Rule, now time.Time) bool {
	return scheduleActive(rule, now) || !m.restartDone || !m.reloadDone
}

// scheduleActive implements spec.md §4.2's "Rule schedule semantics":
// a rule with no window is always active; a rule with window
// [since, until) is active OUTSIDE that window, wrapping past
// midnight when since > until, and is always active when
// until == since (an empty, zero-length window).
func scheduleActive(rule config.Rule, now time.Time) bool {
	if rule.Allowed == nil {
		return true
	}
	return !daywindow.Contains(*rule.Allowed, now)
}

// nextChangeTime returns the next datetime, strictly after now, at
// which the rule's schedule-active state would flip: the next `since`
// or `until` edge, whichever comes first. Rules with no window never
// change, so ok is false.
func nextChangeTime(rule config.Rule, now time.Time) (time.Time, bool) {
	if rule.Allowed == nil {
		return time.Time{}, false
	}
	return daywindow.NextChangeTime(*rule.Allowed, now), true
}
