// Package daywindow implements the daily time-of-day window semantics
// shared by rule schedules and permit availability windows (spec.md
// §4.2 "Rule schedule semantics"; §4.3's Available window is defined
// to wrap identically).
package daywindow

import (
	"time"

	"github.com/vaxtify/vaxtifyd/internal/config"
)

// Contains reports whether wall-clock time now falls within [since,
// until). since == until is treated as the empty set: it contains no
// time of day. since > until wraps past midnight.
func Contains(w config.Window, now time.Time) bool {
	since, until := w.Since.Minutes(), w.Until.Minutes()
	t := now.Hour()*60 + now.Minute()
	if since == until {
		return false
	}
	if since < until {
		return t >= since && t < until
	}
	return t >= since || t < until
}

// NextChangeTime returns the next datetime, strictly after now, at
// which Contains(w, ·) would flip — the earlier of the next `since` or
// `until` edge.
func NextChangeTime(w config.Window, now time.Time) time.Time {
	since := NextOccurrence(now, w.Since)
	until := NextOccurrence(now, w.Until)
	if since.Before(until) {
		return since
	}
	return until
}

// NextOccurrence returns the next datetime, strictly after now, at
// which wall-clock time-of-day tod occurs.
func NextOccurrence(now time.Time, tod config.TimeOfDay) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Min, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
