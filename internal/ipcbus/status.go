package ipcbus

import (
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// StatusSnapshot is the read-only view of engine state the Status dbus
// method and the CLI's status view consume.
type StatusSnapshot struct {
	BlockedCategories []string
	PermitRemaining   map[string]time.Duration
	TabsAlive         int
}

// StatusCache holds the most recent StatusSnapshot behind a mutex. The
// engine's owning goroutine writes it via Set (from OnReconcile); any
// number of dbus method-call goroutines read it via Get. This sidesteps
// routing a read-only status query through the single event channel,
// since it never needs to mutate engine state (spec.md §5's "Shared
// resources" note that only the command surface is shared).
type StatusCache struct {
	mu   sync.RWMutex
	snap StatusSnapshot
}

// NewStatusCache returns an empty cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{}
}

// Set replaces the cached snapshot.
func (c *StatusCache) Set(s StatusSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s
}

// Get returns the cached snapshot.
func (c *StatusCache) Get() StatusSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// UseStatus wires a StatusCache into the Server so the Status dbus
// method has something to read.
func (s *Server) UseStatus(c *StatusCache) {
	s.status = c
}

// Status implements the Status() dbus method: blocked category names,
// a map of active permit name to remaining seconds, and the current
// alive-tab count.
func (s *Server) Status() (blocked []string, permitSecondsLeft map[string]int64, tabsAlive int32, dbusErr *dbus.Error) {
	if s.status == nil {
		return nil, nil, 0, nil
	}
	snap := s.status.Get()
	seconds := make(map[string]int64, len(snap.PermitRemaining))
	for name, left := range snap.PermitRemaining {
		seconds[name] = int64(left.Round(time.Second).Seconds())
	}
	return snap.BlockedCategories, seconds, int32(snap.TabsAlive), nil
}
