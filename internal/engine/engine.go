// Package engine implements the decision engine of spec.md §4.6: the
// single owner goroutine that serializes every state transition
// (permit activation, tab lifecycle, config reload) through one event
// channel and drives the RuleManager/PermitManager/Tabs/Processes
// reconcile pass.
package engine

import (
	"net/url"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/config"
	"github.com/vaxtify/vaxtifyd/internal/lookups"
	"github.com/vaxtify/vaxtifyd/internal/permits"
	"github.com/vaxtify/vaxtifyd/internal/processes"
	"github.com/vaxtify/vaxtifyd/internal/rules"
	"github.com/vaxtify/vaxtifyd/internal/tabs"
)

// Commander is the union of capabilities the engine's collaborators
// need (spec.md §4.7): tab closure/creation and process termination.
// A single concrete type (internal/ipcbus.Server) satisfies both
// the tabs.Commander and processes.Commander interfaces structurally;
// Commander exists so callers can construct and pass one value.
type Commander interface {
	tabs.Commander
	processes.Commander

	// TabRefresh asks every connected browser to re-emit its current
	// tab set, used once at startup (spec.md §4.6 "Startup").
	TabRefresh()
}

// Event is the sum type received on the engine's single inbound
// channel (spec.md §4.6 "Event table"). Exactly one concrete type
// below is ever sent.
type Event interface {
	isEvent()
}

// PermitRequest asks the engine to activate a permit by name.
type PermitRequest struct {
	Name  string
	Reply chan error
}

// PermitEnd asks the engine to deactivate a permit by name.
type PermitEnd struct {
	Name  string
	Reply chan error
}

// TabUpdate reports a browser tab's current URL, creating the tab
// entry if new.
type TabUpdate struct {
	Key tabs.Key
	URL *url.URL
}

// TabDelete reports that a single browser tab was closed or
// navigated away in a way the extension considers destroyed.
type TabDelete struct {
	Key tabs.Key
}

// TabDeleteAll reports that every tab owned by pid should be dropped,
// emitted on browser disconnect or explicit BrowserUnregister.
type TabDeleteAll struct {
	PID uint32
}

// ServiceReload asks the engine to attempt a config reload.
type ServiceReload struct {
	Reply chan error
}

func (PermitRequest) isEvent()  {}
func (PermitEnd) isEvent()      {}
func (TabUpdate) isEvent()      {}
func (TabDelete) isEvent()      {}
func (TabDeleteAll) isEvent()   {}
func (ServiceReload) isEvent()  {}

// SaveState is the runtime state carried across a config reload
// (spec.md §3 "Save state"): rule schedule state is intentionally
// absent, since rules.New always starts was_active fresh.
type SaveState struct {
	Permits map[string]permits.SavedState
}

// Clock abstracts time.Now so tests can inject a controllable clock
// without sleeping real time.
type Clock func() time.Time

// Engine owns the four managers and drives the reconcile loop. It is
// not safe for concurrent use: exactly one goroutine should call Run.
type Engine struct {
	lookups *lookups.Lookups
	cmd     Commander
	log     *zap.SugaredLogger
	clock   Clock

	rules     *rules.Manager
	permits   *permits.Manager
	tabs      *tabs.Manager
	processes *processes.Manager

	restartTime time.Time
	reloadTime  time.Time

	configPath       string
	whenReloadConfig *time.Time
	pendingConfig    *config.Config

	onReconcile func(Stats)
}

// OnReconcile registers a callback invoked synchronously at the end of
// every reconcile pass, from the same goroutine that runs Run. This is
// how internal/vaxmetrics observes gauge-shaped state without racing
// the engine's single-owner state (spec.md §5 "Shared resources").
func (e *Engine) OnReconcile(fn func(Stats)) {
	e.onReconcile = fn
}

// New builds an Engine from an already-loaded config. restartTime
// should be fixed once at process startup and passed unchanged across
// every subsequent Reconfigure.
func New(configPath string, cfg *config.Config, cmd Commander, clock Clock, log *zap.SugaredLogger, restartTime time.Time, saved *SaveState) (*Engine, error) {
	l, err := lookups.New(cfg)
	if err != nil {
		return nil, err
	}
	now := clock()

	var savedPermits map[string]permits.SavedState
	if saved != nil {
		savedPermits = saved.Permits
	}

	e := &Engine{
		lookups:     l,
		cmd:         cmd,
		log:         log,
		clock:       clock,
		configPath:  configPath,
		restartTime: restartTime,
		reloadTime:  now,
	}
	e.rules = rules.New(l, restartTime, now, log)
	e.permits = permits.New(l, restartTime, now, savedPermits, log)
	e.tabs = tabs.New(l, cmd, cfg.General, log)
	scanEach := cfg.General.ProcessesScanEach.Dur()
	if scanEach == 0 {
		scanEach = config.DefaultProcessesScanEach
	}
	e.processes = processes.New(l, cmd, scanEach, now, log)

	return e, nil
}

// Lookups exposes the current lookup table, mainly for transports that
// need to translate names (e.g. the CLI's permit list).
func (e *Engine) Lookups() *lookups.Lookups {
	return e.lookups
}

// Stats is a point-in-time snapshot of gauge-shaped state, read by
// internal/vaxmetrics after every reconcile and by the inspection
// CLI's status view over dbus.
type Stats struct {
	BlockedCategoryNames []string
	UnblockedCount       int
	TabsAlive            int
	PermitRemaining      map[string]time.Duration
	KnownPermitNames     []string
}

// Stats reports the current state every observer (metrics, CLI) cares
// about. It is only ever called from the engine's owning goroutine
// (from within reconcile, via OnReconcile) so it never races the
// managers it reads.
func (e *Engine) Stats() Stats {
	now := e.clock()

	var blockedNames []string
	e.rules.Blocked().Each(func(id int) {
		blockedNames = append(blockedNames, e.lookups.Category.Name(id))
	})

	remaining := make(map[string]time.Duration)
	var knownNames []string
	e.lookups.Permit.Each(func(_ int, name string, _ config.Permit) {
		knownNames = append(knownNames, name)
		if left, ok := e.permits.Remaining(name, now); ok {
			remaining[name] = left
		}
	})

	return Stats{
		BlockedCategoryNames: blockedNames,
		UnblockedCount:       e.permits.Unblocked().Count(),
		TabsAlive:            e.tabs.AliveCount(),
		PermitRemaining:      remaining,
		KnownPermitNames:     knownNames,
	}
}

// Run is the outer loop of spec.md §4.6 "Startup": it broadcasts a tab
// refresh request, then repeatedly drives the inner loop until stop is
// closed. Each inner-loop return carries a fresh config to rebuild the
// managers from, which Run does before looping.
func (e *Engine) Run(events <-chan Event, stop <-chan struct{}) {
	e.cmd.TabRefresh()

	for {
		save := e.runInner(events, stop)
		if save == nil {
			return
		}
		e.reconfigure(*save)
	}
}

// reconfigure rebuilds the four managers against e.pendingConfig,
// carrying forward the save state produced by the previous inner-loop
// iteration (spec.md §3 "Save state": permit runtime state survives a
// reload; rule schedule state does not).
func (e *Engine) reconfigure(save SaveState) {
	cfg := e.pendingConfig
	l, err := lookups.New(cfg)
	if err != nil {
		// cfg was already validated by config.Load before being
		// accepted as pendingConfig; a failure here would be a
		// programmer error (e.g. a bad regex slipping past
		// validation), not a runtime condition to recover from.
		e.log.Errorf("rebuilding lookups after reload: %v", err)
		return
	}
	now := e.clock()
	e.lookups = l
	e.reloadTime = now
	e.rules = rules.New(l, e.restartTime, now, e.log)
	e.permits = permits.New(l, e.restartTime, now, save.Permits, e.log)
	e.tabs = tabs.New(l, e.cmd, cfg.General, e.log)
	scanEach := cfg.General.ProcessesScanEach.Dur()
	if scanEach == 0 {
		scanEach = config.DefaultProcessesScanEach
	}
	e.processes = processes.New(l, e.cmd, scanEach, now, e.log)
	e.whenReloadConfig = nil
	e.pendingConfig = nil
}

// runInner is one inner-loop run of spec.md §4.6. It returns nil if
// stop fired, or the SaveState to carry into the next reconfigure.
func (e *Engine) runInner(events <-chan Event, stop <-chan struct{}) *SaveState {
	for {
		now := e.clock()
		deadline, hasDeadline := e.nextWake(now)

		var timer *time.Timer
		var timerCh <-chan time.Time
		if hasDeadline {
			d := deadline.Sub(now)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerCh = timer.C
		}

		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev := <-events:
			if timer != nil {
				timer.Stop()
			}
			now = e.clock()
			e.dispatch(ev, now)
		case <-timerCh:
			now = e.clock()
		}

		e.reconcile(now)

		if e.whenReloadConfig != nil && !e.whenReloadConfig.After(now) {
			save := SaveState{Permits: e.permits.Snapshot()}
			return &save
		}
	}
}

// dispatch applies one event per spec.md §4.6's "Event table".
func (e *Engine) dispatch(ev Event, now time.Time) {
	switch v := ev.(type) {
	case PermitRequest:
		v.Reply <- e.permits.Activate(v.Name, now)
	case PermitEnd:
		v.Reply <- e.permits.Deactivate(v.Name)
	case TabUpdate:
		e.tabs.Insert(v.Key, v.URL, e.rules.Blocked(), e.permits.Unblocked(), now)
	case TabDelete:
		e.tabs.Remove(v.Key)
	case TabDeleteAll:
		e.tabs.Clear(v.PID)
	case ServiceReload:
		e.handleServiceReload(v, now)
	}
}

func (e *Engine) handleServiceReload(ev ServiceReload, now time.Time) {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		ev.Reply <- err
		return
	}
	ev.Reply <- nil
	e.pendingConfig = cfg
	deadline := now.Add(cfg.General.ReloadDelay.Dur())
	e.whenReloadConfig = &deadline
}

// reconcile re-derives blocked/unblocked and lets Tabs/Processes act
// on the result (spec.md §4.6 step 5).
func (e *Engine) reconcile(now time.Time) {
	e.rules.Reload(now)
	e.permits.Reload(now)
	e.tabs.Rescan(e.rules.Blocked(), e.permits.Unblocked(), now)
	e.processes.Rescan(e.rules.Blocked(), e.permits.Unblocked(), now)

	if e.onReconcile != nil {
		e.onReconcile(e.Stats())
	}
}

// nextWake implements spec.md §4.6 step 7, the min-reducer over every
// manager's next-wake candidate plus the pending config-reload
// deadline.
func (e *Engine) nextWake(now time.Time) (time.Time, bool) {
	var candidates []time.Time

	if t, ok := e.rules.WhenReload(now); ok {
		candidates = append(candidates, t)
	}
	if t, ok := e.permits.WhenReload(); ok {
		candidates = append(candidates, t)
	}
	candidates = append(candidates, e.processes.WhenReload())
	if e.whenReloadConfig != nil {
		candidates = append(candidates, *e.whenReloadConfig)
	}

	if len(candidates) == 0 {
		return time.Time{}, false
	}
	return lo.MinBy(candidates, func(a, b time.Time) bool { return a.Before(b) }), true
}
