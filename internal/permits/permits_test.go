package permits

import (
	"errors"
	"testing"
	"time"

	"github.com/vaxtify/vaxtifyd/internal/config"
	"github.com/vaxtify/vaxtifyd/internal/lookups"
	"github.com/vaxtify/vaxtifyd/internal/vaxlog"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 8, 1, hour, min, 0, 0, time.Local)
}

func newLookups(t *testing.T, cfg *config.Config) *lookups.Lookups {
	t.Helper()
	l, err := lookups.New(cfg)
	if err != nil {
		t.Fatalf("lookups.New failed: %v", err)
	}
	return l
}

func simpleConfig(permitName string, permit config.Permit) *config.Config {
	return &config.Config{
		Category: map[string]config.Category{"fun": {}},
		Permit:   map[string]config.Permit{permitName: permit},
	}
}

func TestActivateUnknownPermit(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{Categories: []string{"fun"}}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	err := m.Activate("nope", at(0, 0))
	if !errors.Is(err, ErrPermitDoesNotExist) {
		t.Fatalf("expected ErrPermitDoesNotExist, got %v", err)
	}
}

func TestActivateUnblocksCategory(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{Length: config.Duration{Mins: 5}, Categories: []string{"fun"}}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())
	funID, _ := l.Category.ID("fun")

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	m.Reload(at(0, 1))
	if !m.Unblocked().Contains(funID) {
		t.Fatalf("expected fun category to be unblocked while permit active")
	}
}

// P4: a permit's expires is either absent or strictly greater than the
// now observed at the most recent reload.
func TestExpiryClearedOnceElapsed(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{Length: config.Duration{Mins: 5}, Categories: []string{"fun"}}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())
	funID, _ := l.Category.ID("fun")

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	m.Reload(at(0, 5))
	if m.Unblocked().Contains(funID) {
		t.Fatalf("expected permit to have expired by t=5m")
	}
}

// S2: permit unblocks temporarily.
func TestPermitUnblocksThenExpires(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{Length: config.Duration{Mins: 5}, Categories: []string{"fun"}}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())
	funID, _ := l.Category.ID("fun")

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	m.Reload(at(0, 1))
	if !m.Unblocked().Contains(funID) {
		t.Fatalf("expected unblocked right after activation")
	}
	m.Reload(at(0, 6))
	if m.Unblocked().Contains(funID) {
		t.Fatalf("expected blocked again after expiry")
	}
}

// S3: cooldown refusal and eventual success.
func TestCooldownNotFinishedThenSucceeds(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{
		Length:   config.Duration{Mins: 5},
		Cooldown: &config.Duration{Hours: 1},
		Categories: []string{"fun"},
	}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := m.Deactivate("p"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	err := m.Activate("p", at(0, 30))
	var cooldown *CooldownNotFinishedError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected CooldownNotFinishedError at t=30m, got %v", err)
	}
	if cooldown.Left <= 0 || cooldown.Left > time.Hour {
		t.Errorf("unexpected cooldown remaining: %v", cooldown.Left)
	}

	if err := m.Activate("p", at(1, 0).Add(time.Second)); err != nil {
		t.Fatalf("expected activation to succeed once cooldown elapses, got %v", err)
	}
}

func TestExtensionRefusedWhileActiveAndCoolingDown(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{
		Length:     config.Duration{Mins: 5},
		Cooldown:   &config.Duration{Hours: 1},
		Categories: []string{"fun"},
	}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	// Still active (expires at 0:05); try to extend at 0:01.
	err := m.Activate("p", at(0, 1))
	var extension *PermitExtensionRefusedError
	if !errors.As(err, &extension) {
		t.Fatalf("expected PermitExtensionRefusedError, got %v", err)
	}
}

// R3: activating then deactivating restores last_active (not reset)
// and clears expires.
func TestDeactivatePreservesLastActive(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{Length: config.Duration{Mins: 5}, Categories: []string{"fun"}}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := m.Deactivate("p"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	id, _ := l.Permit.ID("p")
	if m.state[id].expires != nil {
		t.Errorf("expected expires to be cleared after deactivation")
	}
	if m.state[id].lastActive == nil || !m.state[id].lastActive.Equal(at(0, 0)) {
		t.Errorf("expected last_active to remain at activation time")
	}
}

func TestDeactivateNotActive(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{Categories: []string{"fun"}}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	if err := m.Deactivate("p"); !errors.Is(err, ErrPermitIsNotActive) {
		t.Fatalf("expected ErrPermitIsNotActive, got %v", err)
	}
}

func TestAvailableBadTime(t *testing.T) {
	l := newLookups(t, simpleConfig("p", config.Permit{
		Length:     config.Duration{Mins: 5},
		Available:  &config.Window{Since: config.TimeOfDay{Hour: 9}, Until: config.TimeOfDay{Hour: 17}},
		Categories: []string{"fun"},
	}))
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	err := m.Activate("p", at(20, 0))
	var badTime *AvailableBadTimeError
	if !errors.As(err, &badTime) {
		t.Fatalf("expected AvailableBadTimeError, got %v", err)
	}

	if err := m.Activate("p", at(10, 0)); err != nil {
		t.Fatalf("expected activation to succeed inside the available window, got %v", err)
	}
}

// B3: restart cooldown of 0 is equivalent to "satisfied immediately".
func TestCooldownAfterRestartZeroIsImmediate(t *testing.T) {
	cfg := simpleConfig("p", config.Permit{Length: config.Duration{Mins: 5}, Categories: []string{"fun"}})
	l := newLookups(t, cfg)
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("expected immediate activation with zero restart cooldown, got %v", err)
	}
}

func TestCooldownAfterRestartBlocksUntilElapsed(t *testing.T) {
	cfg := simpleConfig("p", config.Permit{Length: config.Duration{Mins: 5}, Categories: []string{"fun"}})
	cfg.After.Restart.BlockPermits = config.Duration{Mins: 10}
	l := newLookups(t, cfg)
	start := at(9, 0)
	m := New(l, start, start, nil, vaxlog.Noop())

	err := m.Activate("p", start.Add(time.Minute))
	var afterRestart *CooldownAfterRestartError
	if !errors.As(err, &afterRestart) {
		t.Fatalf("expected CooldownAfterRestartError, got %v", err)
	}

	if err := m.Activate("p", start.Add(10*time.Minute)); err != nil {
		t.Fatalf("expected activation to succeed once restart cooldown elapses, got %v", err)
	}
}

func TestSnapshotRoundTripsAcrossReload(t *testing.T) {
	cfg := simpleConfig("p", config.Permit{Length: config.Duration{Mins: 10}, Categories: []string{"fun"}})
	l := newLookups(t, cfg)
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())

	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	snap := m.Snapshot()
	l2 := newLookups(t, cfg)
	m2 := New(l2, at(0, 0), at(0, 2), snap, vaxlog.Noop())
	funID, _ := l2.Category.ID("fun")

	m2.Reload(at(0, 5))
	if !m2.Unblocked().Contains(funID) {
		t.Fatalf("expected restored permit to still be active after reload")
	}
}

func TestSnapshotDropsRemovedPermit(t *testing.T) {
	cfg := simpleConfig("p", config.Permit{Length: config.Duration{Mins: 10}, Categories: []string{"fun"}})
	l := newLookups(t, cfg)
	m := New(l, at(0, 0), at(0, 0), nil, vaxlog.Noop())
	if err := m.Activate("p", at(0, 0)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	snap := m.Snapshot()

	cfgWithout := &config.Config{Category: map[string]config.Category{"fun": {}}, Permit: map[string]config.Permit{}}
	l2 := newLookups(t, cfgWithout)
	m2 := New(l2, at(0, 0), at(0, 2), snap, vaxlog.Noop())
	if _, ok := m2.WhenReload(); ok {
		t.Fatalf("expected no active permits once the permit is removed from config")
	}
}
