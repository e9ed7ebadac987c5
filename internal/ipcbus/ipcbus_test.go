package ipcbus

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vaxtify/vaxtifyd/internal/engine"
	"github.com/vaxtify/vaxtifyd/internal/permits"
)

// newTestServer builds a Server around a fake event channel without
// touching the real session bus, exercising only the method-to-event
// translation and reply handling that PermitStart/PermitEnd/
// ServiceReload are responsible for.
func newTestServer(events chan engine.Event) *Server {
	return &Server{events: events}
}

func TestPermitStartForwardsRequestAndWaitsForReply(t *testing.T) {
	events := make(chan engine.Event, 1)
	s := newTestServer(events)

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		dbusErr := s.PermitStart("free-time")
		if dbusErr == nil {
			done <- result{nil}
			return
		}
		done <- result{errors.New(dbusErr.Error())}
	}()

	select {
	case ev := <-events:
		req, ok := ev.(engine.PermitRequest)
		if !ok || req.Name != "free-time" {
			t.Fatalf("expected a PermitRequest for free-time, got %#v", ev)
		}
		req.Reply <- nil
	case <-time.After(time.Second):
		t.Fatal("PermitStart did not forward an event in time")
	}

	if got := <-done; got.err != nil {
		t.Fatalf("expected nil error on success, got %v", got.err)
	}
}

func TestPermitStartFormatsDomainError(t *testing.T) {
	events := make(chan engine.Event, 1)
	s := newTestServer(events)

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		dbusErr := s.PermitStart("nope")
		if dbusErr == nil {
			done <- result{nil}
			return
		}
		done <- result{errors.New(dbusErr.Error())}
	}()

	ev := <-events
	req := ev.(engine.PermitRequest)
	req.Reply <- permits.ErrPermitDoesNotExist

	got := <-done
	if got.err == nil {
		t.Fatal("expected a formatted domain error")
	}
	if !strings.Contains(got.err.Error(), "PermitDoesNotExist") {
		t.Fatalf("expected formatted error to mention PermitDoesNotExist, got %q", got.err.Error())
	}
}

func TestServiceReloadForwardsConfigError(t *testing.T) {
	events := make(chan engine.Event, 1)
	s := newTestServer(events)

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		dbusErr := s.ServiceReload()
		if dbusErr == nil {
			done <- result{nil}
			return
		}
		done <- result{errors.New(dbusErr.Error())}
	}()

	ev := <-events
	req := ev.(engine.ServiceReload)
	req.Reply <- errors.New("boom")

	got := <-done
	if got.err == nil {
		t.Fatal("expected ServiceReload to surface the config error")
	}
}
