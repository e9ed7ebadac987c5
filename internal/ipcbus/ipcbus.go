// Package ipcbus exposes the engine over a session-bus object
// (spec.md §6 "IPC (bus) surface") using github.com/godbus/dbus/v5,
// promoted here from an indirect dependency of the teacher's
// credential-storage layer to a direct one. It also implements
// engine.Commander by emitting the three outbound signals.
package ipcbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/engine"
	"github.com/vaxtify/vaxtifyd/internal/permits"
)

const (
	objectPath = dbus.ObjectPath("/dev/vaxtify/Daemon")
	ifaceName  = "dev.vaxtify.Daemon1"
)

// Server owns the dbus connection, exports the Daemon object, and
// forwards method calls onto the engine's event channel.
type Server struct {
	conn   *dbus.Conn
	events chan<- engine.Event
	log    *zap.SugaredLogger
	status *StatusCache
}

// New connects to the session bus, requests busName, and exports the
// Daemon object. events is the engine's inbound channel; the returned
// Server's methods push PermitRequest/PermitEnd/ServiceReload events
// and block for their one-shot reply, matching spec.md §4.6's
// "transport thread blocks on a reply" rule.
func New(busName string, events chan<- engine.Event, log *zap.SugaredLogger) (*Server, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	s := &Server{conn: conn, events: events, log: log}
	if err := conn.Export(s, objectPath, ifaceName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export daemon object: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request bus name %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already owned", busName)
	}

	return s, nil
}

// Close releases the bus connection.
func (s *Server) Close() error {
	return s.conn.Close()
}

// Run blocks until ctx is cancelled, then closes the bus connection.
// godbus dispatches exported methods on its own internal goroutines as
// soon as Export/RequestName succeed, so Run's only job is to tie the
// connection's lifetime to ctx the way the webext listener ties its
// accept loop to the same context.
func (s *Server) Run(ctx context.Context) error {
	<-ctx.Done()
	return s.Close()
}

// PermitStart implements the PermitStart(name) dbus method.
func (s *Server) PermitStart(name string) *dbus.Error {
	reply := make(chan error, 1)
	s.events <- engine.PermitRequest{Name: name, Reply: reply}
	if err := <-reply; err != nil {
		return dbus.MakeFailedError(fmt.Errorf("%s", permits.FormatError(err)))
	}
	return nil
}

// PermitEnd implements the PermitEnd(name) dbus method.
func (s *Server) PermitEnd(name string) *dbus.Error {
	reply := make(chan error, 1)
	s.events <- engine.PermitEnd{Name: name, Reply: reply}
	if err := <-reply; err != nil {
		return dbus.MakeFailedError(fmt.Errorf("%s", permits.FormatError(err)))
	}
	return nil
}

// ServiceReload implements the ServiceReload() dbus method.
func (s *Server) ServiceReload() *dbus.Error {
	reply := make(chan error, 1)
	s.events <- engine.ServiceReload{Reply: reply}
	if err := <-reply; err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// TabClose emits the TabClose(pid, tab) signal (engine.Commander /
// tabs.Commander).
func (s *Server) TabClose(pid uint32, tab int32) {
	s.emit("TabClose", pid, tab)
}

// TabCreateEmpty emits the TabCreateEmpty(pid) signal.
func (s *Server) TabCreateEmpty(pid uint32) {
	s.emit("TabCreateEmpty", pid)
}

// TabRefresh emits the TabRefresh() signal.
func (s *Server) TabRefresh() {
	s.emit("TabRefresh")
}

// Kill is engine.Commander's process.Commander half. The session bus
// has no native notion of process termination, so the implementation
// shells out directly rather than round-tripping through dbus.
func (s *Server) Kill(names []string) {
	for _, name := range names {
		if err := killByName(name); err != nil {
			s.log.Debugf("kill %s: %v", name, err)
		}
	}
}

func (s *Server) emit(member string, args ...interface{}) {
	if err := s.conn.Emit(objectPath, ifaceName+"."+member, args...); err != nil {
		s.log.Debugf("emit %s: %v", member, err)
	}
}
