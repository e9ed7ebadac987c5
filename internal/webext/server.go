package webext

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/engine"
	"github.com/vaxtify/vaxtifyd/internal/tabs"
)

const maxPayloadBytes = 1 << 20

// Server accepts connections from browser native-messaging hosts and
// translates their framed JSON payloads into engine.Event values.
type Server struct {
	listener *net.UnixListener
	events   chan<- engine.Event
	log      *zap.SugaredLogger
}

// Listen binds a Unix domain socket at path, removing any stale
// socket file left behind by a previous run (spec.md §6).
func Listen(path string, events chan<- engine.Event, log *zap.SugaredLogger) (*Server, error) {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	return &Server{listener: l, events: events, log: log}, nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Run accepts connections until the listener is closed, handling each
// one on its own goroutine.
func (s *Server) Run() error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handle(conn)
	}
}

// handle services one browser connection for its lifetime, emitting
// TabUpdate/TabDelete events as framed payloads arrive and an implicit
// TabDeleteAll(pid) when the connection drops (spec.md §7.3).
func (s *Server) handle(conn *net.UnixConn) {
	defer conn.Close()

	pid, err := peerPID(conn)
	if err != nil {
		s.log.Warnf("webext: rejecting connection, could not resolve peer pid: %v", err)
		return
	}
	defer func() {
		s.events <- engine.TabDeleteAll{PID: pid}
	}()

	for {
		payload, err := readPayload(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debugf("webext: connection from pid %d closed: %v", pid, err)
			}
			return
		}
		if ev, ok := toEvent(pid, payload); ok {
			s.events <- ev
		}
	}
}

func readPayload(r io.Reader) (Payload, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Payload{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxPayloadBytes {
		return Payload{}, fmt.Errorf("webext: payload of %d bytes exceeds limit", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Payload{}, err
	}

	var p Payload
	if err := json.Unmarshal(buf, &p); err != nil {
		return Payload{}, fmt.Errorf("webext: decode payload: %w", err)
	}
	return p, nil
}

// toEvent converts a decoded payload into the engine event it implies.
// Activated carries no state change the hard core tracks (spec.md §4.9
// note on read-only observers), so it is dropped.
func toEvent(pid uint32, p Payload) (engine.Event, bool) {
	key := tabs.Key{PID: pid, Tab: p.Tab}
	switch p.Kind {
	case KindCreated, KindUpdated:
		if p.URL == nil {
			return nil, false
		}
		u, err := url.Parse(*p.URL)
		if err != nil {
			return nil, false
		}
		return engine.TabUpdate{Key: key, URL: u}, true
	case KindRemoved:
		return engine.TabDelete{Key: key}, true
	default:
		return nil, false
	}
}
