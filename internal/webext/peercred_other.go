//go:build !linux

package webext

import (
	"errors"
	"net"
)

// peerPID has no portable implementation outside Linux's SO_PEERCRED;
// the daemon is Linux-only (it also depends on a session dbus and
// browser-local Unix sockets), so non-Linux builds fail loudly at
// connection time instead of silently misattributing tabs.
func peerPID(conn *net.UnixConn) (uint32, error) {
	return 0, errors.New("webext: peer pid resolution requires linux")
}
