//go:build linux

package webext

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerPID reads the connecting process's pid off a Unix domain socket
// via SO_PEERCRED, promoting golang.org/x/sys/unix from an indirect
// dependency (pulled in by x/term) to direct use here. Each browser
// instance's native-messaging host holds one connection for its
// lifetime, so its pid doubles as the tab Key's browser identity
// (spec.md §3).
func peerPID(conn *net.UnixConn) (uint32, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("syscall conn: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return 0, err
	}
	if credErr != nil {
		return 0, fmt.Errorf("getsockopt SO_PEERCRED: %w", credErr)
	}
	return uint32(cred.Pid), nil
}
