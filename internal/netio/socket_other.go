//go:build !unix

package netio

import (
	"net"
	"time"
)

// applyTCPOptions is a no-op outside Unix: MX's beamline control processes
// run on Unix in practice (§6's syslog/SIGTERM/SIGSEGV handling is
// POSIX-only too), so non-Unix platforms get the portable net.Conn
// defaults without fine-grained keepalive/Nagle tuning.
func (s *Socket) applyTCPOptions() error { return nil }

// awaitReadable has no raw fd to poll outside Unix, so it reports readiness
// immediately and lets the subsequent Read's own deadline handle the real
// wait.
func awaitReadable(fd int, timeout time.Duration) (bool, error) {
	return true, nil
}

func fdOf(conn net.Conn) (int, bool) { return 0, false }
