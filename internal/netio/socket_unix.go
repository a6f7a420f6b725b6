//go:build unix

package netio

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// applyTCPOptions sets keepalive and (optionally) TCP_NODELAY on a TCP
// connection using golang.org/x/sys/unix, since net.TCPConn's own
// SetKeepAlive* methods do not expose interval/count on every platform the
// way the raw socket option does.
func (s *Socket) applyTCPOptions() error {
	if s.kind != TCPClient || s.conn == nil {
		return nil
	}
	tc, ok := s.conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	raw, err := tc.SyscallConn()
	if err != nil {
		return mxerr.Wrap("netio", mxerr.NetworkIO, "SyscallConn", err)
	}

	var ctlErr error
	err = raw.Control(func(fd uintptr) {
		ifd := int(fd)

		if serr := unix.SetsockoptInt(ifd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); serr != nil {
			ctlErr = serr
			return
		}
		if idle := int(s.keepalive.Idle.Seconds()); idle > 0 {
			_ = setKeepaliveIdle(ifd, idle)
		}
		if iv := int(s.keepalive.Interval.Seconds()); iv > 0 {
			_ = setKeepaliveInterval(ifd, iv)
		}
		if s.keepalive.Count > 0 {
			_ = setKeepaliveCount(ifd, s.keepalive.Count)
		}
		if s.noDelay {
			_ = unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		}
	})
	if err != nil {
		return mxerr.Wrap("netio", mxerr.NetworkIO, "socket option control", err)
	}
	if ctlErr != nil {
		// Keepalive/Nagle tuning is best-effort across platforms (§4.B).
		return nil
	}
	return nil
}

// awaitReadable blocks until fd becomes readable or timeout elapses, using
// unix.Select as the multiplexed-wait primitive of §4.B step 2. A
// zero-or-negative timeout means "infinite". EINTR is retried without
// consuming the caller's timeout budget.
func awaitReadable(fd int, timeout time.Duration) (ready bool, err error) {
	var tv *unix.Timeval
	deadline := time.Time{}
	infinite := timeout <= 0
	if !infinite {
		deadline = time.Now().Add(timeout)
	}

	for {
		var remaining time.Duration
		if infinite {
			tv = nil
		} else {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
			t := unix.NsecToTimeval(remaining.Nanoseconds())
			tv = &t
		}

		var rfds unix.FdSet
		rfds.Set(fd)

		n, serr := unix.Select(fd+1, &rfds, nil, nil, tv)
		if serr == unix.EINTR {
			continue // retry without consuming the timeout budget further than elapsed
		}
		if serr != nil {
			return false, mxerr.Wrap("netio", mxerr.NetworkIO, "select", serr)
		}
		return n > 0, nil
	}
}

// syscallConner is satisfied by *net.TCPConn and *net.UnixConn.
type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

// fdOf extracts the raw file descriptor behind conn, for use with
// awaitReadable. Returns ok=false for connection types that do not expose
// one (should not happen for TCP/Unix conns on unix platforms).
func fdOf(conn net.Conn) (fd int, ok bool) {
	sc, isSC := conn.(syscallConner)
	if !isSC {
		return 0, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var captured int
	err = raw.Control(func(f uintptr) { captured = int(f) })
	if err != nil {
		return 0, false
	}
	return captured, true
}
