//go:build darwin

package netio

import "golang.org/x/sys/unix"

// Darwin lacks TCP_KEEPIDLE; TCP_KEEPALIVE plays the equivalent role.
func setKeepaliveIdle(fd, seconds int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, seconds)
}

// Darwin does not expose a per-socket keepalive interval/count knob
// equivalent to Linux's TCP_KEEPINTVL/TCP_KEEPCNT; best effort is a no-op,
// matching §4.B's "best effort across platforms" wording.
func setKeepaliveInterval(fd, seconds int) error { return nil }

func setKeepaliveCount(fd, count int) error { return nil }
