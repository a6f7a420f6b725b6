//go:build unix && !linux && !darwin

package netio

// Other POSIX platforms (BSD variants, etc.) do not get fine-grained
// keepalive tuning from this package; SO_KEEPALIVE alone (set in
// applyTCPOptions) is still enabled. Best effort, per §4.B.
func setKeepaliveIdle(fd, seconds int) error     { return nil }
func setKeepaliveInterval(fd, seconds int) error { return nil }
func setKeepaliveCount(fd, count int) error      { return nil }
