// Package clock provides the monotonic tick source and sub-second sleeps
// used for poll/save scheduling (§4.A). Tick wraps time.Time's monotonic
// reading; arithmetic on it saturates rather than wrapping into the past.
package clock

import "time"

// Tick is an opaque monotonic instant. The zero Tick is the earliest
// representable instant and compares less than any Tick obtained from Now.
type Tick struct {
	t time.Time
}

// Clock is the interface components depend on, so tests can substitute a
// fake without real sleeps. The real implementation is Real{}.
type Clock interface {
	Now() Tick
	Sleep(d time.Duration)
}

// Real is the production Clock backed by the OS monotonic clock.
type Real struct{}

// Now returns the current monotonic Tick.
func (Real) Now() Tick { return Tick{t: time.Now()} }

// Sleep blocks for at least d.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// TicksPerSecond reports the nominal resolution components should assume
// when deciding how finely to schedule polls; MX only requires >=100 Hz.
func TicksPerSecond() float64 { return 1000.0 }

// Add returns t advanced by d, saturating at the maximum representable Tick
// rather than overflowing.
func Add(t Tick, d time.Duration) Tick {
	if d < 0 && t.t.IsZero() {
		return t
	}
	sum := t.t.Add(d)
	if sum.Before(t.t) && d > 0 {
		// time.Time.Add does not overflow in practice on any supported
		// platform, but keep the contract explicit: never move backwards
		// when advancing forward.
		return Tick{t: time.Unix(1<<62, 0)}
	}
	return Tick{t: sum}
}

// SecondsToTick converts a floating-point second count to a Tick measured
// from the Unix epoch, for use in tests that want a comparable Tick without
// calling Now.
func SecondsToTick(seconds float64) Tick {
	return Tick{t: time.Unix(0, int64(seconds*float64(time.Second)))}
}

// Cmp returns -1, 0, or 1 as a is before, equal to, or after b.
func Cmp(a, b Tick) int {
	switch {
	case a.t.Before(b.t):
		return -1
	case a.t.After(b.t):
		return 1
	default:
		return 0
	}
}

// After reports whether a is strictly after b; a thin, readable wrapper
// used throughout the poll engine's "t > next_*" comparisons.
func After(a, b Tick) bool { return a.t.After(b.t) }

// SleepMS sleeps for the given number of milliseconds.
func SleepMS(c Clock, ms uint32) { c.Sleep(time.Duration(ms) * time.Millisecond) }

// SleepUS sleeps for the given number of microseconds.
func SleepUS(c Clock, us uint32) { c.Sleep(time.Duration(us) * time.Microsecond) }
