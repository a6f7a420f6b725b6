package netio

import (
	"time"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// Receive implements the core read primitive of §4.B:
//
//  1. Drain bytes from the attached RingBuffer first.
//  2. If more bytes are needed, wait up to timeout for readability; on
//     timeout, return a quietable Timeout. EINTR is retried without
//     consuming the timeout budget.
//  3. recv more bytes into dst, up to the remaining count.
//  4. If terminators is non-empty, scan the accumulated bytes for any
//     terminator. On a match, return the bytes up to (not including) the
//     terminator and stash any trailing bytes back into the RingBuffer (or
//     error if there is no RingBuffer to stash them in).
//  5. Otherwise return once dst fills.
//
// timeout <= 0 means wait indefinitely. Returns the bytes read (n <=
// len(dst)) and, when terminators matched, the byte offset in dst where
// the terminator began via termEnd (equal to n, since the terminator is
// not counted in n; -1 if no terminator matched, i.e. the buffer simply
// filled).
func (s *Socket) Receive(dst []byte, terminators [][]byte, timeout time.Duration) (n int, termEnd int, err error) {
	if s.conn == nil {
		return 0, -1, mxerr.New("netio", mxerr.IllegalArgument, "Receive called on a non-connection socket")
	}

	filled := 0

	// Step 1: drain the ring buffer first.
	if s.ring != nil && s.ring.Available() > 0 {
		filled += s.ring.Read(dst[filled:])
		if len(terminators) > 0 {
			if cut, end, ok := scanTerminator(dst[:filled], terminators); ok {
				return s.finishWithTerminator(dst, filled, cut, end)
			}
		}
	}

	deadline := time.Time{}
	infinite := timeout <= 0
	if !infinite {
		deadline = time.Now().Add(timeout)
	}

	for filled < len(dst) {
		if s.nonBlocking && filled > 0 {
			break
		}

		remaining := time.Duration(0)
		if !infinite {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				if filled == 0 {
					return 0, -1, mxerr.New("netio", mxerr.Timeout, "receive timed out").Quiet()
				}
				break
			}
		}

		if fd, ok := fdOf(s.conn); ok {
			ready, werr := awaitReadable(fd, remaining)
			if werr != nil {
				return filled, -1, werr
			}
			if !ready {
				if filled == 0 {
					return 0, -1, mxerr.New("netio", mxerr.Timeout, "receive timed out").Quiet()
				}
				break
			}
		}

		if !infinite {
			_ = s.conn.SetReadDeadline(deadline)
		} else {
			_ = s.conn.SetReadDeadline(time.Time{})
		}

		n, rerr := s.conn.Read(dst[filled:])
		filled += n
		if rerr != nil {
			if filled == 0 {
				return 0, -1, classifyIOError("netio", rerr)
			}
			// Partial read followed by an error: surface what we have; the
			// caller will see the error on its next call.
			break
		}

		if len(terminators) > 0 {
			if cut, end, ok := scanTerminator(dst[:filled], terminators); ok {
				return s.finishWithTerminator(dst, filled, cut, end)
			}
		} else if s.nonBlocking {
			break
		}
	}

	if len(terminators) > 0 {
		if cut, end, ok := scanTerminator(dst[:filled], terminators); ok {
			return s.finishWithTerminator(dst, filled, cut, end)
		}
	}
	return filled, -1, nil
}

// finishWithTerminator handles step 4: the payload is dst[:cut] (the
// terminator excluded); any bytes past end (the terminator's trailing edge)
// are stashed back into the ring buffer, or reported as an error if there
// is nowhere to put them.
func (s *Socket) finishWithTerminator(dst []byte, filled, cut, end int) (int, int, error) {
	if end < filled {
		trailing := dst[end:filled]
		if s.ring == nil {
			return cut, cut, mxerr.New("netio", mxerr.CorruptDataStructure,
				"terminator found mid-buffer but no ring buffer is attached to stash trailing bytes")
		}
		if n := s.ring.Write(trailing); n < len(trailing) {
			return cut, cut, mxerr.New("netio", mxerr.CorruptDataStructure,
				"ring buffer overflowed while stashing trailing bytes after terminator")
		}
	}
	return cut, cut, nil
}
