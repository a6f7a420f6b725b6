// Package netio implements the socket and ring-buffer transport layer of
// §4.B: capability-typed sockets (TCP/Unix, client/server) with keepalive,
// Nagle control, non-blocking semantics, terminator-aware framed receive,
// and a per-connection RingBuffer. golang.org/x/sys/unix supplies the raw
// socket-option and select(2) calls the stdlib net package does not expose
// directly — grounded on the pack's ehrlich-b-go-ublk, which reaches for
// the same package whenever it needs to touch a raw fd.
package netio

import (
	"bytes"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// Kind is the capability-typed socket classification of §4.B.
type Kind int

const (
	TCPClient Kind = iota
	TCPServer
	UnixClient
	UnixServer
)

func (k Kind) String() string {
	switch k {
	case TCPClient:
		return "tcp_client"
	case TCPServer:
		return "tcp_server"
	case UnixClient:
		return "unix_client"
	case UnixServer:
		return "unix_server"
	default:
		return "unknown"
	}
}

// KeepaliveParams are the best-effort TCP keepalive tunables of §4.B.
// Unix values are in seconds; not all platforms honour Interval/Count.
type KeepaliveParams struct {
	Idle     time.Duration
	Interval time.Duration
	Count    int
}

// DefaultKeepalive matches typical MX server defaults.
var DefaultKeepalive = KeepaliveParams{
	Idle:     60 * time.Second,
	Interval: 10 * time.Second,
	Count:    6,
}

// Socket wraps a net.Conn (client sockets) or net.Listener (server
// sockets) with MX's framed-receive discipline and an optional attached
// RingBuffer.
type Socket struct {
	kind Kind

	conn net.Conn
	ln   net.Listener

	ring        *RingBuffer
	nonBlocking bool
	noDelay     bool
	keepalive   KeepaliveParams
}

// Option configures a Socket at open time.
type Option func(*Socket)

// WithRingBuffer attaches a RingBuffer of the given capacity to the socket.
func WithRingBuffer(capacity int) Option {
	return func(s *Socket) { s.ring = NewRingBuffer(capacity) }
}

// WithNoDelay disables Nagle's algorithm on a TCP socket.
func WithNoDelay() Option {
	return func(s *Socket) { s.noDelay = true }
}

// WithKeepalive overrides the default keepalive parameters.
func WithKeepalive(p KeepaliveParams) Option {
	return func(s *Socket) { s.keepalive = p }
}

// DialTCP opens a TCPClient socket to addr.
func DialTCP(addr string, opts ...Option) (*Socket, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, classifyDialError("netio", err)
	}
	s := newSocket(TCPClient, conn, nil, opts...)
	if err := s.applyTCPOptions(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// DialUnix opens a UnixClient socket to the Unix-domain socket at path.
func DialUnix(path string, opts ...Option) (*Socket, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, classifyDialError("netio", err)
	}
	return newSocket(UnixClient, conn, nil, opts...), nil
}

// ListenTCP opens a TCPServer socket listening on addr.
func ListenTCP(addr string, opts ...Option) (*Socket, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, mxerr.Wrap("netio", mxerr.NetworkIO, "listen tcp", err)
	}
	return newSocket(TCPServer, nil, ln, opts...), nil
}

// ListenUnix opens a UnixServer socket listening on the Unix-domain socket
// at path.
func ListenUnix(path string, opts ...Option) (*Socket, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, mxerr.Wrap("netio", mxerr.NetworkIO, "listen unix", err)
	}
	return newSocket(UnixServer, nil, ln, opts...), nil
}

func newSocket(kind Kind, conn net.Conn, ln net.Listener, opts ...Option) *Socket {
	s := &Socket{kind: kind, conn: conn, ln: ln, keepalive: DefaultKeepalive}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accept accepts one pending connection on a server socket, returning a new
// client-kind Socket (TCPClient for a TCPServer listener, UnixClient for a
// UnixServer listener) sharing this socket's options.
func (s *Socket) Accept(opts ...Option) (*Socket, error) {
	if s.ln == nil {
		return nil, mxerr.New("netio", mxerr.IllegalArgument, "Accept called on a non-server socket")
	}
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, mxerr.Wrap("netio", mxerr.NetworkIO, "accept", err)
	}
	childKind := TCPClient
	if s.kind == UnixServer {
		childKind = UnixClient
	}
	child := newSocket(childKind, conn, nil, opts...)
	child.keepalive = s.keepalive
	child.noDelay = s.noDelay
	if err := child.applyTCPOptions(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return child, nil
}

// Kind reports the socket's capability classification.
func (s *Socket) Kind() Kind { return s.kind }

// Addr returns the local listen address of a server socket, or the remote
// peer address of a connection socket.
func (s *Socket) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	if s.conn != nil {
		return s.conn.RemoteAddr().String()
	}
	return ""
}

// SetNonBlocking records the socket's non-blocking semantics: when true,
// Receive returns as soon as it has read any bytes instead of waiting for
// dst to fill or a terminator to arrive. It still waits up to its timeout
// for the first bytes; it does not return immediately when no data is
// already available. Go's
// runtime netpoller already multiplexes the underlying fd non-blockingly;
// this flag governs only Receive's waiting behaviour at the MX API level.
func (s *Socket) SetNonBlocking(nonBlocking bool) { s.nonBlocking = nonBlocking }

// IsOpen is a cheap, non-destructive liveness check (§4.B "Introspection").
func (s *Socket) IsOpen() bool {
	return s.conn != nil || s.ln != nil
}

// NumInputBytesAvailable is a best-effort count of bytes already buffered
// and ready to read: data sitting in the attached RingBuffer.  It does not
// attempt to read the OS socket buffer's depth, which is not portably
// queryable without raw ioctl(FIONREAD) support per-platform.
func (s *Socket) NumInputBytesAvailable() uint64 {
	if s.ring == nil {
		return 0
	}
	return s.ring.Available()
}

// NumOutputBytesInTransit is best-effort and always 0 in this
// implementation: Go's net package does not expose the OS socket send
// queue depth portably. Exposed for API parity with §4.B.
func (s *Socket) NumOutputBytesInTransit() uint64 { return 0 }

// Send loops on partial writes until all of src is sent or a
// classification error occurs (§4.B "Write discipline").
func (s *Socket) Send(src []byte) (int, error) {
	if s.conn == nil {
		return 0, mxerr.New("netio", mxerr.IllegalArgument, "Send called on a non-connection socket")
	}
	total := 0
	for total < len(src) {
		n, err := s.conn.Write(src[total:])
		total += n
		if err != nil {
			return total, classifyIOError("netio", err)
		}
	}
	return total, nil
}

// Close implements §4.B's close sequence: half-shutdown the write side,
// drain reads until EOF or would-block, then close. It tolerates the peer
// having already closed.
func (s *Socket) Close() error {
	defer func() {
		if s.ring != nil {
			s.ring.Destroy()
		}
	}()

	if s.ln != nil {
		err := s.ln.Close()
		s.ln = nil
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return mxerr.Wrap("netio", mxerr.NetworkIO, "close listener", err)
		}
		return nil
	}

	if s.conn == nil {
		return nil
	}

	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite() // best effort; peer may already be gone
	}

	drain := make([]byte, 4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	for {
		_, err := s.conn.Read(drain)
		if err != nil {
			break // EOF, timeout ("would block"), or any other terminal condition
		}
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return mxerr.Wrap("netio", mxerr.NetworkIO, "close connection", err)
	}
	return nil
}

// classifyDialError maps a failed connection attempt to ConnectionRefused
// when the OS reports one, else NetworkIO.
func classifyDialError(component string, err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return mxerr.Wrap(component, mxerr.ConnectionRefused, "connection refused", err).Quiet()
	}
	return mxerr.Wrap(component, mxerr.NetworkIO, "dial failed", err)
}

// classifyIOError maps read/write errors to ConnectionLost for the
// socket-death errno family of §4.B, else NetworkIO.
func classifyIOError(component string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return mxerr.Wrap(component, mxerr.ConnectionLost, "connection closed by peer", err).Quiet()
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return mxerr.Wrap(component, mxerr.ConnectionLost, "connection lost", err).Quiet()
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return mxerr.Wrap(component, mxerr.Timeout, "i/o timeout", err).Quiet()
	}
	return mxerr.Wrap(component, mxerr.NetworkIO, "network i/o error", err)
}

// scanTerminator finds the earliest occurrence of any terminator in terms
// within buf. cut is the index of the terminator's first byte (the payload
// boundary); end is the index just past it (where any trailing bytes
// begin). found is false if no terminator occurs in buf.
func scanTerminator(buf []byte, terms [][]byte) (cut int, end int, found bool) {
	bestStart, bestEnd := -1, -1
	for _, term := range terms {
		if len(term) == 0 {
			continue
		}
		if idx := bytes.Index(buf, term); idx >= 0 {
			if bestStart == -1 || idx < bestStart {
				bestStart = idx
				bestEnd = idx + len(term)
			}
		}
	}
	if bestStart == -1 {
		return -1, -1, false
	}
	return bestStart, bestEnd, true
}
