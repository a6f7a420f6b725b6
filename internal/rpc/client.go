package rpc

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/netio"
	"github.com/nbeaver/mxautosave/internal/wire"
)

// DebugLevel selects the network-debug verbosity tiers recovered from the
// original's "-a"/"-A" flags (SPEC_FULL.md "Supplemented features" #3).
type DebugLevel int

const (
	DebugOff DebugLevel = iota
	DebugSummary
	DebugVerbose
)

// DefaultTimeout bounds a single request/response round trip when no
// per-call context deadline is set.
const DefaultTimeout = 10 * time.Second

// Client is a connection to one remote MX server record (§4.G "server
// record"). One Client serialises requests onto a single TCP connection
// and bounds in-flight concurrency with a semaphore, following
// internal/transport/grpc_client.go's reconnect-and-call shape.
type Client struct {
	conn    *netio.Socket
	codec   *wire.Codec
	logger  *slog.Logger
	debug   DebugLevel
	timeout time.Duration
	sem     *semaphore.Weighted

	mu sync.Mutex
}

// Option configures a Client at Dial time.
type Option func(*Client)

// WithCodec overrides the default wire.Codec (e.g. to set display precision).
func WithCodec(c *wire.Codec) Option { return func(cl *Client) { cl.codec = c } }

// WithLogger overrides the client's logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(cl *Client) { cl.logger = l } }

// WithDebugLevel sets the network-debug verbosity tier.
func WithDebugLevel(level DebugLevel) Option { return func(cl *Client) { cl.debug = level } }

// WithTimeout overrides DefaultTimeout for every call made without an
// explicit context deadline.
func WithTimeout(d time.Duration) Option { return func(cl *Client) { cl.timeout = d } }

// WithConcurrency bounds the number of in-flight requests permitted on
// this Client; default 1 (fully serialised, matching a single TCP stream
// with no request pipelining).
func WithConcurrency(n int64) Option {
	return func(cl *Client) { cl.sem = semaphore.NewWeighted(n) }
}

// Dial opens a TCP connection to addr and wraps it as a Client.
func Dial(addr string, opts ...Option) (*Client, error) {
	sock, err := netio.DialTCP(addr, netio.WithNoDelay(), netio.WithKeepalive(netio.DefaultKeepalive))
	if err != nil {
		return nil, err
	}
	return newClient(sock, opts...), nil
}

func newClient(sock *netio.Socket, opts ...Option) *Client {
	c := &Client{
		conn:    sock,
		codec:   wire.NewCodec(),
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		sem:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// call performs one request/response round trip, bounding concurrency via
// the semaphore and serialising wire access via mu (a single TCP stream
// carries at most one outstanding request at a time in this
// implementation; WithConcurrency bounds how many callers of this Client
// may wait for the stream at once, not pipelining within it).
func (c *Client) call(ctx context.Context, op Opcode, fieldID string, payload []byte) (*response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, mxerr.Wrap("rpc", mxerr.Timeout, "waiting for an available request slot", err)
	}
	defer c.sem.Release(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New()
	if c.debug >= DebugSummary {
		c.logger.Debug("rpc request", slog.String("op", opName(op)), slog.String("field_id", fieldID), slog.String("request_id", id.String()))
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}

	if err := writeRequest(c.conn, id, op, fieldID, payload); err != nil {
		return nil, err
	}

	resp, err := readResponse(c.conn, timeout)
	if err != nil {
		return nil, err
	}
	if resp.id != id {
		return nil, mxerr.Newf("rpc", mxerr.CorruptDataStructure,
			"response request id %s does not match outstanding request %s", resp.id, id)
	}

	if c.debug >= DebugVerbose {
		c.logger.Debug("rpc response", slog.String("request_id", id.String()), slog.String("status", resp.status.String()), slog.Int("payload_len", len(resp.payload)))
	}

	if resp.status != mxerr.Unknown {
		return nil, mxerr.New("rpc", resp.status, resp.message)
	}
	return resp, nil
}

func opName(op Opcode) string {
	switch op {
	case OpGetFieldType:
		return "get_field_type"
	case OpGetValue:
		return "get_value"
	case OpPutValue:
		return "put_value"
	default:
		return "unknown"
	}
}

// GetFieldType fetches the remote field's datatype and dimensions (§4.G
// "get_field_type"). The wire payload is "<datatype> <dim0> <dim1> …".
func (c *Client) GetFieldType(ctx context.Context, fieldID string) (wire.Datatype, []int, error) {
	resp, err := c.call(ctx, OpGetFieldType, fieldID, nil)
	if err != nil {
		return 0, nil, err
	}
	fields := strings.Fields(string(resp.payload))
	if len(fields) == 0 {
		return 0, nil, mxerr.New("rpc", mxerr.CorruptDataStructure, "get_field_type response had no datatype token")
	}
	dt, err := wire.ParseDatatype(fields[0])
	if err != nil {
		return 0, nil, err
	}
	dims := make([]int, 0, len(fields)-1)
	for _, tok := range fields[1:] {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, nil, mxerr.Wrapf("rpc", mxerr.CorruptDataStructure, err, "parsing dimension token %q", tok)
		}
		dims = append(dims, n)
	}
	return dt, dims, nil
}

// GetValue fetches the remote field's current value, decoded via codec
// into the given shape (§4.G "get_value").
func (c *Client) GetValue(ctx context.Context, fieldID string, dt wire.Datatype, dims []int, maxStringLen int) (*wire.Value, error) {
	resp, err := c.call(ctx, OpGetValue, fieldID, nil)
	if err != nil {
		return nil, err
	}
	sc := wire.NewScanner(string(resp.payload))
	return c.codec.DecodeValue(sc, dt, dims, maxStringLen)
}

// PutValue pushes a local value to the remote field (§4.G "put_value").
func (c *Client) PutValue(ctx context.Context, fieldID string, v *wire.Value) error {
	tokens, err := c.codec.EncodeValue(v)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, OpPutValue, fieldID, []byte(tokens))
	return err
}
