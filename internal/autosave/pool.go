package autosave

import (
	"sync"

	"github.com/nbeaver/mxautosave/internal/rpc"
)

// ClientPool hands out one shared *rpc.Client per remote address, so
// multiple entries targeting the same MX server share a connection
// (§4.G "server record").
type ClientPool struct {
	mu      sync.Mutex
	clients map[string]*rpc.Client
	opts    []rpc.Option
}

// NewClientPool returns an empty pool; opts are applied to every Client it
// dials.
func NewClientPool(opts ...rpc.Option) *ClientPool {
	return &ClientPool{clients: make(map[string]*rpc.Client), opts: opts}
}

// Get returns the shared Client for addr, dialing it on first use.
func (p *ClientPool) Get(addr string) (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[addr]; ok {
		return c, nil
	}
	c, err := rpc.Dial(addr, p.opts...)
	if err != nil {
		return nil, err
	}
	p.clients[addr] = c
	return c, nil
}

// CloseAll closes every dialed connection. All connections are attempted
// regardless of earlier failures; only the first error is returned.
func (p *ClientPool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.clients, addr)
	}
	return firstErr
}
