package transport

import "sync"

// Pool is a borrow/return pool of transports made by one factory, for
// callers that run many goroutines each needing its own synchronous
// connection. A buffered channel serves as the FIFO: it is
// goroutine-safe and blocking-on-empty for free.
type Pool struct {
	mu       sync.Mutex
	idle     chan *TCPTransport
	maxConns int
	curConns int
	factory  func() (*TCPTransport, error)
}

// NewPool creates a pool bounded at maxConns. Connections are created
// lazily by factory as demand grows.
func NewPool(maxConns int, factory func() (*TCPTransport, error)) *Pool {
	return &Pool{
		idle:     make(chan *TCPTransport, maxConns),
		maxConns: maxConns,
		factory:  factory,
	}
}

// Get borrows a transport: an idle one if available, a fresh one while
// under the limit, otherwise it blocks until somebody returns one.
func (p *Pool) Get() (*TCPTransport, error) {
	select {
	case t := <-p.idle:
		return t, nil
	default:
		if t, ok, err := p.tryCreate(); ok {
			return t, err
		}
		return <-p.idle, nil
	}
}

// Put returns a transport. Pass broken=true when the connection
// errored; it is closed and its slot freed instead of being reused.
func (p *Pool) Put(t *TCPTransport, broken bool) {
	if broken {
		t.Close()
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	p.idle <- t
}

// Close shuts down the pool and every idle transport. Borrowed
// transports are the borrower's to close.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.idle)
	for t := range p.idle {
		t.Close()
		p.curConns--
	}
	return nil
}

func (p *Pool) tryCreate() (*TCPTransport, bool, error) {
	p.mu.Lock()
	if p.curConns >= p.maxConns {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.curConns++
	p.mu.Unlock()

	t, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return nil, true, err
	}
	return t, true, nil
}
