// Package transport provides the client side of the TCP wire: a
// synchronous request/reply transport with keepalive heartbeats, a
// borrow/return pool for callers that want one connection per
// goroutine, and registry-driven connection setup.
//
// The transport is deliberately not multiplexed: the invocation engine
// serializes calls per client, so a plain send-then-receive connection
// is the whole contract.
package transport

import (
	"net"
	"sync"
	"time"

	"packrpc/protocol"
)

const heartbeatInterval = 30 * time.Second

// TCPTransport carries one request frame out and one response frame
// back over a TCP connection. Safe to share between a caller and the
// background heartbeat; not meant for concurrent calls.
type TCPTransport struct {
	conn      net.Conn
	sending   sync.Mutex // serializes frame writes against heartbeats
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to addr and starts the heartbeat loop.
func Dial(network, addr string) (*TCPTransport, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return NewTCPTransport(conn), nil
}

// NewTCPTransport wraps an established connection.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	t := &TCPTransport{
		conn:   conn,
		closed: make(chan struct{}),
	}
	go t.heartbeatLoop(heartbeatInterval)
	return t
}

// Send writes one request frame. The lock keeps a concurrent heartbeat
// from interleaving bytes into the frame.
func (t *TCPTransport) Send(data []byte) error {
	t.sending.Lock()
	defer t.sending.Unlock()
	return protocol.Encode(t.conn, &protocol.Header{
		MsgType: protocol.MsgTypeRequest,
		BodyLen: uint32(len(data)),
	}, data)
}

// Receive blocks until one response frame arrives. Heartbeat frames are
// skipped.
func (t *TCPTransport) Receive() ([]byte, error) {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			return nil, err
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		return body, nil
	}
}

func (t *TCPTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}

// Conn returns the underlying connection.
func (t *TCPTransport) Conn() net.Conn {
	return t.conn
}

// heartbeatLoop sends empty keepalive frames so an idle connection is
// not reaped by the server or anything in between.
func (t *TCPTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.sending.Lock()
			err := protocol.Encode(t.conn, &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}, nil)
			t.sending.Unlock()
			if err != nil {
				return // connection broken
			}
		}
	}
}
