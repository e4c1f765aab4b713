package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packrpc/protocol"
)

// echoServer accepts connections and echoes every request body back as
// a response frame, skipping heartbeats.
func echoServer(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				for {
					header, body, err := protocol.Decode(conn)
					if err != nil {
						return
					}
					if header.MsgType == protocol.MsgTypeHeartbeat {
						continue
					}
					if err := protocol.Encode(conn, &protocol.Header{
						MsgType: protocol.MsgTypeResponse,
						BodyLen: uint32(len(body)),
					}, body); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return listener.Addr().String()
}

func TestSendReceiveRoundTrip(t *testing.T) {
	addr := echoServer(t)

	tr, err := Dial("tcp", addr)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send([]byte("ping")))
	got, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))

	// The transport stays usable for further exchanges.
	require.NoError(t, tr.Send([]byte("pong")))
	got, err = tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(got))
}

func TestReceiveSkipsHeartbeats(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	tr := NewTCPTransport(client)
	defer tr.Close()

	go func() {
		protocol.Encode(server, &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}, nil)
		protocol.Encode(server, &protocol.Header{
			MsgType: protocol.MsgTypeResponse,
			BodyLen: 2,
		}, []byte("ok"))
	}()

	got, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestReceiveFailsOnClosedConn(t *testing.T) {
	addr := echoServer(t)

	tr, err := Dial("tcp", addr)
	require.NoError(t, err)
	tr.Close()

	_, err = tr.Receive()
	assert.Error(t, err)
}

func TestDialUnreachable(t *testing.T) {
	_, err := Dial("tcp", "127.0.0.1:1")
	assert.Error(t, err)
}

func TestPoolReusesConnections(t *testing.T) {
	addr := echoServer(t)

	dials := 0
	pool := NewPool(2, func() (*TCPTransport, error) {
		dials++
		return Dial("tcp", addr)
	})
	defer pool.Close()

	t1, err := pool.Get()
	require.NoError(t, err)
	pool.Put(t1, false)

	t2, err := pool.Get()
	require.NoError(t, err)
	assert.Same(t, t1, t2, "an idle transport is reused before dialing")
	assert.Equal(t, 1, dials)
	pool.Put(t2, false)
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	addr := echoServer(t)

	pool := NewPool(1, func() (*TCPTransport, error) { return Dial("tcp", addr) })
	defer pool.Close()

	t1, err := pool.Get()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	got := make(chan *TCPTransport, 1)
	go func() {
		defer wg.Done()
		t2, err := pool.Get()
		assert.NoError(t, err)
		got <- t2
	}()

	select {
	case <-got:
		t.Fatal("Get should block while the pool is exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	pool.Put(t1, false)
	wg.Wait()
	assert.Same(t, t1, <-got)
}

func TestPoolDropsBrokenConnections(t *testing.T) {
	addr := echoServer(t)

	dials := 0
	pool := NewPool(1, func() (*TCPTransport, error) {
		dials++
		return Dial("tcp", addr)
	})
	defer pool.Close()

	t1, err := pool.Get()
	require.NoError(t, err)
	pool.Put(t1, true) // broken: closed and not reused

	t2, err := pool.Get()
	require.NoError(t, err)
	assert.NotSame(t, t1, t2)
	assert.Equal(t, 2, dials)
	pool.Put(t2, false)
}
