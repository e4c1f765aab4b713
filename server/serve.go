package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"packrpc/protocol"
	"packrpc/registry"
)

// registerTTL is the etcd lease TTL in seconds; KeepAlive renews it.
const registerTTL = 10

// serveState carries the TCP-session side of the server, kept apart
// from the dispatch engine fields.
type serveState struct {
	listener      net.Listener
	wg            sync.WaitGroup
	shutdown      atomic.Bool
	registry      registry.Registry
	advertiseAddr string
}

// Serve listens on address and runs one session goroutine per accepted
// connection. Within a session, requests are dispatched strictly in
// arrival order.
//
// advertiseAddr is the routable address registered with the registry
// (":8080" listens fine but is not dialable from elsewhere). Pass a nil
// registry to skip discovery; otherwise every bound name is registered
// as a service under advertiseAddr.
func (s *Server) Serve(network, address, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = listener

	s.advertiseAddr = advertiseAddr
	if reg != nil {
		s.registry = reg
		instance := registry.ServiceInstance{Addr: advertiseAddr, Adapter: s.adapter.Name()}
		for name := range s.handlers {
			if err := reg.Register(name, instance, registerTTL); err != nil {
				log.Errorf("failed to register %s at %s: %v", name, advertiseAddr, err)
			}
		}
	}

	log.Debugf("rpc server (%s) listening on %s", s.adapter.Name(), address)

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener; only report Accept errors
			// that were not asked for.
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn runs one session: read a frame, dispatch it, write the
// reply, repeat until the peer hangs up. Requests on a session are
// handled sequentially, which is what keeps them in arrival order.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			return // connection closed or protocol violation
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}

		s.wg.Add(1)
		resp := s.Dispatch(body)
		err = protocol.Encode(conn, &protocol.Header{
			MsgType: protocol.MsgTypeResponse,
			BodyLen: uint32(len(resp)),
		}, resp)
		s.wg.Done()
		if err != nil {
			log.Errorf("failed to write response: %v", err)
			return
		}
	}
}

// Shutdown stops the server gracefully: deregister from discovery so
// clients stop routing here, stop accepting, then wait for in-flight
// requests up to the timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		for name := range s.handlers {
			if err := s.registry.Deregister(name, s.advertiseAddr); err != nil {
				log.Errorf("failed to deregister %s: %v", name, err)
			}
		}
	}

	// Flag before closing, so the Accept error is recognized as ours.
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for in-flight requests to finish")
	}
}
