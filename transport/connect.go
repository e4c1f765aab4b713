package transport

import (
	"fmt"

	"github.com/charmbracelet/log"

	"packrpc/loadbalance"
	"packrpc/registry"
)

// Connect discovers the instances serving a function and dials the one
// the balancer picks.
func Connect(reg registry.Registry, bal loadbalance.Balancer, serviceName string) (*TCPTransport, error) {
	instances, err := reg.Discover(serviceName)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("no instances registered for %q", serviceName)
	}

	instance, err := bal.Pick(instances)
	if err != nil {
		return nil, err
	}

	log.Debugf("connecting to %s for %s (%s)", instance.Addr, serviceName, bal.Name())
	return Dial("tcp", instance.Addr)
}

// ConnectPool builds a pool of connections to whichever instances the
// balancer picks; each pooled transport may land on a different
// instance.
func ConnectPool(reg registry.Registry, bal loadbalance.Balancer, serviceName string, size int) *Pool {
	return NewPool(size, func() (*TCPTransport, error) {
		return Connect(reg, bal, serviceName)
	})
}
