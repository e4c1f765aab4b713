// Package loadbalance selects which server instance a client dials when
// discovery returns more than one.
//
//   - RoundRobin:     stateless functions, equal-capacity instances
//   - WeightedRandom: heterogeneous instances
//   - ConsistentHash: affinity — the same key lands on the same instance,
//     which keeps per-instance result caches warm
package loadbalance

import "packrpc/registry"

// Balancer picks one instance from a discovered list. Pick is called
// per connection attempt and must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}
