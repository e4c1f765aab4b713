package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"packrpc/registry"
)

// ConsistentHash maps keys onto a hash ring of instances, so the same
// key reaches the same instance for as long as the ring is stable.
// Useful with cached bindings: repeat calls with the same request bytes
// land where the result is already cached.
//
// Each real instance occupies replicas virtual nodes on the ring to keep
// the distribution statistically even.
type ConsistentHash struct {
	replicas int
	ring     []uint32 // sorted hashes on the ring
	nodes    map[uint32]*registry.ServiceInstance
}

func NewConsistentHash() *ConsistentHash {
	return &ConsistentHash{
		replicas: 100,
		nodes:    make(map[uint32]*registry.ServiceInstance),
	}
}

// Add places an instance onto the ring, hashing "{addr}#{i}" for each
// virtual node.
func (b *ConsistentHash) Add(instance *registry.ServiceInstance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// PickKey finds the instance owning the given key: the first ring node
// clockwise from the key's hash, wrapping at the end. Key-based
// selection does not fit the Balancer interface; callers that want
// affinity use PickKey directly.
func (b *ConsistentHash) PickKey(key string) (*registry.ServiceInstance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("no instances available")
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHash) Name() string {
	return "ConsistentHash"
}
