package loadbalance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packrpc/registry"
)

var testInstances = []registry.ServiceInstance{
	{Addr: ":8001", Weight: 10, Adapter: "json"},
	{Addr: ":8002", Weight: 5, Adapter: "json"},
	{Addr: ":8003", Weight: 10, Adapter: "json"},
}

func TestRoundRobinCycles(t *testing.T) {
	b := &RoundRobin{}

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		results[i] = inst.Addr
	}

	inst, err := b.Pick(testInstances)
	require.NoError(t, err)
	assert.Equal(t, results[0], inst.Addr, "fourth pick wraps to the first")
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobin{}
	_, err := b.Pick(nil)
	assert.Error(t, err)
}

func TestWeightedRandomRespectsWeights(t *testing.T) {
	b := &WeightedRandom{}

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// Weights are 10:5:10, so :8001 should land about twice as often
	// as :8002.
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	assert.Greater(t, ratio, 1.5)
	assert.Less(t, ratio, 2.5)
}

func TestWeightedRandomAllZeroWeights(t *testing.T) {
	b := &WeightedRandom{}
	unweighted := []registry.ServiceInstance{{Addr: ":9001"}, {Addr: ":9002"}}

	for i := 0; i < 100; i++ {
		inst, err := b.Pick(unweighted)
		require.NoError(t, err)
		require.NotNil(t, inst)
	}
}

func TestConsistentHashStableKeys(t *testing.T) {
	b := NewConsistentHash()
	for i := range testInstances {
		b.Add(&testInstances[i])
	}

	inst1, err := b.PickKey("user-123")
	require.NoError(t, err)
	inst2, err := b.PickKey("user-123")
	require.NoError(t, err)
	assert.Equal(t, inst1.Addr, inst2.Addr, "same key must map to the same instance")

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.PickKey(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		seen[inst.Addr] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2, "100 keys across 3 nodes should hit at least 2")
}

func TestConsistentHashEmptyRing(t *testing.T) {
	b := NewConsistentHash()
	_, err := b.PickKey("anything")
	assert.Error(t, err)
}
