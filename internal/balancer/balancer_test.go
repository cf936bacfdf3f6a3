package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBalancer(algorithm Algorithm) *LoadBalancer {
	return New(Config{
		Algorithm:           algorithm,
		HealthCheckInterval: time.Hour,
		HealthCheckTimeout:  time.Second,
		MaxRetries:          3,
	}, nil)
}

func TestParseAlgorithm(t *testing.T) {
	for _, valid := range []string{"round_robin", "least_connections", "weighted_round_robin", "ip_hash"} {
		algo, err := ParseAlgorithm(valid)
		require.NoError(t, err)
		assert.Equal(t, Algorithm(valid), algo)
	}

	_, err := ParseAlgorithm("random")
	assert.Error(t, err)
}

func TestLoadBalancer_AddRemoveInstance(t *testing.T) {
	lb := newTestBalancer(RoundRobin)

	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	assert.ErrorIs(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}), ErrInstanceExists)

	require.NoError(t, lb.RemoveInstance("a"))
	assert.ErrorIs(t, lb.RemoveInstance("a"), ErrInstanceNotFound)
}

func TestLoadBalancer_NoHealthyInstance(t *testing.T) {
	lb := newTestBalancer(RoundRobin)

	_, err := lb.NextInstance("10.0.0.1")
	assert.ErrorIs(t, err, ErrNoHealthyInstance)

	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	lb.setHealthy("a", false)

	_, err = lb.NextInstance("10.0.0.1")
	assert.ErrorIs(t, err, ErrNoHealthyInstance)
}

func TestLoadBalancer_RoundRobinCycles(t *testing.T) {
	lb := newTestBalancer(RoundRobin)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("b", "http://127.0.0.1:9101", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("c", "http://127.0.0.1:9102", InstanceOptions{}))

	var order []string
	for i := 0; i < 6; i++ {
		inst, err := lb.NextInstance("")
		require.NoError(t, err)
		order = append(order, inst.ID)
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
}

func TestLoadBalancer_RoundRobinSkipsUnhealthy(t *testing.T) {
	lb := newTestBalancer(RoundRobin)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("b", "http://127.0.0.1:9101", InstanceOptions{}))
	lb.setHealthy("a", false)

	for i := 0; i < 4; i++ {
		inst, err := lb.NextInstance("")
		require.NoError(t, err)
		assert.Equal(t, "b", inst.ID)
	}
}

func TestLoadBalancer_LeastConnections(t *testing.T) {
	lb := newTestBalancer(LeastConnections)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("b", "http://127.0.0.1:9101", InstanceOptions{}))

	first, err := lb.NextInstance("")
	require.NoError(t, err)
	second, err := lb.NextInstance("")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Releasing a drops its count to zero, so it is selected next.
	lb.ReleaseConnection("a")
	third, err := lb.NextInstance("")
	require.NoError(t, err)
	assert.Equal(t, "a", third.ID)
}

func TestLoadBalancer_ReleaseConnectionFloorsAtZero(t *testing.T) {
	lb := newTestBalancer(LeastConnections)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))

	lb.ReleaseConnection("a")
	lb.ReleaseConnection("missing")

	inst, err := lb.NextInstance("")
	require.NoError(t, err)
	assert.Equal(t, 1, inst.ActiveConnections)
}

func TestLoadBalancer_WeightedSelectionHonorsWeights(t *testing.T) {
	lb := newTestBalancer(WeightedRoundRobin)
	require.NoError(t, lb.AddInstance("heavy", "http://127.0.0.1:9100", InstanceOptions{Weight: 9}))
	require.NoError(t, lb.AddInstance("light", "http://127.0.0.1:9101", InstanceOptions{Weight: 1}))

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		inst, err := lb.NextInstance("")
		require.NoError(t, err)
		counts[inst.ID]++
		lb.ReleaseConnection(inst.ID)
	}

	assert.Greater(t, counts["heavy"], counts["light"])
}

func TestLoadBalancer_IPHashSticky(t *testing.T) {
	lb := newTestBalancer(IPHash)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("b", "http://127.0.0.1:9101", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("c", "http://127.0.0.1:9102", InstanceOptions{}))

	first, err := lb.NextInstance("192.168.1.50")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		inst, err := lb.NextInstance("192.168.1.50")
		require.NoError(t, err)
		assert.Equal(t, first.ID, inst.ID)
	}
}

func TestLoadBalancer_IPHashRemapsWhenInstanceUnhealthy(t *testing.T) {
	lb := newTestBalancer(IPHash)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("b", "http://127.0.0.1:9101", InstanceOptions{}))

	first, err := lb.NextInstance("10.1.2.3")
	require.NoError(t, err)

	lb.setHealthy(first.ID, false)

	remapped, err := lb.NextInstance("10.1.2.3")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, remapped.ID)

	// The new mapping sticks too.
	again, err := lb.NextInstance("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, remapped.ID, again.ID)
}

func TestLoadBalancer_RemoveInstanceEvictsStickyEntries(t *testing.T) {
	lb := newTestBalancer(IPHash)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))

	_, err := lb.NextInstance("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, 1, lb.Summary().StickyEntries)

	require.NoError(t, lb.RemoveInstance("a"))
	assert.Equal(t, 0, lb.Summary().StickyEntries)
}

func TestLoadBalancer_LeastLoadedInstances(t *testing.T) {
	lb := newTestBalancer(LeastConnections)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("b", "http://127.0.0.1:9101", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("c", "http://127.0.0.1:9102", InstanceOptions{}))

	// a gets two connections, b one, c none.
	for _, id := range []string{"a", "a", "b"} {
		lb.mu.Lock()
		lb.byID[id].ActiveConnections++
		lb.mu.Unlock()
	}

	assert.Equal(t, []string{"c", "b"}, lb.LeastLoadedInstances(2))
	assert.Len(t, lb.LeastLoadedInstances(10), 3)
}

func TestLoadBalancer_Summary(t *testing.T) {
	lb := newTestBalancer(RoundRobin)
	require.NoError(t, lb.AddInstance("a", "http://127.0.0.1:9100", InstanceOptions{}))
	require.NoError(t, lb.AddInstance("b", "http://127.0.0.1:9101", InstanceOptions{}))
	lb.setHealthy("b", false)

	s := lb.Summary()
	assert.Equal(t, RoundRobin, s.Algorithm)
	assert.Equal(t, 2, s.TotalCount)
	assert.Equal(t, 1, s.HealthyCount)
	assert.False(t, s.HealthChecking)
}
