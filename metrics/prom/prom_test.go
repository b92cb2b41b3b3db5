package prom

import (
	"strings"
	"testing"

	"github.com/IvanBrykalov/replcache/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAdapter_LocalCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "replcache", "test", nil)

	c := cache.NewLocal[string, int](cache.Options[string, int]{MaxEntries: 1, Metrics: m})
	c.Put("a", 1)
	c.Get("a")
	c.Get("b")
	c.Put("b", 2) // evicts a
	c.AssertMaxSize(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evicts.WithLabelValues("policy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evicts.WithLabelValues("capacity")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sizeEnt))
}

func TestAdapter_DegradedAndState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "replcache", "test", prometheus.Labels{"backend": "redis"})

	m.Degraded(cache.OpGet)
	m.Degraded(cache.OpGet)
	m.Degraded(cache.OpPut)
	m.Transition("replicating")
	m.Transition("promoted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.degraded.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues("put")))

	want := `
# HELP replcache_test_state 1 for the current connectivity state, 0 otherwise
# TYPE replcache_test_state gauge
replcache_test_state{backend="redis",state="promoted"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "replcache_test_state"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("replicating")))
}

func TestAdapter_NilRegistererUsesDefault(t *testing.T) {
	m := New(nil, "replcache", "default_reg_test", nil)
	t.Cleanup(func() {
		prometheus.Unregister(m.hits)
		prometheus.Unregister(m.misses)
		prometheus.Unregister(m.evicts)
		prometheus.Unregister(m.sizeEnt)
		prometheus.Unregister(m.degraded)
		prometheus.Unregister(m.transitions)
		prometheus.Unregister(m.state)
	})
	m.Hit()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hits))
}
