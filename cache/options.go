package cache

import (
	"time"

	"github.com/IvanBrykalov/replcache/policy"
	"go.uber.org/zap"
)

// DefaultMaxEntries is used when Options.MaxEntries is not positive.
const DefaultMaxEntries = 100

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy: the tail was dropped because a Put exceeded MaxEntries
	// (or RemoveTail was called).
	EvictPolicy EvictReason = iota
	// EvictTTL: expired by TTL (lazy eviction on Get).
	EvictTTL
	// EvictCapacity: removed while AssertMaxSize shrank the cache.
	EvictCapacity
)

func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	default:
		return "policy"
	}
}

// Op names a cache operation in degraded-mode signals.
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
	OpLen    Op = "len"
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
	// Degraded is reported when a backend failure was swallowed fail-open.
	Degraded(op Op)
	// Transition is reported when a replicated client enters a new
	// connectivity state (see replicated.State).
	Transition(state string)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Local cache. Zero values are safe;
// defaults are applied in NewLocal():
//   - MaxEntries <= 0 => DefaultMaxEntries
//   - TTL <= 0        => entries never expire
//   - nil Policy      => writeorder (reads do not refresh recency)
//   - nil Metrics     => NoopMetrics
//   - nil Logger      => zap.NewNop()
type Options[K comparable, V any] struct {
	// MaxEntries is the entry count limit.
	MaxEntries int

	// TTL is measured from the last Put of a key.
	TTL time.Duration

	// Policy decides how reads and writes reorder the recency list.
	Policy policy.Policy

	// OnEvict is called on eviction under the cache lock; keep callbacks lightweight.
	// Explicit Remove/Clear do not trigger it.
	OnEvict func(k K, v V, reason EvictReason)

	Metrics Metrics
	Logger  *zap.Logger

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}
