package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IvanBrykalov/replcache/internal/util"
	"github.com/IvanBrykalov/replcache/policy"
	"github.com/IvanBrykalov/replcache/policy/writeorder"
	"go.uber.org/zap"
)

// Local is an in-process cache bounded by entry count and TTL.
// It keeps a hash index over an arena-backed doubly linked list
// (head = most recently placed, tail = eviction candidate).
// All methods are safe for concurrent use by multiple goroutines.
type Local[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu         sync.Mutex
	index      map[K]policy.Handle
	nodes      []node[K, V]
	free       []policy.Handle
	head       policy.Handle
	tail       policy.Handle
	size       int // maintained counter; must equal len(index)
	maxEntries int
	ttl        time.Duration

	pol policy.ListPolicy
	opt Options[K, V]
	log *zap.Logger

	// ---- hot counters ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

var _ Cache[string, int] = (*Local[string, int])(nil)

// Stats is a snapshot of the Local cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions uint64
}

// NewLocal constructs a Local cache with the provided Options.
func NewLocal[K comparable, V any](opt Options[K, V]) *Local[K, V] {
	if opt.MaxEntries <= 0 {
		opt.MaxEntries = DefaultMaxEntries
	}
	if opt.TTL < 0 {
		opt.TTL = 0
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = writeorder.New()
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}

	c := &Local[K, V]{
		index:      make(map[K]policy.Handle, opt.MaxEntries),
		nodes:      make([]node[K, V], 0, opt.MaxEntries),
		head:       policy.Nil,
		tail:       policy.Nil,
		maxEntries: opt.MaxEntries,
		ttl:        opt.TTL,
		opt:        opt,
		log:        opt.Logger.With(zap.String("component", "cache.local")),
	}
	c.pol = opt.Policy.New(listHooks[K, V]{c: c})
	return c
}

// Get returns the value for k and a presence flag.
// An entry whose age (since its last Put) reached the TTL is removed and
// reported as a miss. Whether a hit refreshes recency is up to the policy;
// the default policy leaves the order untouched.
func (c *Local[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.index[k]
	if !ok {
		return c.missLocked()
	}
	n := &c.nodes[h]
	if c.expiredLocked(n) {
		v := n.val
		c.removeLocked(k)
		c.evicted(k, v, EvictTTL)
		return c.missLocked()
	}

	v := n.val
	c.pol.OnGet(h)
	c.hits.Add(1)
	c.opt.Metrics.Hit()
	return v, true
}

// Put inserts or overwrites k→v and returns the previous value.
// A new key is placed at the head; if that overflows MaxEntries the tail is
// evicted. An existing key gets a fresh timestamp and moves to the head.
// Put never expires entries by TTL.
func (c *Local[K, V]) Put(k K, v V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if h, ok := c.index[k]; ok {
		n := &c.nodes[h]
		old := n.val
		n.val = v
		n.stamp = now
		c.pol.OnUpdate(h)
		return old, true
	}

	h := c.alloc(k, v, now)
	c.index[k] = h
	c.pol.OnAdd(h)
	if c.size > c.maxEntries {
		c.evictTailLocked(EvictPolicy)
	}
	c.opt.Metrics.Size(c.size)

	var zero V
	return zero, false
}

// Remove deletes k and returns the removed value.
func (c *Local[K, V]) Remove(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.removeLocked(k)
	if ok {
		c.opt.Metrics.Size(c.size)
	}
	return v, ok
}

// RemoveTail evicts the least recently placed entry.
func (c *Local[K, V]) RemoveTail() (K, V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tail == policy.Nil {
		var (
			zk K
			zv V
		)
		return zk, zv, false
	}
	n := c.nodes[c.tail]
	c.evictTailLocked(EvictPolicy)
	c.opt.Metrics.Size(c.size)
	return n.key, n.val, true
}

// Len returns the number of resident entries (including expired entries
// that were not read since they expired).
func (c *Local[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// IsEmpty reports whether the recency list is empty.
func (c *Local[K, V]) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head == policy.Nil
}

// Clear drops every entry. OnEvict is not called.
func (c *Local[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Flush is an alias of Clear.
func (c *Local[K, V]) Flush() { c.Clear() }

// Resize raises the capacity to newMax. It never shrinks the cache;
// use AssertMaxSize for that.
func (c *Local[K, V]) Resize(newMax int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if newMax > c.maxEntries {
		c.maxEntries = newMax
	}
}

// AssertMaxSize sets the capacity to maxSize and evicts from the tail until
// the cache fits. If the index and the size counter disagree, the cache is
// considered corrupt and is cleared instead.
func (c *Local[K, V]) AssertMaxSize(maxSize int) {
	if maxSize < 0 {
		maxSize = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxEntries = maxSize
	if len(c.index) != c.size {
		c.log.Warn("index and recency list diverged, clearing cache",
			zap.Int("indexed", len(c.index)),
			zap.Int("size", c.size))
		c.clearLocked()
		return
	}
	for c.size > c.maxEntries {
		if !c.evictTailLocked(EvictCapacity) {
			break
		}
	}
	c.opt.Metrics.Size(c.size)
}

// Close is a no-op; a Local cache holds no external resources.
func (c *Local[K, V]) Close() error { return nil }

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *Local[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evicts.Load(),
	}
}

// Elements returns the values from head to tail. O(n).
func (c *Local[K, V]) Elements() []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]V, 0, c.size)
	for h := c.head; h != policy.Nil; h = c.nodes[h].next {
		out = append(out, c.nodes[h].val)
	}
	return out
}

// Keys returns the keys from head to tail. O(n).
func (c *Local[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]K, 0, c.size)
	for h := c.head; h != policy.Nil; h = c.nodes[h].next {
		out = append(out, c.nodes[h].key)
	}
	return out
}

// String renders the list head to tail, e.g. "[b:2; a:1; ](2)".
func (c *Local[K, V]) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sb strings.Builder
	sb.WriteByte('[')
	for h := c.head; h != policy.Nil; h = c.nodes[h].next {
		fmt.Fprintf(&sb, "%v:%v; ", c.nodes[h].key, c.nodes[h].val)
	}
	fmt.Fprintf(&sb, "](%d)", c.size)
	return sb.String()
}

// -------------------- internals (mu held) --------------------

func (c *Local[K, V]) missLocked() (V, bool) {
	c.misses.Add(1)
	c.opt.Metrics.Miss()
	var zero V
	return zero, false
}

func (c *Local[K, V]) expiredLocked(n *node[K, V]) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now()-n.stamp >= int64(c.ttl)
}

func (c *Local[K, V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// removeLocked unlinks k from both the index and the list.
func (c *Local[K, V]) removeLocked(k K) (V, bool) {
	h, ok := c.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	c.pol.OnRemove(h)
	c.unlink(h)
	delete(c.index, k)
	v := c.nodes[h].val
	c.release(h)
	return v, true
}

// evictTailLocked drops the tail entry. It goes through removeLocked by key;
// a tail whose key is missing from the index is unlinked directly.
func (c *Local[K, V]) evictTailLocked(reason EvictReason) bool {
	t := c.tail
	if t == policy.Nil {
		return false
	}
	k, v := c.nodes[t].key, c.nodes[t].val
	if _, ok := c.removeLocked(k); !ok {
		c.pol.OnRemove(t)
		c.unlink(t)
		c.release(t)
	}
	c.evicted(k, v, reason)
	return true
}

func (c *Local[K, V]) evicted(k K, v V, reason EvictReason) {
	c.evicts.Add(1)
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(k, v, reason)
	}
}

func (c *Local[K, V]) clearLocked() {
	c.index = make(map[K]policy.Handle, c.maxEntries)
	clear(c.nodes)
	c.nodes = c.nodes[:0]
	c.free = c.free[:0]
	c.head, c.tail = policy.Nil, policy.Nil
	c.size = 0
	c.opt.Metrics.Size(0)
}
