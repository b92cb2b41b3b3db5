// Package cache defines the Cache contract shared by every implementation in
// this module and provides Local, a generic in-process cache bounded by entry
// count and TTL.
//
// Design
//
//   - Contract: Cache[K, V] has Get/Put/Remove/Len/IsEmpty/Clear/Flush/
//     AssertMaxSize/Close. A miss is reported through the boolean result,
//     never as an error. replicated.Client satisfies the same interface, so
//     callers cannot tell which one they hold.
//
//   - Storage: Local keeps a map[K]policy.Handle for lookups and a doubly
//     linked recency list whose nodes live in an arena slice and link by
//     handle. Freed slots are recycled. All operations are O(1) expected;
//     Elements/Keys/String are O(n) diagnostics.
//
//   - Order: by default (policy/writeorder) only Put moves an entry to the
//     head; Get does not. The eviction victim is the key that went longest
//     without a Put. Pass policy/lru.New() for classic access-order LRU.
//
//   - TTL: an entry's age is measured from its last Put. Expiration is lazy:
//     Get removes an entry whose age reached Options.TTL. Put never expires
//     anything, so Len may count expired-but-unread entries.
//
//   - Capacity: a Put that makes Len exceed MaxEntries evicts the tail.
//     Resize only grows; AssertMaxSize shrinks (and clears the cache if it
//     finds the index and the list out of sync).
//
//   - Concurrency: a single mutex guards every path, reads included, because
//     a Get can remove an expired entry.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals
//     (plus Degraded/Transition from replicated clients). NoopMetrics is the
//     default; metrics/prom exports them to Prometheus.
//
//   - Loader: NewLoader adds read-through loading over any Cache, coalescing
//     concurrent loads of the same key.
//
// Basic usage
//
//	c := cache.NewLocal[string, int](cache.Options[string, int]{MaxEntries: 2})
//	c.Put("a", 1)
//	c.Put("b", 2)
//	c.Put("c", 3)        // evicts "a"
//	_, ok := c.Get("a")  // ok == false
//
// With TTL
//
//	c := cache.NewLocal[string, string](cache.Options[string, string]{
//	    MaxEntries: 1024,
//	    TTL:        time.Second,
//	})
//	c.Put("tmp", "v")
//	time.Sleep(1500 * time.Millisecond)
//	_, ok := c.Get("tmp") // ok == false, and the entry is gone
//
// Read-through
//
//	l := cache.NewLoader[string, string](c, func(ctx context.Context, k string) (string, error) {
//	    return "v:" + k, nil // e.g. fetch from DB
//	})
//	v, err := l.Get(ctx, "key")
package cache
