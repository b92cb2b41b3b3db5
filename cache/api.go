package cache

// Cache is the key/value contract shared by every cache implementation in
// this module (the in-process Local cache and replicated.Client).
// Callers should depend on this interface only; the implementation is chosen
// at construction time (see package registry).
//
// All methods are safe for concurrent use by multiple goroutines.
// A miss is never an error: absence is reported through the boolean result.
type Cache[K comparable, V any] interface {
	// Get returns the value for k and a presence flag.
	// Expired entries are reported as absent.
	Get(k K) (V, bool)

	// Put inserts or overwrites k→v and returns the previous value, if any.
	Put(k K, v V) (V, bool)

	// Remove deletes k and returns the removed value, if any.
	Remove(k K) (V, bool)

	// Len returns the number of resident entries.
	Len() int

	// IsEmpty reports whether Len() == 0.
	IsEmpty() bool

	// Clear drops every entry.
	Clear()

	// Flush is an alias of Clear.
	Flush()

	// AssertMaxSize resizes the cache to maxSize entries, evicting as
	// needed, and repairs internal bookkeeping if it is found inconsistent.
	AssertMaxSize(maxSize int)

	// Close releases held resources (connections). Local caches have none.
	Close() error
}

// Result is the detailed outcome of a cache operation against a backend that
// can fail. It lets observability layers tell a real miss from a miss caused
// by an outage without forcing callers to handle errors.
type Result[V any] struct {
	// Value is the stored (or previous) value when Found is true.
	Value V
	// Found reports whether a value was present.
	Found bool
	// Degraded is true when the backend failed and the result is a fail-open
	// fallback rather than the backend's answer.
	Degraded bool
	// Err carries the underlying failure when Degraded is true.
	Err error
}
