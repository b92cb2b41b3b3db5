package cache

import (
	"context"

	"github.com/IvanBrykalov/replcache/internal/singleflight"
	"github.com/cockroachdb/errors"
)

// ErrNoLoader is returned by Loader.Get when no load function was configured.
var ErrNoLoader = errors.New("cache: no load function provided")

// LoadFunc fetches the value for a key on a cache miss.
type LoadFunc[K comparable, V any] func(ctx context.Context, k K) (V, error)

// Loader adds read-through loading on top of any Cache.
// Concurrent loads for the same key are coalesced.
type Loader[K comparable, V any] struct {
	c    Cache[K, V]
	load LoadFunc[K, V]
	sf   singleflight.Group[K, V]
}

// NewLoader wraps c with the load function fn.
func NewLoader[K comparable, V any](c Cache[K, V], fn LoadFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{c: c, load: fn}
}

// Get returns the cached value for k, loading and storing it on a miss.
// Load errors are returned as-is and nothing is cached.
func (l *Loader[K, V]) Get(ctx context.Context, k K) (V, error) {
	if v, ok := l.c.Get(k); ok {
		return v, nil
	}
	if l.load == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, _, err := l.sf.Do(ctx, k, func(ctx context.Context) (V, error) {
		// double-check after flight join
		if v, ok := l.c.Get(k); ok {
			return v, nil
		}
		v, err := l.load(ctx, k)
		if err != nil {
			return v, errors.Wrapf(err, "cache: load %v", k)
		}
		l.c.Put(k, v)
		return v, nil
	})
	return v, err
}
