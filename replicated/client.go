package replicated

import (
	"context"
	"sync"

	"github.com/IvanBrykalov/replcache/cache"
	"github.com/IvanBrykalov/replcache/internal/singleflight"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrClosed is reported by operations on a closed Client.
var ErrClosed = errors.New("replicated: client closed")

// Client is a cache backed by a master/replica pair of Redis-protocol
// servers. Writes go to the master connection and reads to the replica
// connection; discovery decides which server fills each role.
//
// Client fails open: a backend error never reaches the caller of the
// cache.Cache methods. Reads report a miss, writes are dropped, and
// rediscovery runs before the call returns. The Lookup/Store/Delete
// variants expose the degraded flag and the error.
type Client[K comparable, V any] struct {
	opt Options
	log *zap.Logger

	master    Endpoint
	masterErr error // set when the master address did not parse
	replicas  []Endpoint

	// mu guards the connections and the state. Reads share it; writes and
	// discovery take it exclusively.
	mu     sync.RWMutex
	writer *redis.Client
	reader *redis.Client
	conn   Connectivity
	closed bool

	sf singleflight.Group[struct{}, State]
}

var _ cache.Cache[string, int] = (*Client[string, int])(nil)

// New parses the endpoints and runs discovery once. It never fails: an
// unreachable or misconfigured backend leaves the client in
// StateUnavailable, serving misses until a later operation (or Discover)
// finds a server.
func New[K comparable, V any](master string, replicas []string, opt Options) *Client[K, V] {
	opt.withDefaults()
	c := &Client[K, V]{
		opt: opt,
		log: opt.Logger.With(zap.String("component", "cache.replicated")),
	}

	var err error
	c.master, err = ParseEndpoint(master, RoleMaster)
	if err != nil {
		c.log.Error("invalid master endpoint", zap.Error(err))
		c.masterErr = err
	}
	c.replicas, err = ParseEndpoints(replicas, RoleReplica)
	if err != nil {
		c.log.Error("invalid replica endpoint", zap.Error(err))
	}

	if err := c.Discover(context.Background()); err != nil {
		c.log.Error("initial discovery failed", zap.Error(err))
	}
	return c
}

// Discover re-runs endpoint discovery. Concurrent callers share one run.
func (c *Client[K, V]) Discover(ctx context.Context) error {
	_, _, err := c.sf.Do(ctx, struct{}{}, func(ctx context.Context) (State, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return StateDisconnected, ErrClosed
		}
		return c.discoverLocked(ctx)
	})
	return err
}

// Status returns the current connectivity snapshot.
func (c *Client[K, V]) Status() Connectivity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Lookup reads k from the replica connection.
func (c *Client[K, V]) Lookup(k K) cache.Result[V] {
	key := c.opt.Encoding.Encode(k)

	c.mu.RLock()
	raw, err := withConn(c, c.reader, func(ctx context.Context, r *redis.Client) ([]byte, error) {
		return r.Get(ctx, key).Bytes()
	})
	c.mu.RUnlock()

	if errors.Is(err, redis.Nil) {
		c.opt.Metrics.Miss()
		return cache.Result[V]{}
	}
	if err != nil {
		c.opt.Metrics.Miss()
		return c.degraded(cache.OpGet, key, err)
	}
	var v V
	if err := c.opt.Serializer.Unmarshal(raw, &v); err != nil {
		c.log.Warn("undecodable value", zap.String("key", key), zap.Error(err))
		c.opt.Metrics.Miss()
		return cache.Result[V]{Err: errors.Wrapf(err, "decode %s", key)}
	}
	c.opt.Metrics.Hit()
	return cache.Result[V]{Value: v, Found: true}
}

// Store writes k→v to the master connection with the configured TTL and
// returns the value it replaced.
func (c *Client[K, V]) Store(k K, v V) cache.Result[V] {
	key := c.opt.Encoding.Encode(k)
	data, err := c.opt.Serializer.Marshal(v)
	if err != nil {
		return cache.Result[V]{Err: errors.Wrapf(err, "encode %s", key)}
	}

	c.mu.Lock()
	prev, err := withConn(c, c.writer, func(ctx context.Context, w *redis.Client) (cache.Result[V], error) {
		var prev cache.Result[V]
		if raw, err := w.Get(ctx, key).Bytes(); err == nil {
			if c.opt.Serializer.Unmarshal(raw, &prev.Value) == nil {
				prev.Found = true
			}
		}
		return prev, w.Set(ctx, key, data, c.opt.TTL).Err()
	})
	c.mu.Unlock()

	if err != nil {
		return c.degraded(cache.OpPut, key, err)
	}
	return prev
}

// Delete removes k and returns the value read from the replica beforehand.
func (c *Client[K, V]) Delete(k K) cache.Result[V] {
	prev := c.Lookup(k)
	key := c.opt.Encoding.Encode(k)

	c.mu.Lock()
	_, err := withConn(c, c.writer, func(ctx context.Context, w *redis.Client) (int64, error) {
		return w.Del(ctx, key).Result()
	})
	c.mu.Unlock()

	if err != nil {
		r := c.degraded(cache.OpRemove, key, err)
		r.Value, r.Found = prev.Value, prev.Found
		return r
	}
	return prev
}

// Get implements cache.Cache.
func (c *Client[K, V]) Get(k K) (V, bool) {
	r := c.Lookup(k)
	return r.Value, r.Found
}

// Put implements cache.Cache.
func (c *Client[K, V]) Put(k K, v V) (V, bool) {
	r := c.Store(k, v)
	return r.Value, r.Found
}

// Remove implements cache.Cache.
func (c *Client[K, V]) Remove(k K) (V, bool) {
	r := c.Delete(k)
	return r.Value, r.Found
}

// Len returns the number of keys in the replica's database. The count covers
// every key in that database, not only keys written by this client.
func (c *Client[K, V]) Len() int {
	c.mu.RLock()
	n, err := withConn(c, c.reader, func(ctx context.Context, r *redis.Client) (int64, error) {
		return r.DBSize(ctx).Result()
	})
	c.mu.RUnlock()

	if err != nil {
		c.degraded(cache.OpLen, "", err)
		return 0
	}
	c.opt.Metrics.Size(int(n))
	return int(n)
}

// IsEmpty reports whether Len() == 0.
func (c *Client[K, V]) IsEmpty() bool { return c.Len() == 0 }

// Clear flushes every database on the master server, including keys that
// other clients wrote.
func (c *Client[K, V]) Clear() {
	c.mu.Lock()
	_, err := withConn(c, c.writer, func(ctx context.Context, w *redis.Client) (string, error) {
		return w.FlushAll(ctx).Result()
	})
	c.mu.Unlock()

	if err != nil {
		c.degraded(cache.OpClear, "", err)
		return
	}
	c.opt.Metrics.Size(0)
}

// Flush is an alias of Clear.
func (c *Client[K, V]) Flush() { c.Clear() }

// AssertMaxSize is a no-op: the server enforces its own memory policy.
func (c *Client[K, V]) AssertMaxSize(int) {}

// Close releases both connections. Later operations report ErrClosed.
func (c *Client[K, V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.closeConnsLocked()
	c.settle(StateDisconnected, nil, nil, false)
	return err
}

// withConn runs fn against conn under the operation timeout. A nil conn
// means the role is not served; the caller must hold mu.
func withConn[K comparable, V any, T any](c *Client[K, V], conn *redis.Client, fn func(context.Context, *redis.Client) (T, error)) (T, error) {
	if conn == nil {
		var zero T
		if c.closed {
			return zero, ErrClosed
		}
		return zero, ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opt.OpTimeout)
	defer cancel()
	return fn(ctx, conn)
}

// degraded logs a swallowed failure and rediscovers. The caller must not
// hold mu.
func (c *Client[K, V]) degraded(op cache.Op, key string, err error) cache.Result[V] {
	c.opt.Metrics.Degraded(op)
	if errors.Is(err, ErrClosed) {
		return cache.Result[V]{Degraded: true, Err: err}
	}
	c.log.Warn("backend operation failed", zap.String("op", string(op)),
		zap.String("key", key), zap.Error(err))
	if derr := c.Discover(context.Background()); derr != nil {
		c.log.Warn("rediscovery failed", zap.Error(derr))
	}
	if key != "" {
		err = errors.Wrapf(err, "%s %s", op, key)
	} else {
		err = errors.Wrapf(err, "%s", op)
	}
	return cache.Result[V]{Degraded: true, Err: err}
}
