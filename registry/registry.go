// Package registry builds caches from configuration and keeps named
// instances for the composition root to hand out.
package registry

import (
	"sort"
	"sync"

	"github.com/IvanBrykalov/replcache/cache"
	"github.com/IvanBrykalov/replcache/config"
	"github.com/IvanBrykalov/replcache/policy/lru"
	"github.com/IvanBrykalov/replcache/replicated"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	ErrUnknownKind = errors.New("registry: unknown cache kind")
	ErrNotFound    = errors.New("registry: cache not found")
	ErrExists      = errors.New("registry: cache already registered")
	ErrClosed      = errors.New("registry: closed")
)

// Options configures a Registry. Zero values are safe.
type Options struct {
	Logger *zap.Logger
	// Metrics returns the sink for the cache registered under name.
	// Nil => cache.NoopMetrics.
	Metrics func(name string) cache.Metrics
}

func (o *Options) withDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = func(string) cache.Metrics { return cache.NoopMetrics{} }
	}
}

// Build opens the cache described by cfg.
func Build[K comparable, V any](cfg config.Cache, opt Options) (cache.Cache[K, V], error) {
	return build[K, V]("", cfg, opt)
}

func build[K comparable, V any](name string, cfg config.Cache, opt Options) (cache.Cache[K, V], error) {
	opt.withDefaults()
	switch cfg.Kind {
	case config.KindLocal, config.KindReplicated:
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", cfg.Kind)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opt.Logger
	if name != "" {
		log = log.With(zap.String("cache", name))
	}
	m := opt.Metrics(name)

	if cfg.Kind == config.KindLocal {
		lo := cache.Options[K, V]{
			MaxEntries: cfg.MaxEntries,
			TTL:        cfg.TTL.Std(),
			Metrics:    m,
			Logger:     log,
		}
		if cfg.AccessOrder {
			lo.Policy = lru.New()
		}
		return cache.NewLocal[K, V](lo), nil
	}

	ser, err := replicated.SerializerByName(cfg.Serializer)
	if err != nil {
		return nil, errors.WithSecondaryError(errors.Wrapf(config.ErrInvalid, "serializer %q", cfg.Serializer), err)
	}
	return replicated.New[K, V](cfg.Master, cfg.ReplicaList(), replicated.Options{
		TTL:            cfg.TTL.Std(),
		Encoding:       cfg.Encoding(),
		Serializer:     ser,
		Password:       cfg.Password,
		DB:             cfg.DB,
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		OpTimeout:      cfg.OpTimeout.Std(),
		Metrics:        m,
		Logger:         log,
	}), nil
}

// Registry holds named caches of one key/value type. It replaces a
// process-wide singleton: create one at startup and pass it to callers.
type Registry[K comparable, V any] struct {
	opt Options

	mu     sync.Mutex
	caches map[string]cache.Cache[K, V]
	closed bool
}

// New returns an empty registry.
func New[K comparable, V any](opt Options) *Registry[K, V] {
	opt.withDefaults()
	return &Registry[K, V]{opt: opt, caches: make(map[string]cache.Cache[K, V])}
}

// Open returns the cache registered under name, building it from cfg on
// first use. Later calls ignore cfg.
func (r *Registry[K, V]) Open(name string, cfg config.Cache) (cache.Cache[K, V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.caches[name]; ok {
		return c, nil
	}
	c, err := build[K, V](name, cfg, r.opt)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", name)
	}
	r.caches[name] = c
	r.opt.Logger.Info("cache opened", zap.String("cache", name), zap.String("kind", cfg.Kind))
	return c, nil
}

// Register adds an already constructed cache under name.
func (r *Registry[K, V]) Register(name string, c cache.Cache[K, V]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, ok := r.caches[name]; ok {
		return errors.Wrapf(ErrExists, "%q", name)
	}
	r.caches[name] = c
	return nil
}

// Get returns the cache registered under name.
func (r *Registry[K, V]) Get(name string) (cache.Cache[K, V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return c, nil
}

// Names returns the registered names, sorted.
func (r *Registry[K, V]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.caches))
	for n := range r.caches {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Close closes every registered cache and empties the registry.
func (r *Registry[K, V]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	for name, c := range r.caches {
		if cerr := c.Close(); cerr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(cerr, "close %q", name))
		}
	}
	clear(r.caches)
	return err
}
