package replicated

import (
	"net"
	"time"

	"github.com/IvanBrykalov/replcache/cache"
	"github.com/IvanBrykalov/replcache/keycodec"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultOpTimeout      = 2 * time.Second
)

// DialFunc opens a client for addr ("host:port"). Connections are lazy;
// discovery PINGs every client it dials.
type DialFunc func(addr string) *redis.Client

// Options configures a Client. Zero values are safe; defaults are applied
// in New():
//   - Encoding 0       => keycodec.Default (identity hash)
//   - nil Serializer   => JSON
//   - timeouts <= 0    => DefaultConnectTimeout / DefaultOpTimeout
//   - nil Resolver     => net.DefaultResolver
//   - nil Metrics      => cache.NoopMetrics
//   - nil Logger       => zap.NewNop()
type Options struct {
	// TTL is applied to every written key; 0 means no expiry.
	TTL time.Duration

	// Encoding maps keys to backend key strings. Writers and readers of one
	// backend must use the same encoding.
	Encoding keycodec.Encoding

	Serializer Serializer

	Password string
	DB       int

	// MasterAdvertise is the host replicas are told to follow. Empty means
	// the configured master host, or this machine's non-loopback address
	// when that host is a loopback name.
	MasterAdvertise string

	ConnectTimeout time.Duration
	OpTimeout      time.Duration

	// Dial overrides connection construction (tests, TLS, custom pools).
	Dial     DialFunc
	Resolver Resolver

	Metrics cache.Metrics
	Logger  *zap.Logger
}

func (o *Options) withDefaults() {
	if o.Encoding == 0 {
		o.Encoding = keycodec.Default
	}
	if o.Serializer == nil {
		o.Serializer = JSON{}
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	if o.TTL < 0 {
		o.TTL = 0
	}
	if o.Resolver == nil {
		o.Resolver = net.DefaultResolver
	}
	if o.Metrics == nil {
		o.Metrics = cache.NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Dial == nil {
		o.Dial = func(addr string) *redis.Client {
			return redis.NewClient(&redis.Options{
				Addr:         addr,
				Password:     o.Password,
				DB:           o.DB,
				DialTimeout:  o.ConnectTimeout,
				ReadTimeout:  o.OpTimeout,
				WriteTimeout: o.OpTimeout,
				// failures trigger rediscovery instead of retries
				MaxRetries: -1,
			})
		}
	}
}
