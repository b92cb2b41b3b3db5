// Package config loads cache settings from the environment (and an optional
// .env file) into a Cache struct.
package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/IvanBrykalov/replcache/keycodec"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"
)

// Prefix is prepended to every variable name.
const Prefix = "CACHE_"

const (
	KindLocal      = "local"
	KindReplicated = "replicated"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid cache configuration")

// Duration accepts time.ParseDuration syntax plus days and weeks ("1d12h").
// An empty string or "0" is zero.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := str2duration.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Cache describes which cache to open and how.
type Cache struct {
	Kind        string   `env:"KIND" envDefault:"local"`
	MaxEntries  int      `env:"MAX_ENTRIES" envDefault:"100"`
	TTL         Duration `env:"TTL"`
	AccessOrder bool     `env:"ACCESS_ORDER"`

	Master         string   `env:"MASTER"`
	Replicas       []string `env:"REPLICAS" envSeparator:","`
	KeyEncoding    string   `env:"KEY_ENCODING" envDefault:"hashcode"`
	Serializer     string   `env:"SERIALIZER" envDefault:"json"`
	Password       string   `env:"PASSWORD"`
	DB             int      `env:"DB"`
	ConnectTimeout Duration `env:"CONNECT_TIMEOUT" envDefault:"2s"`
	OpTimeout      Duration `env:"OP_TIMEOUT" envDefault:"2s"`
}

// Load reads .env (if present) into the process environment, then parses
// and validates the CACHE_* variables.
func Load() (Cache, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Cache{}, errors.Wrap(err, "config: load .env")
	}
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses the CACHE_* variables from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (Cache, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

// MustLoad is Load that panics on error.
func MustLoad() Cache {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func parse(opts env.Options) (Cache, error) {
	var c Cache
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Cache{}, errors.Wrap(err, "config: parse environment")
	}
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	if err := c.Validate(); err != nil {
		return Cache{}, err
	}
	return c, nil
}

// Validate checks field combinations that parsing alone cannot.
func (c Cache) Validate() error {
	switch c.Kind {
	case KindLocal:
	case KindReplicated:
		if strings.TrimSpace(c.Master) == "" && len(c.endpoints()) == 0 {
			return errors.Wrap(ErrInvalid, "replicated cache needs CACHE_MASTER or CACHE_REPLICAS")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown kind %q", c.Kind)
	}
	if c.MaxEntries < 0 {
		return errors.Wrapf(ErrInvalid, "max entries %d", c.MaxEntries)
	}
	if c.TTL < 0 {
		return errors.Wrapf(ErrInvalid, "ttl %s", c.TTL.Std())
	}
	if _, err := keycodec.Parse(c.KeyEncoding); err != nil {
		return errors.WithSecondaryError(errors.Wrapf(ErrInvalid, "key encoding %q", c.KeyEncoding), err)
	}
	switch strings.ToLower(c.Serializer) {
	case "", "json", "msgpack":
	default:
		return errors.Wrapf(ErrInvalid, "unknown serializer %q", c.Serializer)
	}
	return nil
}

// Encoding returns the parsed key encoding. Validate guarantees it parses.
func (c Cache) Encoding() keycodec.Encoding {
	e, err := keycodec.Parse(c.KeyEncoding)
	if err != nil {
		return keycodec.Default
	}
	return e
}

// ReplicaList returns the non-blank replica addresses.
func (c Cache) ReplicaList() []string { return c.endpoints() }

func (c Cache) endpoints() []string {
	out := make([]string, 0, len(c.Replicas))
	for _, r := range c.Replicas {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
