package replicated

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultPort is used when an endpoint string carries no (valid) port.
const DefaultPort = 6379

// ErrInvalidEndpoint is returned for endpoint strings without a host.
var ErrInvalidEndpoint = errors.New("replicated: invalid endpoint")

// Role tells whether an endpoint is written to or read from.
type Role int

const (
	RoleMaster Role = iota
	RoleReplica
)

func (r Role) String() string {
	if r == RoleReplica {
		return "replica"
	}
	return "master"
}

// Endpoint is a backend address with its configured role.
type Endpoint struct {
	Host string
	Port int
	Role Role
}

// Addr returns host:port, bracketing IPv6 literals.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string { return e.Role.String() + "@" + e.Addr() }

// ParseEndpoint parses "host[:port]". A missing or unparseable port falls
// back to DefaultPort; a missing host is an error.
func ParseEndpoint(s string, role Role) (Endpoint, error) {
	s = strings.TrimSpace(s)
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port, or a bare IPv6 literal
		host, portStr = strings.Trim(s, "[]"), ""
	}
	if host == "" {
		return Endpoint{}, errors.Wrapf(ErrInvalidEndpoint, "%q", s)
	}
	port := DefaultPort
	if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p <= 65535 {
		port = p
	}
	return Endpoint{Host: host, Port: port, Role: role}, nil
}

// ParseEndpoints parses a list of replica addresses, skipping blanks.
// Invalid entries are returned in err but do not stop parsing.
func ParseEndpoints(list []string, role Role) ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(list))
	var errs error
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		ep, err := ParseEndpoint(s, role)
		if err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		out = append(out, ep)
	}
	return out, errs
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Canonicalize maps a host name or literal to the address used to decide
// whether two endpoints are the same server. Every loopback spelling
// ("localhost", "127.0.0.1", "::1") collapses to 127.0.0.1.
func Canonicalize(ctx context.Context, r Resolver, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return canonicalIP(ip), nil
	}
	if strings.EqualFold(host, "localhost") {
		return "127.0.0.1", nil
	}
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", host)
	}
	if len(addrs) == 0 {
		return "", errors.Newf("resolve %s: no addresses", host)
	}
	if ip := net.ParseIP(addrs[0]); ip != nil {
		return canonicalIP(ip), nil
	}
	return addrs[0], nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// localAddress returns this machine's first non-loopback unicast address,
// preferring IPv4, or "" when there is none.
func localAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	var v6 string
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() || !ipn.IP.IsGlobalUnicast() {
			continue
		}
		if ipn.IP.To4() != nil {
			return ipn.IP.String()
		}
		if v6 == "" {
			v6 = ipn.IP.String()
		}
	}
	return v6
}

func canonicalIP(ip net.IP) string {
	if ip.IsLoopback() {
		return "127.0.0.1"
	}
	return ip.String()
}
