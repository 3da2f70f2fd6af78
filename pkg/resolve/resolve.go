// Package resolve maps hostnames from scanner reports to addresses.
package resolve

import (
	"context"
	"log/slog"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Resolver turns a hostname into an IP address string. It never fails;
// when a name cannot be resolved the name itself is returned.
type Resolver interface {
	Resolve(ctx context.Context, host string) string
}

// LookupFunc matches net.Resolver.LookupIPAddr.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Option configures a NetResolver.
type Option func(*NetResolver)

// WithOffline disables network lookups. Literal IPs still pass through.
func WithOffline(offline bool) Option {
	return func(r *NetResolver) { r.offline = offline }
}

// WithTimeout bounds every lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *NetResolver) { r.timeout = d }
}

// WithCacheSize sets the number of remembered answers. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(r *NetResolver) { r.cacheSize = n }
}

// WithLookup replaces the DNS lookup.
func WithLookup(fn LookupFunc) Option {
	return func(r *NetResolver) { r.lookup = fn }
}

// NetResolver resolves through DNS, preferring the first IPv4 answer.
type NetResolver struct {
	offline   bool
	timeout   time.Duration
	cacheSize int
	lookup    LookupFunc
	cache     *lru.Cache[string, string]
}

const (
	DefaultTimeout   = 3 * time.Second
	DefaultCacheSize = 1024
)

func New(opts ...Option) *NetResolver {
	r := &NetResolver{
		timeout:   DefaultTimeout,
		cacheSize: DefaultCacheSize,
		lookup:    net.DefaultResolver.LookupIPAddr,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize > 0 {
		// only fails for non-positive sizes
		r.cache, _ = lru.New[string, string](r.cacheSize)
	}
	return r
}

func (r *NetResolver) Resolve(ctx context.Context, host string) string {
	if host == "" {
		return host
	}
	if ip := net.ParseIP(host); ip != nil {
		return host
	}
	if r.offline {
		return host
	}
	if r.cache != nil {
		if addr, ok := r.cache.Get(host); ok {
			return addr
		}
	}

	addr, ok := r.resolve(ctx, host)
	if !ok {
		return host
	}
	if r.cache != nil {
		r.cache.Add(host, addr)
	}
	return addr
}

// resolve performs one lookup; ok is false when it failed.
func (r *NetResolver) resolve(ctx context.Context, host string) (addr string, ok bool) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	addrs, err := r.lookup(ctx, host)
	if err != nil || len(addrs) == 0 {
		slog.Debug("hostname lookup failed", "host", host, "err", err)
		return "", false
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), true
		}
	}
	return addrs[0].IP.String(), true
}

// Static resolves from a fixed table and returns unknown names unchanged.
type Static map[string]string

func (s Static) Resolve(_ context.Context, host string) string {
	if addr, ok := s[host]; ok {
		return addr
	}
	return host
}
