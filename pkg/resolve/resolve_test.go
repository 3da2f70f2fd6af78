package resolve

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDNS struct {
	answers map[string][]net.IPAddr
	calls   int
}

func (f *fakeDNS) lookup(_ context.Context, host string) ([]net.IPAddr, error) {
	f.calls++
	if a, ok := f.answers[host]; ok {
		return a, nil
	}
	return nil, errors.New("no such host")
}

func addrs(ips ...string) []net.IPAddr {
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out
}

func TestResolvePrefersIPv4(t *testing.T) {
	dns := &fakeDNS{answers: map[string][]net.IPAddr{
		"dual.example.com": addrs("2001:db8::1", "203.0.113.9"),
		"v6.example.com":   addrs("2001:db8::2"),
	}}
	r := New(WithLookup(dns.lookup))
	ctx := context.Background()

	assert.Equal(t, "203.0.113.9", r.Resolve(ctx, "dual.example.com"))
	assert.Equal(t, "2001:db8::2", r.Resolve(ctx, "v6.example.com"))
	assert.Equal(t, "missing.example.com", r.Resolve(ctx, "missing.example.com"))
}

func TestResolveCaches(t *testing.T) {
	dns := &fakeDNS{answers: map[string][]net.IPAddr{"a.example.com": addrs("198.51.100.1")}}
	r := New(WithLookup(dns.lookup), WithCacheSize(4))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, "198.51.100.1", r.Resolve(ctx, "a.example.com"))
	}
	assert.Equal(t, 1, dns.calls)

	uncached := New(WithLookup(dns.lookup), WithCacheSize(0))
	uncached.Resolve(ctx, "a.example.com")
	uncached.Resolve(ctx, "a.example.com")
	assert.Equal(t, 3, dns.calls)
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	dns := &fakeDNS{answers: map[string][]net.IPAddr{}}
	r := New(WithLookup(dns.lookup), WithCacheSize(4))
	ctx := context.Background()

	assert.Equal(t, "late.example.com", r.Resolve(ctx, "late.example.com"))
	assert.Equal(t, 1, dns.calls)

	dns.answers["late.example.com"] = addrs("198.51.100.7")
	assert.Equal(t, "198.51.100.7", r.Resolve(ctx, "late.example.com"))
	assert.Equal(t, "198.51.100.7", r.Resolve(ctx, "late.example.com"))
	assert.Equal(t, 2, dns.calls)
}

func TestResolveOfflineAndLiterals(t *testing.T) {
	dns := &fakeDNS{}
	r := New(WithLookup(dns.lookup), WithOffline(true))
	ctx := context.Background()

	assert.Equal(t, "a.example.com", r.Resolve(ctx, "a.example.com"))
	assert.Equal(t, "10.0.0.1", r.Resolve(ctx, "10.0.0.1"))
	assert.Equal(t, "", r.Resolve(ctx, ""))
	assert.Zero(t, dns.calls)
}

func TestStatic(t *testing.T) {
	s := Static{"app.local": "10.9.9.9"}
	assert.Equal(t, "10.9.9.9", s.Resolve(context.Background(), "app.local"))
	assert.Equal(t, "other.local", s.Resolve(context.Background(), "other.local"))
}
