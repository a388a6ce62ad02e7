package resolver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoopLoopback(t *testing.T) {
	r := New(Config{})
	assert.True(t, r.isLoop(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 443}))
}

func TestIsLoopNilAddr(t *testing.T) {
	r := New(Config{})
	assert.True(t, r.isLoop(nil))
}

func TestIsLoopSentinelAddr(t *testing.T) {
	r := New(Config{SentinelAddr: "10.0.0.1"})
	assert.True(t, r.isLoop(&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 8443}))
	assert.False(t, r.isLoop(&net.TCPAddr{IP: net.ParseIP("10.0.0.2"), Port: 8443}))
}

func TestIsLoopOwnListenPort(t *testing.T) {
	r := New(Config{ListenPort: 8443})
	assert.True(t, r.isLoop(&net.TCPAddr{IP: net.ParseIP("8.8.8.8"), Port: 8443}))
	assert.False(t, r.isLoop(&net.TCPAddr{IP: net.ParseIP("8.8.8.8"), Port: 443}))
}

func TestIsLoopOrdinaryDestination(t *testing.T) {
	r := New(Config{ListenPort: 8443, SentinelAddr: "10.0.0.1"})
	assert.False(t, r.isLoop(&net.TCPAddr{IP: net.ParseIP("1.2.3.4"), Port: 443}))
}

func TestDNSFallbackResolvesConfiguredHostAndPort(t *testing.T) {
	r := New(Config{FallbackHost: "localhost", FallbackPort: 443})
	addr, err := r.dnsFallback()
	require.NoError(t, err)
	assert.Equal(t, 443, addr.Port)
	assert.True(t, addr.IP.IsLoopback())
}

func TestResolveWithDNSOnlySkipsKernelLookup(t *testing.T) {
	r := New(Config{FallbackHost: "localhost", FallbackPort: 8443, DNSOnly: true})
	addr, err := r.Resolve(&net.TCPConn{})
	require.NoError(t, err)
	assert.Equal(t, 8443, addr.Port)
	assert.True(t, addr.IP.IsLoopback())
}
