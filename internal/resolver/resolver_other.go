//go:build !linux

package resolver

import (
	"errors"
	"net"
)

// originalDst is unavailable off Linux; the resolver always falls back to
// the configured DNS name on these platforms.
func originalDst(_ net.Conn) (*net.TCPAddr, error) {
	return nil, errors.New("resolver: SO_ORIGINAL_DST unsupported on this platform")
}
