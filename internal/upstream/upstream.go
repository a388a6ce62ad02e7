// Package upstream opens a TCP connection to the resolved address, marks the
// socket so firewall redirect rules do not re-capture it, and completes TLS
// with ALPN h2.
package upstream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"
)

// SentinelMark is the kernel socket mark applied to outbound upstream
// connections. iptables rules exclude traffic carrying this mark from the
// redirect that feeds this proxy, preventing a loop back into itself.
const SentinelMark = 0x1337

// Dialer opens upstream connections.
type Dialer struct {
	// DialTimeout bounds the TCP handshake.
	DialTimeout time.Duration
}

// New returns a Dialer with sane defaults.
func New() *Dialer {
	return &Dialer{DialTimeout: 10 * time.Second}
}

// Dial opens a TCP+TLS connection to addr, presenting sniName over ALPN h2.
// The TCP socket is marked with SentinelMark; a failure to apply the mark is
// logged and otherwise ignored, since it is a hardening measure, not a
// correctness requirement.
func (d *Dialer) Dial(ctx context.Context, addr *net.TCPAddr, sniName string) (*tls.Conn, error) {
	dialer := &net.Dialer{
		Timeout: d.DialTimeout,
		Control: markControl,
	}

	raw, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("upstream: dial %s: %w", addr, err)
	}
	if tcpConn, ok := raw.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	tlsConn := tls.Client(raw, &tls.Config{
		ServerName: sniName,
		NextProtos: []string{"h2"},
		MinVersion: tls.VersionTLS12,
	})
	hctx, cancel := context.WithTimeout(ctx, d.DialTimeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("upstream: tls handshake: %w", err)
	}

	return tlsConn, nil
}

// markControl is installed as the net.Dialer's Control hook; it applies
// SentinelMark to the raw socket before connect(2) completes.
func markControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = setSockMark(int(fd), SentinelMark)
	})
	if err != nil {
		return err
	}
	// Non-fatal: SO_MARK is a Linux-only hardening measure against
	// firewall-redirect loops, not a correctness requirement.
	if sockErr != nil {
		slog.Warn("upstream: failed to set socket mark", "error", sockErr)
	}
	return nil
}
