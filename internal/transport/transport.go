// Package transport drives, for each accepted TCP client, a server-side
// HTTP/2 session terminating a freshly issued leaf certificate and a
// client-side HTTP/2 session toward the resolved upstream, pairing every
// inbound stream with an outbound one.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"github.com/cursorstudio/cursorproxy/internal/capture"
	"github.com/cursorstudio/cursorproxy/internal/eventbus"
	"github.com/cursorstudio/cursorproxy/internal/grpcedit"
	"github.com/cursorstudio/cursorproxy/internal/injection"
	"github.com/cursorstudio/cursorproxy/internal/leafissuer"
	"github.com/cursorstudio/cursorproxy/internal/proxyconf"
	"github.com/cursorstudio/cursorproxy/internal/resolver"
	"github.com/cursorstudio/cursorproxy/internal/upstream"
)

// Config carries the per-process settings HandleConnection needs that are
// not tied to any one connection.
type Config struct {
	// UpstreamHost is the single upstream family this proxy targets (e.g.
	// "api2.cursor.sh"); also used as the SNI/leaf certificate name.
	UpstreamHost string
	UpstreamPort int

	// SettingsDelay is the post-handshake safety sleep applied before the
	// first stream opens on the upstream connection.
	SettingsDelay time.Duration
}

// Deps bundles the shared collaborators every connection handler needs.
type Deps struct {
	Issuer   *leafissuer.Issuer
	Resolver *resolver.Resolver
	Dialer   *upstream.Dialer
	Bus      *eventbus.Bus
	Policy   *injection.Policy
	Capture  *capture.Writer
	State    *proxyconf.State
}

var connCounter atomic.Uint64

// NextConnID allocates a monotonic connection id, assigned at accept time.
func NextConnID() uint64 { return connCounter.Add(1) }

// HandleConnection drives one accepted TCP connection to completion: TLS
// with a freshly issued leaf, ALPN gating, upstream dial, HTTP/2 handshakes
// on both legs, and the stream accept loop. It never returns an error to the
// caller — all failures are logged and expressed only as event-bus
// publications, so one misbehaving connection never unwinds past the
// accept loop that spawned it.
func HandleConnection(ctx context.Context, raw net.Conn, connID uint64, cfg Config, deps *Deps) {
	defer raw.Close()
	opened := time.Now()
	peerAddr := raw.RemoteAddr().String()

	deps.Bus.Publish(eventbus.Event{
		Tag: eventbus.TagConnectionOpened, Time: opened.UTC(),
		ConnID: connID, PeerAddr: peerAddr,
	})
	if deps.State != nil {
		deps.State.TrackOpen(connID, peerAddr)
		defer deps.State.TrackClose(connID)
	}

	alpn, upstreamAddrStr, err := serveConnection(ctx, raw, connID, cfg, deps)
	if deps.State != nil {
		deps.State.TrackUpdate(connID, upstreamAddrStr, alpn)
	}

	deps.Bus.Publish(eventbus.Event{
		Tag: eventbus.TagConnectionClosed, Time: time.Now().UTC(),
		ConnID: connID, PeerAddr: peerAddr, UpstreamAddr: upstreamAddrStr,
		ALPN: alpn, DurationMS: time.Since(opened).Milliseconds(),
	})
	if err != nil {
		slog.Warn("transport: connection ended", "conn", connID, "error", err)
	}
}

func serveConnection(ctx context.Context, raw net.Conn, connID uint64, cfg Config, deps *Deps) (alpn, upstreamAddr string, err error) {
	dstAddr, rerr := deps.Resolver.Resolve(raw)
	if rerr != nil {
		return "", "", fmt.Errorf("resolve destination: %w", rerr)
	}

	leaf, ierr := deps.Issuer.Issue(cfg.UpstreamHost)
	if ierr != nil {
		return "", "", fmt.Errorf("issue leaf certificate: %w", ierr)
	}

	tlsConn := tls.Server(raw, &tls.Config{
		Certificates: []tls.Certificate{leaf.TLSCertificate()},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return "", "", fmt.Errorf("client tls handshake: %w", err)
	}

	alpn = tlsConn.ConnectionState().NegotiatedProtocol
	if alpn != "h2" {
		// A client that didn't negotiate h2 gets no upstream connection and
		// no further work: this proxy only re-originates HTTP/2.
		return alpn, "", nil
	}

	upstreamTLS, derr := deps.Dialer.Dial(ctx, dstAddr, cfg.UpstreamHost)
	if derr != nil {
		return alpn, "", fmt.Errorf("dial upstream: %w", derr)
	}
	defer upstreamTLS.Close()
	upstreamAddr = upstreamTLS.RemoteAddr().String()

	if got := upstreamTLS.ConnectionState().NegotiatedProtocol; got != "" && got != "h2" {
		slog.Warn("transport: upstream omitted h2 ALPN", "conn", connID, "got", got)
	}

	t2 := &http2.Transport{MaxReadFrameSize: grpcedit.MaxFrameSize}
	cc, cerr := t2.NewClientConn(upstreamTLS)
	if cerr != nil {
		return alpn, upstreamAddr, fmt.Errorf("upstream http2 handshake: %w", cerr)
	}

	// Without this delay, very fast concurrent requests can race the
	// upstream's application of our SETTINGS frame and get rejected with a
	// frame-size error.
	if cfg.SettingsDelay > 0 {
		time.Sleep(cfg.SettingsDelay)
	}
	if !cc.CanTakeNewRequest() {
		return alpn, upstreamAddr, fmt.Errorf("upstream connection not ready")
	}

	h2srv := &http2.Server{
		MaxConcurrentStreams: 128,
		MaxReadFrameSize:     grpcedit.MaxFrameSize,
	}
	mux := &connHandler{
		connID: connID,
		cfg:    cfg,
		deps:   deps,
		cc:     cc,
	}
	h2srv.ServeConn(tlsConn, &http2.ServeConnOpts{
		Context: ctx,
		Handler: mux,
	})

	return alpn, upstreamAddr, nil
}

// connHandler implements http.Handler; golang.org/x/net/http2 invokes
// ServeHTTP in its own goroutine per inbound stream, giving each stream an
// independent handler.
type connHandler struct {
	connID     uint64
	cfg        Config
	deps       *Deps
	cc         *http2.ClientConn
	streamSeq  atomic.Uint32
}

func (h *connHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	streamID := h.streamSeq.Add(1)
	handleStream(w, r, streamID, h.connID, h.cfg, h.deps, h.cc)
}
