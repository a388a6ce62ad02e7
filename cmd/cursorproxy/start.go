package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cursorstudio/cursorproxy/internal/ca"
	"github.com/cursorstudio/cursorproxy/internal/capture"
	"github.com/cursorstudio/cursorproxy/internal/cliconf"
	"github.com/cursorstudio/cursorproxy/internal/dashboard"
	"github.com/cursorstudio/cursorproxy/internal/eventbus"
	"github.com/cursorstudio/cursorproxy/internal/injection"
	"github.com/cursorstudio/cursorproxy/internal/ipc"
	"github.com/cursorstudio/cursorproxy/internal/leafissuer"
	"github.com/cursorstudio/cursorproxy/internal/proxyconf"
	"github.com/cursorstudio/cursorproxy/internal/resolver"
	"github.com/cursorstudio/cursorproxy/internal/transport"
	"github.com/cursorstudio/cursorproxy/internal/upstream"
)

// settingsDelay is the post-handshake safety sleep applied after the
// upstream HTTP/2 SETTINGS frame, giving the server time to apply its own
// settings before the first stream opens.
const settingsDelay = 150 * time.Millisecond

func newStartCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the interception proxy",
		Long: `Starts the proxy's accept loop: TLS termination with CA-minted leaf
certificates, original-destination resolution, and HTTP/2 re-origination to
the configured upstream.

Flags, environment variables, and config-file keys
  Flag            Env var                      Config key
  ───────────────────────────────────────────────────────────
  --port          CURSORPROXY_PORT              proxy.port
  --foreground    CURSORPROXY_FOREGROUND        (flag only)
  --force         CURSORPROXY_FORCE             (flag only)
  --dns-mode      CURSORPROXY_DNS-MODE          resolver.dns_only
  --transparent   CURSORPROXY_TRANSPARENT       (flag only)
  --log-level     CURSORPROXY_LOG-LEVEL         log.level
  --log-format    CURSORPROXY_LOG-FORMAT        log.format
  --config        (flag only)

Precedence: defaults → config file → CURSORPROXY_* env vars → CLI flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cliconf.BindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStart(v) },
	}

	f := cmd.Flags()
	f.Int("port", 0, "listen port (0 = use proxy.port from config, default 443)")
	f.Bool("foreground", false, "has no effect: start always runs attached to the terminal and never detaches")
	f.Bool("force", false, "start even if proxy.enabled is false in the config file")
	f.Bool("dns-mode", false, "resolve the upstream via DNS only, skipping the kernel original-destination lookup (for deployments with no iptables REDIRECT/TPROXY rule in front of the proxy)")
	f.Bool("transparent", false, "force the kernel original-destination lookup even if resolver.dns_only is set in the config file")
	cliconf.AddLoggingFlags(cmd)
	cliconf.AddConfigFlag(cmd)

	return cmd
}

func runStart(v *viper.Viper) error {
	cliconf.SetupLogging(v)
	cfg := proxyconf.LoadConfig(v)

	if !cfg.ProxyEnabled && !v.GetBool("force") {
		return fmt.Errorf("start: proxy.enabled is false (pass --force to override)")
	}
	if port := v.GetInt("port"); port != 0 {
		cfg.ProxyPort = port
	}

	material, err := ca.LoadOrGenerate(cfg.CACertPath, cfg.CAKeyPath, false)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	issuer := leafissuer.New(material)
	bus := eventbus.New()

	policy, err := injection.Load(injectionPolicyPath(v))
	if err != nil {
		return fmt.Errorf("start: load injection policy: %w", err)
	}
	if cfg.InjectionEnabled {
		policy.PolicyFile.Enabled = true
	}

	captureWriter := capture.New(cfg.CaptureDirectory, bus)

	state := proxyconf.New(material, issuer, bus, policy, captureWriter)
	state.ListenAddr = fmt.Sprintf("0.0.0.0:%d", cfg.ProxyPort)
	state.CaptureDir = cfg.CaptureDirectory
	state.UpstreamHost = cfg.UpstreamHost
	state.UpstreamPort = cfg.UpstreamPort

	dnsOnly := v.GetBool("dns-mode") || cfg.ResolverDNSOnly
	if v.GetBool("transparent") {
		dnsOnly = false
	}

	deps := &transport.Deps{
		Issuer: issuer,
		Resolver: resolver.New(resolver.Config{
			FallbackHost: cfg.UpstreamHost,
			FallbackPort: cfg.UpstreamPort,
			ListenPort:   cfg.ProxyPort,
			SentinelAddr: cfg.SentinelAddr,
			DNSOnly:      dnsOnly,
		}),
		Dialer:  upstream.New(),
		Bus:     bus,
		Policy:  policy,
		Capture: captureWriter,
		State:   state,
	}
	tcfg := transport.Config{
		UpstreamHost:  cfg.UpstreamHost,
		UpstreamPort:  cfg.UpstreamPort,
		SettingsDelay: settingsDelay,
	}

	if err := writePIDFile(); err != nil {
		slog.Warn("start: could not write pid file", "error", err)
	}
	defer removePIDFile()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go policy.Watch(ctx, 5*time.Second)

	if ln, err := ipc.Listen(); err != nil {
		slog.Warn("start: IPC/dashboard socket unavailable", "error", err)
	} else {
		slog.Info("dashboard listening", "path", ipc.SocketPath())
		go func() {
			if err := dashboard.New(state).Serve(ctx, ln); err != nil {
				slog.Warn("dashboard: stopped", "error", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", state.ListenAddr)
	if err != nil {
		return fmt.Errorf("start: listen %s: %w", state.ListenAddr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	slog.Info("cursorproxy starting",
		"version", Version,
		"listen", state.ListenAddr,
		"upstream", fmt.Sprintf("%s:%d", cfg.UpstreamHost, cfg.UpstreamPort),
		"capture", cfg.CaptureDirectory != "",
		"injection", policy.IsEnabled(),
	)

	return acceptLoop(ctx, ln, tcfg, deps)
}

// acceptLoop accepts connections until ctx is cancelled, dispatching each one
// to its own goroutine. A per-connection Accept error is logged and the loop
// continues rather than tearing down the listener.
func acceptLoop(ctx context.Context, ln net.Listener, cfg transport.Config, deps *transport.Deps) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("accept: error", "error", err)
			continue
		}
		connID := transport.NextConnID()
		go transport.HandleConnection(ctx, conn, connID, cfg, deps)
	}
}

func injectionPolicyPath(v *viper.Viper) string {
	if p := v.GetString("injection.policy_path"); p != "" {
		return p
	}
	return "injection-policy.json"
}
