package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/soheilhy/cmux"

	"github.com/cursorstudio/cursorproxy/internal/eventbus"
	"github.com/cursorstudio/cursorproxy/internal/proxyconf"
)

// Server is the local control surface bound to the IPC socket: an HTTP JSON
// status/captures API and a raw newline-JSON event stream, split off one
// listener with cmux.
type Server struct {
	State *proxyconf.State
}

// New returns a Server backed by state.
func New(state *proxyconf.State) *Server {
	return &Server{State: state}
}

// Serve splits ln and blocks serving both halves until ln is closed or ctx
// is cancelled. Matches HTTP/1.1 requests to the status API; everything
// else (an event-feed client that never sends an HTTP request line) goes
// to the raw event stream.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	m := cmux.New(ln)
	httpL := m.Match(cmux.HTTP1Fast())
	eventL := m.Match(cmux.Any())

	httpSrv := &http.Server{Handler: s.httpMux()}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
		_ = ln.Close()
	}()

	go func() {
		if err := s.serveEvents(eventL); err != nil {
			slog.Debug("dashboard: event listener stopped", "error", err)
		}
	}()

	go func() {
		if err := httpSrv.Serve(httpL); err != nil && err != http.ErrServerClosed {
			slog.Debug("dashboard: http listener stopped", "error", err)
		}
	}()

	err := m.Serve()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) httpMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/captures", s.handleCaptures)
	return mux
}

// statusResponse is the JSON body of GET /status.
type statusResponse struct {
	StartedAt   time.Time                  `json:"started_at"`
	UptimeMS    int64                      `json:"uptime_ms"`
	CAExpiresAt time.Time                  `json:"ca_expires_at"`
	Connections []proxyconf.ConnSnapshot   `json:"connections"`
	Injection   bool                       `json:"injection_enabled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		StartedAt:   s.State.StartedAt,
		UptimeMS:    time.Since(s.State.StartedAt).Milliseconds(),
		Connections: s.State.Snapshot(),
	}
	if s.State.CA != nil && s.State.CA.Cert != nil {
		resp.CAExpiresAt = s.State.CA.Cert.NotAfter
	}
	if s.State.Policy != nil {
		resp.Injection = s.State.Policy.IsEnabled()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleCaptures(w http.ResponseWriter, r *http.Request) {
	if s.State.CaptureDir == "" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]string{})
		return
	}
	entries, err := os.ReadDir(s.State.CaptureDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Base(e.Name()))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(names)
}

// serveEvents accepts raw event-feed connections and streams every bus
// publication to each, newline-JSON framed, until the subscriber disconnects.
func (s *Server) serveEvents(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.streamTo(conn)
	}
}

func (s *Server) streamTo(conn net.Conn) {
	defer conn.Close()
	sub := s.State.Bus.Subscribe()
	defer s.State.Bus.Unsubscribe(sub)

	w := newEventWriter(conn)
	for ev := range sub.Events() {
		if err := w.WriteEvent(ev); err != nil {
			return
		}
	}
}

// DialEvents connects to addr's event feed and invokes onEvent for each
// decoded Event until the connection ends; used by `cmd dashboard`.
func DialEvents(network, addr string, onEvent func(eventbus.Event)) error {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return readEventLines(conn, onEvent)
}
