// Package proxyconf holds the process-wide state every connection handler
// shares, and the typed configuration loaded from flags/env/config file.
package proxyconf

import (
	"sync"
	"time"

	"github.com/cursorstudio/cursorproxy/internal/ca"
	"github.com/cursorstudio/cursorproxy/internal/capture"
	"github.com/cursorstudio/cursorproxy/internal/eventbus"
	"github.com/cursorstudio/cursorproxy/internal/injection"
	"github.com/cursorstudio/cursorproxy/internal/leafissuer"
)

// State is the one-per-process state shared by every connection handler: CA
// material, issuer cache, injection policy, event bus handle, capture
// directory, listener address, and the live connection table backing the
// dashboard's status endpoint. Initialized once at startup and torn down on
// shutdown.
type State struct {
	StartedAt time.Time

	CA      *ca.Material
	Issuer  *leafissuer.Issuer
	Bus     *eventbus.Bus
	Policy  *injection.Policy
	Capture *capture.Writer

	ListenAddr   string
	CaptureDir   string
	UpstreamHost string
	UpstreamPort int

	mu          sync.RWMutex
	connections map[uint64]ConnSnapshot
}

// ConnSnapshot is a point-in-time view of one live connection, used by the
// dashboard's status endpoint and the `status` subcommand.
type ConnSnapshot struct {
	ID           uint64    `json:"id"`
	PeerAddr     string    `json:"peer_addr"`
	UpstreamAddr string    `json:"upstream_addr"`
	ALPN         string    `json:"alpn"`
	OpenedAt     time.Time `json:"opened_at"`
}

// New assembles a State from its already-initialized collaborators.
func New(material *ca.Material, issuer *leafissuer.Issuer, bus *eventbus.Bus, policy *injection.Policy, cw *capture.Writer) *State {
	return &State{
		StartedAt:   time.Now(),
		CA:          material,
		Issuer:      issuer,
		Bus:         bus,
		Policy:      policy,
		Capture:     cw,
		connections: make(map[uint64]ConnSnapshot),
	}
}

// TrackOpen records a newly accepted connection.
func (s *State) TrackOpen(id uint64, peerAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[id] = ConnSnapshot{ID: id, PeerAddr: peerAddr, OpenedAt: time.Now()}
}

// TrackUpdate fills in fields that are only known once the TLS/ALPN
// handshake and upstream dial complete.
func (s *State) TrackUpdate(id uint64, upstreamAddr, alpn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.connections[id]; ok {
		snap.UpstreamAddr = upstreamAddr
		snap.ALPN = alpn
		s.connections[id] = snap
	}
}

// TrackClose removes a connection once its handler returns.
func (s *State) TrackClose(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, id)
}

// Snapshot returns every currently tracked connection.
func (s *State) Snapshot() []ConnSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConnSnapshot, 0, len(s.connections))
	for _, snap := range s.connections {
		out = append(out, snap)
	}
	return out
}
