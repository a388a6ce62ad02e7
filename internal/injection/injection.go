// Package injection implements the injection policy: a configuration object,
// loaded from and hot-reloaded from a JSON file, describing whether and how
// to rewrite the first gRPC message of a chat request.
package injection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// contextFieldNumber is the protobuf field number the injected context is
// appended under. Chat request messages reserve no field in this range, and
// protobuf wire format guarantees an unknown length-delimited field appended
// after the last known field is preserved by any standards-conforming
// decoder, so the editor never needs the request's full schema to splice
// one in.
const contextFieldNumber = 999

// Policy is loaded from a typed JSON file and consulted for every injectable
// stream. Reloads replace its fields in place under a mutex; callers read a
// consistent snapshot via the accessor methods below rather than touching
// PolicyFile directly while a reload may be in flight.
type Policy struct {
	mu sync.RWMutex
	PolicyFile

	path string
}

// PolicyFile is the on-disk shape of the injection policy.
type PolicyFile struct {
	Enabled       bool              `json:"enabled"`
	SystemPrompt  string            `json:"system_prompt,omitempty"`
	ContextFiles  []string          `json:"context_files,omitempty"`
	SpoofVersion  string            `json:"spoof_version,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// Load reads a Policy from path. A missing file yields a disabled policy
// rather than an error, since injection is opt-in.
func Load(path string) (*Policy, error) {
	p := &Policy{path: path}
	if err := p.Reload(); err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}
	return p, nil
}

// Reload re-reads the policy file in place.
func (p *Policy) Reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	var pf PolicyFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("injection: parse %s: %w", p.path, err)
	}
	p.mu.Lock()
	p.PolicyFile = pf
	p.mu.Unlock()
	return nil
}

// Save persists the current policy to disk (used by the CLI's `inject`
// sub-operations).
func (p *Policy) Save() error {
	p.mu.RLock()
	pf := p.PolicyFile
	p.mu.RUnlock()
	raw, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("injection: marshal policy: %w", err)
	}
	return os.WriteFile(p.path, raw, 0o644)
}

// IsEnabled reports whether injection is currently active.
func (p *Policy) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Enabled
}

// contextPayload concatenates the system prompt and every context file's
// contents into the bytes spliced into the outbound message.
func (p *Policy) contextPayload() ([]byte, error) {
	p.mu.RLock()
	prompt := p.SystemPrompt
	files := append([]string(nil), p.ContextFiles...)
	p.mu.RUnlock()

	var out []byte
	if prompt != "" {
		out = append(out, []byte(prompt)...)
		out = append(out, '\n')
	}
	for _, f := range files {
		contents, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("injection: read context file %s: %w", f, err)
		}
		out = append(out, contents...)
		out = append(out, '\n')
	}
	return out, nil
}

// Rewrite implements the Injection Policy API's rewrite operation: given the
// raw bytes of the first gRPC message (header included) and the endpoint
// string, it returns a replacement framed message, or ok=false if the
// policy declines (disabled, or nothing configured to inject).
func (p *Policy) Rewrite(firstMessage []byte, endpoint string) (replacement []byte, ok bool) {
	if !p.IsEnabled() {
		return nil, false
	}
	payload, err := p.contextPayload()
	if err != nil || len(payload) == 0 {
		return nil, false
	}
	return appendField(firstMessage, contextFieldNumber, payload), true
}

// HeaderOverrides returns a snapshot of the configured header overrides.
func (p *Policy) HeaderOverrides() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.Headers))
	for k, v := range p.Headers {
		out[k] = v
	}
	return out
}

// Watch polls the policy file's mtime every interval and reloads it in
// place whenever it changes, until ctx is cancelled. No file-watcher
// library (fsnotify et al.) is introduced for this: a single polled mtime
// check for one config file every few seconds does not justify the extra
// dependency and platform-specific watch semantics it would bring in.
func (p *Policy) Watch(ctx context.Context, interval time.Duration) {
	var lastMod time.Time
	if info, err := os.Stat(p.path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(p.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				if err := p.Reload(); err != nil {
					slog.Warn("injection: reload failed", "error", err)
				} else {
					slog.Info("injection: policy reloaded", "path", p.path)
				}
			}
		}
	}
}

// SpoofedVersion returns the configured client-version override, if any.
func (p *Policy) SpoofedVersion() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.SpoofVersion
}
