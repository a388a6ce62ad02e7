// Package capture writes the on-disk capture artefacts for a completed
// stream: the request body, the response body, and a JSON side-car of
// metadata.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cursorstudio/cursorproxy/internal/eventbus"
)

// Meta is the side-car JSON written alongside each captured stream's bodies.
type Meta struct {
	Service         string            `json:"service"`
	Method          string            `json:"method"`
	RequestHeaders  map[string]string `json:"request_headers"`
	ResponseHeaders map[string]string `json:"response_headers"`
	RequestBytes    int64             `json:"request_bytes"`
	ResponseBytes   int64             `json:"response_bytes"`
	DurationMS      int64             `json:"duration_ms"`
}

// Writer persists capture artefacts under Dir. A zero-value Dir disables
// capture.
type Writer struct {
	Dir string
	Bus *eventbus.Bus
}

// New returns a Writer for dir. If dir is empty, SaveStream is a no-op.
func New(dir string, bus *eventbus.Bus) *Writer {
	return &Writer{Dir: dir, Bus: bus}
}

// SaveStream writes the three artefacts for one completed stream: the
// request body, the response body, and the metadata side-car. Called
// directly by the Stream Multiplexer when it has the actual bodies in
// hand, with connID identifying the stream for the filename.
func (w *Writer) SaveStream(connID uint64, meta Meta, reqBody, respBody []byte) error {
	if w.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("capture: mkdir %s: %w", w.Dir, err)
	}

	serviceSlug := strings.ReplaceAll(meta.Service, ".", "_")
	base := fmt.Sprintf("%s_%s_%s_%d",
		time.Now().UTC().Format("20060102T150405.000000Z"),
		serviceSlug, meta.Method, connID)

	reqPath := filepath.Join(w.Dir, "req_"+base+".bin")
	respPath := filepath.Join(w.Dir, "resp_"+base+".bin")
	metaPath := filepath.Join(w.Dir, "meta_"+base+".json")

	if err := os.WriteFile(reqPath, reqBody, 0o644); err != nil {
		return fmt.Errorf("capture: write request body: %w", err)
	}
	if err := os.WriteFile(respPath, respBody, 0o644); err != nil {
		return fmt.Errorf("capture: write response body: %w", err)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("capture: marshal meta: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0o644); err != nil {
		return fmt.Errorf("capture: write meta: %w", err)
	}

	if w.Bus != nil {
		w.Bus.Publish(eventbus.Event{
			Tag:      eventbus.TagCaptureSaved,
			Time:     time.Now().UTC(),
			ConnID:   connID,
			Service:  meta.Service,
			Method:   meta.Method,
			Endpoint: meta.Service + "/" + meta.Method,
		})
	}
	return nil
}
