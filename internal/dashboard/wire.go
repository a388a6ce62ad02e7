// Package dashboard implements the proxy's local control surface: one Unix
// socket, split by cmux into an HTTP JSON status API and a raw
// newline-delimited-JSON event stream.
package dashboard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cursorstudio/cursorproxy/internal/eventbus"
)

// writeDeadline bounds a single event write so one slow dashboard client
// can never stall the event bus's publish path.
const writeDeadline = 5 * time.Second

// eventWriter frames events as one JSON object per line. No encryption
// layer: the socket is owner-restricted, so there is no second party to
// encrypt against.
type eventWriter struct {
	conn net.Conn
}

func newEventWriter(conn net.Conn) *eventWriter {
	return &eventWriter{conn: conn}
}

func (w *eventWriter) WriteEvent(ev eventbus.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_, err = w.conn.Write(append(raw, '\n'))
	return err
}

// readEventLines is the client-side half: it decodes one Event per line
// until the connection closes or ctx-equivalent cancellation closes conn.
func readEventLines(conn net.Conn, onEvent func(eventbus.Event)) error {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		var ev eventbus.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue
		}
		onEvent(ev)
	}
	return sc.Err()
}
