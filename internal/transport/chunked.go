package transport

import (
	"io"
	"net/http"

	"github.com/cursorstudio/cursorproxy/internal/grpcedit"
)

// responseReadChunk bounds a single Read from the upstream response body;
// unrelated to grpcedit.MaxFrameSize, which bounds what chunkedSend ever
// writes downstream in one DATA frame.
const responseReadChunk = 32 * 1024

// chunkedSend splits data into sequential sub-chunks no larger than
// grpcedit.MaxFrameSize and flushes each one immediately, regardless of what
// either peer advertised as its own max frame size.
func chunkedSend(w http.ResponseWriter, flusher http.Flusher, data []byte) error {
	if len(data) == 0 {
		flusher.Flush()
		return nil
	}
	for len(data) > 0 {
		n := len(data)
		if n > grpcedit.MaxFrameSize {
			n = grpcedit.MaxFrameSize
		}
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		flusher.Flush()
		data = data[n:]
	}
	return nil
}

// cappedReader wraps an io.Reader so that no single Read call returns more
// than grpcedit.MaxFrameSize bytes, keeping the request body this proxy hands
// to http2.ClientConn.RoundTrip under the same per-write ceiling chunkedSend
// enforces on the response path, regardless of how large a buffer the caller
// passes in.
type cappedReader struct {
	r io.Reader
}

func newCappedReader(r io.Reader) *cappedReader {
	return &cappedReader{r: r}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if len(p) > grpcedit.MaxFrameSize {
		p = p[:grpcedit.MaxFrameSize]
	}
	return c.r.Read(p)
}
