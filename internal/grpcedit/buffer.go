package grpcedit

import (
	"errors"
	"io"
)

// readChunkSize bounds a single Read call while accumulating the first
// message; it is unrelated to MaxFrameSize, which bounds outbound writes.
const readChunkSize = 32 * 1024

// BufferFirstMessage reads from r, appending every chunk to an internal
// buffer, until either a full framed message is available or r reaches EOF
// first. readFn is invoked once per underlying Read so callers can release
// HTTP/2 flow-control capacity immediately, before the whole message has
// arrived, rather than withholding it all buffered.
func BufferFirstMessage(r io.Reader, readFn func(n int)) (buf []byte, clientEnded bool, err error) {
	tmp := make([]byte, readChunkSize)
	for {
		if MessageReady(buf) {
			return buf, false, nil
		}
		n, rerr := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if readFn != nil {
				readFn(n)
			}
		}
		if MessageReady(buf) {
			return buf, false, nil
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return buf, true, nil
			}
			return buf, false, rerr
		}
	}
}
