// Package grpcedit implements the gRPC wire-framing math this proxy needs to
// find and rewrite the first message of a chat-service request: parsing a
// stream's :path into (service, method), decoding the length-prefix gRPC
// frame header, and splitting a buffer at the boundary of exactly one framed
// message.
package grpcedit

import (
	"encoding/binary"
	"strings"
)

// FrameHeaderLen is the 1-byte compression flag plus 4-byte big-endian
// length that precedes every gRPC message on the wire.
const FrameHeaderLen = 5

// MaxFrameSize is the HTTP/2 DATA frame cap the chunked sender enforces
// regardless of what either peer advertised.
const MaxFrameSize = 16384

// ChatServiceMarker is the substring that classifies a service name as the
// chat/AI service whose first request message is eligible for injection.
const ChatServiceMarker = "ChatService"

// ParsePath splits an HTTP/2 :path of the form "/service/method" into its
// two components: strip a leading '/', split on the first remaining '/'.
func ParsePath(path string) (service, method string) {
	trimmed := strings.TrimPrefix(path, "/")
	idx := strings.IndexByte(trimmed, '/')
	if idx < 0 {
		return trimmed, ""
	}
	return trimmed[:idx], trimmed[idx+1:]
}

// Injectable reports whether service is the chat service, i.e. whether its
// first request message is a candidate for the Injection Policy.
func Injectable(service string) bool {
	return strings.Contains(service, ChatServiceMarker)
}

// FrameComplete reports whether buf contains at least one full length-prefix
// header. If so it returns the header's declared message length.
func FrameComplete(buf []byte) (length uint32, ok bool) {
	if len(buf) < FrameHeaderLen {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[1:5]), true
}

// MessageReady reports whether buf holds a complete framed message: the
// header plus its declared payload.
func MessageReady(buf []byte) bool {
	length, ok := FrameComplete(buf)
	if !ok {
		return false
	}
	return uint64(len(buf)) >= uint64(FrameHeaderLen)+uint64(length)
}

// SplitFirstMessage splits buf at the boundary of its first framed message.
// buf must satisfy MessageReady.
func SplitFirstMessage(buf []byte) (first, remainder []byte) {
	length, _ := FrameComplete(buf)
	n := FrameHeaderLen + int(length)
	first = buf[:n]
	remainder = buf[n:]
	return first, remainder
}

// EncodeFrame wraps message in a gRPC length-prefix frame with the
// compression flag cleared.
func EncodeFrame(message []byte) []byte {
	out := make([]byte, FrameHeaderLen+len(message))
	out[0] = 0
	binary.BigEndian.PutUint32(out[1:5], uint32(len(message)))
	copy(out[5:], message)
	return out
}
