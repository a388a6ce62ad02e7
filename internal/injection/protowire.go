package injection

import "github.com/cursorstudio/cursorproxy/internal/grpcedit"

// appendField splices a length-delimited protobuf field carrying payload
// under fieldNumber onto the end of framedMessage's existing payload, and
// re-frames the result as a gRPC message. It never parses the existing
// payload — protobuf wire format permits appending an additional field
// after the last one without disturbing any field already present.
func appendField(framedMessage []byte, fieldNumber int, payload []byte) []byte {
	body := framedMessage[grpcedit.FrameHeaderLen:]

	tag := uint64(fieldNumber)<<3 | 2 // wire type 2: length-delimited
	out := make([]byte, 0, len(body)+len(payload)+16)
	out = append(out, body...)
	out = appendVarint(out, tag)
	out = appendVarint(out, uint64(len(payload)))
	out = append(out, payload...)

	return grpcedit.EncodeFrame(out)
}

// appendVarint appends v to buf using protobuf's base-128 varint encoding.
func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}
