package grpcedit

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader hands back its data in small fixed-size pieces, to exercise
// BufferFirstMessage's accumulate-across-reads loop.
type chunkedReader struct {
	data      []byte
	chunkSize int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunkSize
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestBufferFirstMessageCompletesAcrossReads(t *testing.T) {
	framed := EncodeFrame([]byte("a complete message"))
	r := &chunkedReader{data: framed, chunkSize: 3}

	var releasedBytes int
	buf, clientEnded, err := BufferFirstMessage(r, func(n int) { releasedBytes += n })
	require.NoError(t, err)
	assert.False(t, clientEnded)
	assert.Equal(t, framed, buf)
	assert.Equal(t, len(framed), releasedBytes)
}

func TestBufferFirstMessageWithRemainder(t *testing.T) {
	first := EncodeFrame([]byte("one"))
	second := EncodeFrame([]byte("two"))
	combined := append(append([]byte(nil), first...), second...)

	buf, clientEnded, err := BufferFirstMessage(bytes.NewReader(combined), nil)
	require.NoError(t, err)
	assert.False(t, clientEnded)
	// BufferFirstMessage stops as soon as one message is ready, but a
	// single bytes.Reader.Read may have handed back more than that.
	assert.True(t, MessageReady(buf))
	got, remainder := SplitFirstMessage(buf)
	assert.Equal(t, first, got)
	assert.Equal(t, second, remainder)
}

func TestBufferFirstMessageClientEndsEarly(t *testing.T) {
	partial := EncodeFrame([]byte("full payload"))[:FrameHeaderLen+3]
	buf, clientEnded, err := BufferFirstMessage(bytes.NewReader(partial), nil)
	require.NoError(t, err)
	assert.True(t, clientEnded)
	assert.Equal(t, partial, buf)
	assert.False(t, MessageReady(buf))
}

func TestBufferFirstMessagePropagatesReadError(t *testing.T) {
	boom := errors.New("read failed")
	r := failingReader{err: boom}
	_, _, err := BufferFirstMessage(r, nil)
	assert.ErrorIs(t, err, boom)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }
