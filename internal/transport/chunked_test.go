package transport

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorstudio/cursorproxy/internal/grpcedit"
)

// writeSizeRecorder wraps an httptest.ResponseRecorder and records the byte
// length of every individual Write call, so tests can assert on-wire chunk
// sizes instead of only the concatenated body.
type writeSizeRecorder struct {
	*httptest.ResponseRecorder
	writeSizes []int
}

func newWriteSizeRecorder() *writeSizeRecorder {
	return &writeSizeRecorder{ResponseRecorder: httptest.NewRecorder()}
}

func (w *writeSizeRecorder) Write(p []byte) (int, error) {
	n, err := w.ResponseRecorder.Write(p)
	w.writeSizes = append(w.writeSizes, n)
	return n, err
}

func TestChunkedSendSplitsOversizedPayload(t *testing.T) {
	rec := newWriteSizeRecorder()
	data := bytes.Repeat([]byte("x"), grpcedit.MaxFrameSize+100)

	err := chunkedSend(rec, rec, data)
	require.NoError(t, err)
	assert.Equal(t, data, rec.Body.Bytes())

	require.Greater(t, len(rec.writeSizes), 1, "an oversized payload must cross more than one Write call")
	for _, n := range rec.writeSizes {
		assert.LessOrEqual(t, n, grpcedit.MaxFrameSize, "no single Write may exceed the frame limit")
	}
}

func TestChunkedSendFlushesEmptyData(t *testing.T) {
	rec := newWriteSizeRecorder()
	err := chunkedSend(rec, rec, nil)
	require.NoError(t, err)
	assert.Empty(t, rec.Body.Bytes())
	assert.True(t, rec.Flushed)
}

func TestChunkedSendSmallPayloadSingleWrite(t *testing.T) {
	rec := newWriteSizeRecorder()
	err := chunkedSend(rec, rec, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, []int{5}, rec.writeSizes)
}

func TestChunkedSendLargeMessageStaysUnderFrameLimit(t *testing.T) {
	rec := newWriteSizeRecorder()
	data := bytes.Repeat([]byte("y"), 200000)

	err := chunkedSend(rec, rec, data)
	require.NoError(t, err)
	assert.Equal(t, data, rec.Body.Bytes())
	for _, n := range rec.writeSizes {
		assert.LessOrEqual(t, n, grpcedit.MaxFrameSize)
	}
}

func TestCappedReaderCapsEachReadCall(t *testing.T) {
	data := bytes.Repeat([]byte("z"), grpcedit.MaxFrameSize+100)
	cr := newCappedReader(bytes.NewReader(data))

	buf := make([]byte, len(data))
	n, err := cr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, grpcedit.MaxFrameSize, n, "a single Read must never return more than the frame limit")

	rest, err := io.ReadAll(cr)
	require.NoError(t, err)
	assert.Equal(t, data[grpcedit.MaxFrameSize:], rest)
}

func TestCappedReaderReadsLargeRequestBodyInBoundedChunks(t *testing.T) {
	data := bytes.Repeat([]byte("w"), 200000)
	cr := newCappedReader(bytes.NewReader(data))

	var got bytes.Buffer
	buf := make([]byte, 64*1024)
	chunkCount := 0
	for {
		n, err := cr.Read(buf)
		if n > 0 {
			chunkCount++
			require.LessOrEqual(t, n, grpcedit.MaxFrameSize)
			got.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, data, got.Bytes())
	assert.Greater(t, chunkCount, 1, "a 200000-byte request body must be read in more than one bounded chunk")
}

var _ http.ResponseWriter = (*writeSizeRecorder)(nil)
var _ http.Flusher = (*writeSizeRecorder)(nil)
