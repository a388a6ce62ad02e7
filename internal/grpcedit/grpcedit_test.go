package grpcedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	service, method := ParsePath("/cursor.ChatService/StreamChat")
	assert.Equal(t, "cursor.ChatService", service)
	assert.Equal(t, "StreamChat", method)

	service, method = ParsePath("/noslash")
	assert.Equal(t, "noslash", service)
	assert.Equal(t, "", method)
}

func TestInjectable(t *testing.T) {
	assert.True(t, Injectable("cursor.ChatService"))
	assert.True(t, Injectable("aiserver.v1.ChatService"))
	assert.False(t, Injectable("cursor.RepositoryService"))
}

func TestEncodeAndSplitFirstMessage(t *testing.T) {
	msg := []byte("hello world")
	framed := EncodeFrame(msg)
	require.True(t, MessageReady(framed))

	first, remainder := SplitFirstMessage(framed)
	assert.Equal(t, framed, first)
	assert.Empty(t, remainder)

	length, ok := FrameComplete(framed)
	require.True(t, ok)
	assert.Equal(t, uint32(len(msg)), length)
}

func TestMessageReadyPartialBuffer(t *testing.T) {
	framed := EncodeFrame([]byte("hello world"))

	assert.False(t, MessageReady(framed[:3])) // header incomplete
	assert.False(t, MessageReady(framed[:FrameHeaderLen+2])) // payload incomplete
	assert.True(t, MessageReady(framed))
}

func TestZeroLengthMessage(t *testing.T) {
	framed := EncodeFrame(nil)
	require.Len(t, framed, FrameHeaderLen)
	assert.True(t, MessageReady(framed))

	first, remainder := SplitFirstMessage(framed)
	assert.Len(t, first, FrameHeaderLen)
	assert.Empty(t, remainder)
}

func TestSplitFirstMessageWithRemainder(t *testing.T) {
	a := EncodeFrame([]byte("first"))
	b := EncodeFrame([]byte("second"))
	buf := append(append([]byte(nil), a...), b...)

	first, remainder := SplitFirstMessage(buf)
	assert.Equal(t, a, first)
	assert.Equal(t, b, remainder)
}
