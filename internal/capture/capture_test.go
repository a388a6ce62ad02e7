package capture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorstudio/cursorproxy/internal/eventbus"
)

func TestSaveStreamDisabledWhenDirEmpty(t *testing.T) {
	w := New("", nil)
	err := w.SaveStream(1, Meta{Service: "cursor.ChatService"}, []byte("req"), []byte("resp"))
	assert.NoError(t, err)
}

func TestSaveStreamWritesArtefacts(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	w := New(dir, bus)
	meta := Meta{
		Service:       "cursor.ChatService",
		Method:        "StreamChat",
		RequestBytes:  3,
		ResponseBytes: 4,
		DurationMS:    12,
	}
	require.NoError(t, w.SaveStream(7, meta, []byte("req"), []byte("resp")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	var metaPath string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			metaPath = filepath.Join(dir, e.Name())
		}
	}
	require.NotEmpty(t, metaPath)
	raw, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	var got Meta
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, meta.Service, got.Service)
	assert.Equal(t, meta.Method, got.Method)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, eventbus.TagCaptureSaved, ev.Tag)
		assert.Equal(t, "cursor.ChatService/StreamChat", ev.Endpoint)
	case <-time.After(time.Second):
		t.Fatal("expected a CaptureSaved event")
	}
}

func TestSaveStreamSlugifiesServiceName(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, nil)
	require.NoError(t, w.SaveStream(1, Meta{Service: "cursor.ChatService", Method: "StreamChat"}, nil, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), "cursor_ChatService") {
			found = true
		}
	}
	assert.True(t, found)
}
