package injection

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorstudio/cursorproxy/internal/grpcedit"
)

func writePolicyFile(t *testing.T, dir string, pf PolicyFile) string {
	t.Helper()
	path := filepath.Join(dir, "policy.json")
	p := &Policy{path: path, PolicyFile: pf}
	require.NoError(t, p.Save())
	return path
}

func TestLoadMissingFileYieldsDisabledPolicy(t *testing.T) {
	dir := t.TempDir()
	p, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
}

func TestLoadExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, PolicyFile{Enabled: true, SystemPrompt: "be terse"})

	p, err := Load(path)
	require.NoError(t, err)
	assert.True(t, p.IsEnabled())
}

func TestRewriteDisabledPolicyDeclines(t *testing.T) {
	p := &Policy{PolicyFile: PolicyFile{Enabled: false, SystemPrompt: "hi"}}
	frame := grpcedit.EncodeFrame([]byte("payload"))
	_, ok := p.Rewrite(frame, "cursor.ChatService/StreamChat")
	assert.False(t, ok)
}

func TestRewriteNoPayloadDeclines(t *testing.T) {
	p := &Policy{PolicyFile: PolicyFile{Enabled: true}}
	frame := grpcedit.EncodeFrame([]byte("payload"))
	_, ok := p.Rewrite(frame, "cursor.ChatService/StreamChat")
	assert.False(t, ok)
}

func TestRewriteAppendsFieldAndReframes(t *testing.T) {
	p := &Policy{PolicyFile: PolicyFile{Enabled: true, SystemPrompt: "be terse"}}
	original := []byte("original body")
	frame := grpcedit.EncodeFrame(original)

	replacement, ok := p.Rewrite(frame, "cursor.ChatService/StreamChat")
	require.True(t, ok)

	length, ok := grpcedit.FrameComplete(replacement)
	require.True(t, ok)
	body := replacement[grpcedit.FrameHeaderLen:]
	assert.Equal(t, int(length), len(body))
	assert.Greater(t, len(body), len(original))
	assert.Contains(t, string(body), "be terse")
}

func TestContextFilesAreConcatenated(t *testing.T) {
	dir := t.TempDir()
	ctxFile := filepath.Join(dir, "ctx.txt")
	require.NoError(t, os.WriteFile(ctxFile, []byte("extra context"), 0o644))

	p := &Policy{PolicyFile: PolicyFile{Enabled: true, ContextFiles: []string{ctxFile}}}
	frame := grpcedit.EncodeFrame([]byte("body"))
	replacement, ok := p.Rewrite(frame, "cursor.ChatService/StreamChat")
	require.True(t, ok)
	assert.Contains(t, string(replacement), "extra context")
}

func TestHeaderOverridesReturnsSnapshot(t *testing.T) {
	p := &Policy{PolicyFile: PolicyFile{Headers: map[string]string{"X-Foo": "bar"}}}
	out := p.HeaderOverrides()
	assert.Equal(t, "bar", out["X-Foo"])
	out["X-Foo"] = "mutated"
	assert.Equal(t, "bar", p.HeaderOverrides()["X-Foo"])
}

func TestSpoofedVersion(t *testing.T) {
	p := &Policy{PolicyFile: PolicyFile{SpoofVersion: "0.42.0"}}
	assert.Equal(t, "0.42.0", p.SpoofedVersion())
}

func TestWatchReloadsOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, PolicyFile{Enabled: false})

	p, err := Load(path)
	require.NoError(t, err)
	require.False(t, p.IsEnabled())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Watch(ctx, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	writer := &Policy{path: path, PolicyFile: PolicyFile{Enabled: true}}
	require.NoError(t, writer.Save())
	// ensure mtime advances even on coarse filesystem clocks
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		return p.IsEnabled()
	}, time.Second, 10*time.Millisecond)
}
