package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPathHonorsEnvOverride(t *testing.T) {
	t.Setenv("CURSORPROXY_SOCKET", "/tmp/custom-cursorproxy.sock")
	assert.Equal(t, "/tmp/custom-cursorproxy.sock", SocketPath())
}

func TestListenAndDialRoundTrip(t *testing.T) {
	t.Setenv("CURSORPROXY_SOCKET", t.TempDir()+"/cursorproxy.sock")

	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := Dial()
	require.NoError(t, err)
	conn.Close()
}

func TestIsRunningFalseWhenNothingListening(t *testing.T) {
	t.Setenv("CURSORPROXY_SOCKET", t.TempDir()+"/nothing-here.sock")
	assert.False(t, IsRunning())
}

func TestIsRunningTrueWhenListening(t *testing.T) {
	t.Setenv("CURSORPROXY_SOCKET", t.TempDir()+"/cursorproxy.sock")
	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	assert.True(t, IsRunning())
}
