// Package ipc resolves and opens the local control socket used by the
// dashboard collaborator and by CLI sub-commands (status, captures) to reach
// a running cursorproxy daemon without going through the TLS-terminating
// listener itself.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the control socket.
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/cursorproxy.sock or $TMPDIR/cursorproxy.sock
//     (override with $CURSORPROXY_SOCKET)
//   - Windows: \\.\pipe\cursorproxy
func SocketPath() string {
	if s := os.Getenv("CURSORPROXY_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a cursorproxy daemon appears to be listening on
// the control socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates and returns a net.Listener on the control socket path,
// removing any stale socket file first.
func Listen() (net.Listener, error) {
	path := SocketPath()
	_ = os.Remove(path)
	return listenIPC(path)
}

// Dial connects to a running daemon's control socket.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
