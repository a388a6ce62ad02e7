//go:build windows

package ipc

import (
	"errors"
	"net"
)

const pipeName = `\\.\pipe\cursorproxy`

func socketPath() string { return pipeName }

func listenIPC(_ string) (net.Listener, error) {
	return nil, errors.New("ipc: named-pipe control socket not implemented on windows")
}

func dialIPC(_ string) (net.Conn, error) {
	return nil, errors.New("ipc: named-pipe control socket not implemented on windows")
}
