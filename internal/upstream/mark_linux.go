//go:build linux

package upstream

import "golang.org/x/sys/unix"

func setSockMark(fd, mark int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_MARK, mark)
}
