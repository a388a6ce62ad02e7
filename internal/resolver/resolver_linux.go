//go:build linux

package resolver

import (
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// soOriginalDst is SO_ORIGINAL_DST from <linux/netfilter_ipv4.h>.
const soOriginalDst = 80

// originalDst reads the pre-NAT destination of conn via getsockopt(SOL_IP,
// SO_ORIGINAL_DST), as set by an iptables REDIRECT/DNAT rule.
func originalDst(conn net.Conn) (*net.TCPAddr, error) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("resolver: not a TCP connection")
	}

	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("resolver: syscall conn: %w", err)
	}

	var addr unix.RawSockaddrInet4
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		addr, sockErr = getOriginalDst(int(fd))
	})
	if ctrlErr != nil {
		return nil, fmt.Errorf("resolver: control: %w", ctrlErr)
	}
	if sockErr != nil {
		return nil, fmt.Errorf("resolver: getsockopt SO_ORIGINAL_DST: %w", sockErr)
	}

	ip := net.IPv4(addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3])
	port := int(addr.Port[0])<<8 | int(addr.Port[1])
	return &net.TCPAddr{IP: ip, Port: port}, nil
}

func getOriginalDst(fd int) (unix.RawSockaddrInet4, error) {
	var addr unix.RawSockaddrInet4
	size := uint32(unix.SizeofSockaddrInet4)
	_, _, errno := unix.Syscall6(
		unix.SYS_GETSOCKOPT,
		uintptr(fd),
		uintptr(unix.SOL_IP),
		uintptr(soOriginalDst),
		uintptr(unsafe.Pointer(&addr)),
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if errno != 0 {
		return addr, errno
	}
	return addr, nil
}
