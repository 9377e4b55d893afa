//go:build unix

package network

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setBroadcast enables SO_BROADCAST so Discover requests can be sent to broadcast addresses.
func setBroadcast(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
