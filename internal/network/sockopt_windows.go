//go:build windows

package network

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// setBroadcast enables SO_BROADCAST so Discover requests can be sent to broadcast addresses.
func setBroadcast(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
