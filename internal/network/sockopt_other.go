//go:build !unix && !windows

package network

import "syscall"

func setBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}
