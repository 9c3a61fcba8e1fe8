//go:build unix

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl sizes the kernel buffers of the listening socket; accepted
// connections inherit them.
func socketControl(size int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var sysErr error
		err := c.Control(func(fd uintptr) {
			sysErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
			if sysErr != nil {
				return
			}
			sysErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size)
		})
		if err != nil {
			return err
		}
		return sysErr
	}
}
