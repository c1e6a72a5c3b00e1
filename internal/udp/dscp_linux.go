//go:build linux

package udp

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// dscpControl sets IP_TOS on the socket before connect. DSCP occupies the
// upper six bits of the TOS byte.
func dscpControl(dscp int) func(network, address string, c syscall.RawConn) error {
	if dscp == 0 {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			if network == "udp6" {
				serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, dscp<<2)
				return
			}
			serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscp<<2)
		})
		if err != nil {
			return err
		}
		if serr != nil {
			return fmt.Errorf("set dscp: %w", serr)
		}
		return nil
	}
}
