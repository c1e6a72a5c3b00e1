//go:build !linux

package udp

import "syscall"

func dscpControl(int) func(network, address string, c syscall.RawConn) error { return nil }
