// Package serial implements transport.Link over the gimbal's TTL UART,
// which speaks the same framed protocol as the UDP port.
package serial

import (
	"time"

	"github.com/tarm/serial"
)

const (
	// DefaultBaud is the UART rate of SIYI gimbals.
	DefaultBaud = 115200
	// DefaultReadTimeout bounds a single UART read.
	DefaultReadTimeout = 50 * time.Millisecond
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens the UART. readTimeout bounds each Read so the reader goroutine
// notices Close.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
