// Package transport defines the byte link the session talks over and the
// shared async write funnel used by stream-oriented links.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Receive when nothing arrived in time. It is a
	// routine outcome on a lossy link.
	ErrTimeout = errors.New("transport: receive timeout")
	// ErrClosed is returned by operations on a closed link.
	ErrClosed = errors.New("transport: link closed")
	// ErrTxOverflow is returned when the write queue is full.
	ErrTxOverflow = errors.New("transport: tx overflow")
)

// Link is a point-to-point byte transport to one device. A datagram link
// returns one datagram per Receive; a stream link returns whatever bytes
// are available. Send and Receive may be called concurrently with each
// other, but not each with itself.
type Link interface {
	Send(ctx context.Context, b []byte) error
	// Receive waits at most timeout (or until ctx is done) for inbound bytes.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// Datagram is implemented by links whose Receive returns exactly one
// datagram. A frame never spans two reads on such a link, so bytes left
// over from one read must not be joined with the next.
type Datagram interface {
	Datagrams() bool
}

// IsDatagram reports whether l preserves datagram boundaries.
func IsDatagram(l Link) bool {
	d, ok := l.(Datagram)
	return ok && d.Datagrams()
}

// Addresser is implemented by links with a printable remote endpoint.
type Addresser interface {
	RemoteAddr() string
}
