package transport

import (
	"context"
	"sync"
	"time"
)

// Pipe returns two in-memory datagram links wired back to back. Each Send
// on one end is delivered as a single Receive on the other. Used by tests
// and the simulator to run a session without sockets.
func Pipe(buf int) (*PipeLink, *PipeLink) {
	ab := make(chan []byte, buf)
	ba := make(chan []byte, buf)
	done := make(chan struct{})
	var once sync.Once
	closeFn := func() { once.Do(func() { close(done) }) }
	return &PipeLink{in: ba, out: ab, done: done, close: closeFn, name: "pipe-a"},
		&PipeLink{in: ab, out: ba, done: done, close: closeFn, name: "pipe-b"}
}

// PipeLink is one end of Pipe. Closing either end closes both.
type PipeLink struct {
	in    <-chan []byte
	out   chan<- []byte
	done  chan struct{}
	close func()
	name  string
}

func (p *PipeLink) Send(ctx context.Context, b []byte) error {
	c := append([]byte(nil), b...)
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- c:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrTxOverflow
	}
}

func (p *PipeLink) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case b := <-p.in:
		return b, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, ErrTimeout
	}
}

func (p *PipeLink) Close() error { p.close(); return nil }

func (p *PipeLink) RemoteAddr() string { return p.name }

// Datagrams is always true: every Send arrives as one Receive.
func (p *PipeLink) Datagrams() bool { return true }
