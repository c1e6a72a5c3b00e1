package serial

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

// Link adapts a Port to transport.Link. Writes go through an AsyncTx so a
// stalled UART never blocks callers; reads run in one goroutine that hands
// chunks to Receive.
type Link struct {
	port   Port
	name   string
	tx     *transport.AsyncTx
	rx     chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
	once   sync.Once
	l      *slog.Logger
	err    atomic.Pointer[error]
}

// NewLink starts the reader and writer goroutines. txBuf is the number of
// frames queued before Send reports transport.ErrTxOverflow.
func NewLink(parent context.Context, p Port, name string, txBuf int, l *slog.Logger) *Link {
	l = logging.OrDiscard(l)
	k := &Link{
		port: p,
		name: name,
		rx:   make(chan []byte, 64),
		done: make(chan struct{}),
		l:    l,
	}
	write := func(b []byte) error {
		_, err := p.Write(b)
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrLinkSend)
			l.Error("serial_write_error", "error", err)
		},
		OnDrop: func() error {
			metrics.IncError(metrics.ErrLinkOverflow)
			return transport.ErrTxOverflow
		},
	}
	k.tx = transport.NewAsyncTx(parent, txBuf, write, hooks)
	k.wg.Add(1)
	go k.readLoop()
	return k
}

func (k *Link) readLoop() {
	defer k.wg.Done()
	buf := make([]byte, 512)
	for {
		n, err := k.port.Read(buf)
		if n > 0 {
			metrics.AddRxBytes(n)
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case k.rx <- chunk:
			case <-k.done:
				return
			}
		}
		if err != nil {
			if k.closed.Load() {
				return
			}
			if errors.Is(err, io.EOF) && n == 0 {
				// tarm returns EOF on read timeout; keep polling.
				continue
			}
			metrics.IncError(metrics.ErrLinkRead)
			k.l.Error("serial_read_error", "port", k.name, "error", err)
			k.err.Store(&err)
			k.shutdown()
			return
		}
		select {
		case <-k.done:
			return
		default:
		}
	}
}

func (k *Link) Send(_ context.Context, b []byte) error {
	if k.closed.Load() {
		return transport.ErrClosed
	}
	if err := k.tx.Send(b); err != nil {
		if errors.Is(err, transport.ErrAsyncTxClosed) {
			return transport.ErrClosed
		}
		return err
	}
	return nil
}

// Receive returns the next chunk of UART bytes, which may hold a partial
// frame or several frames.
func (k *Link) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case b := <-k.rx:
		return b, nil
	case <-k.done:
		if p := k.err.Load(); p != nil {
			return nil, *p
		}
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, transport.ErrTimeout
	}
}

func (k *Link) shutdown() { k.once.Do(func() { close(k.done) }) }

// Close stops both goroutines and closes the port.
func (k *Link) Close() error {
	if k.closed.Swap(true) {
		return nil
	}
	k.shutdown()
	k.tx.Close()
	err := k.port.Close()
	k.wg.Wait()
	return err
}

func (k *Link) RemoteAddr() string { return k.name }

var _ transport.Link = (*Link)(nil)
