// Package udp implements transport.Link over a connected UDP socket.
package udp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

// DefaultAddr is the factory address of SIYI cameras.
const DefaultAddr = "192.168.144.25:37260"

// maxDatagram bounds one read; a frame is at most a few hundred bytes.
const maxDatagram = 2048

// Link is a UDP transport.Link bound to one remote device.
type Link struct {
	conn   *net.UDPConn
	l      *slog.Logger
	closed atomic.Bool
	buf    []byte
}

type options struct {
	local string
	dscp  int
	l     *slog.Logger
}

// Option configures Dial.
type Option func(*options)

// WithLocalAddr binds the socket to a local address ("0.0.0.0:0" default).
func WithLocalAddr(a string) Option { return func(o *options) { o.local = a } }

// WithDSCP marks outgoing datagrams with the given DSCP class (0..63).
// Only effective on Linux; ignored elsewhere.
func WithDSCP(d int) Option { return func(o *options) { o.dscp = d } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.l = l } }

// Dial opens a UDP socket connected to addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Link, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	l := logging.OrDiscard(o.l)
	if o.dscp < 0 || o.dscp > 63 {
		return nil, fmt.Errorf("udp: dscp %d out of range", o.dscp)
	}
	d := net.Dialer{Control: dscpControl(o.dscp)}
	if o.local != "" {
		la, err := net.ResolveUDPAddr("udp", o.local)
		if err != nil {
			return nil, fmt.Errorf("udp: local addr: %w", err)
		}
		d.LocalAddr = la
	}
	c, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", addr, err)
	}
	uc, ok := c.(*net.UDPConn)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("udp: unexpected conn type %T", c)
	}
	l.Info("udp_link_open", "remote", uc.RemoteAddr().String(), "local", uc.LocalAddr().String(), "dscp", o.dscp)
	return &Link{conn: uc, l: l, buf: make([]byte, maxDatagram)}, nil
}

func (k *Link) Send(ctx context.Context, b []byte) error {
	if k.closed.Load() {
		return transport.ErrClosed
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = k.conn.SetWriteDeadline(dl)
	} else {
		_ = k.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := k.conn.Write(b); err != nil {
		metrics.IncError(metrics.ErrLinkSend)
		if k.closed.Load() {
			return transport.ErrClosed
		}
		return fmt.Errorf("udp write: %w", err)
	}
	return nil
}

// Receive returns the next datagram. The returned slice is a copy.
func (k *Link) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if k.closed.Load() {
		return nil, transport.ErrClosed
	}
	dl := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(dl) {
		dl = cd
	}
	if err := k.conn.SetReadDeadline(dl); err != nil {
		return nil, fmt.Errorf("udp set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = k.conn.SetReadDeadline(time.Now()) })
	defer stop()

	n, err := k.conn.Read(k.buf)
	if err != nil {
		switch {
		case k.closed.Load():
			return nil, transport.ErrClosed
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, transport.ErrTimeout
		}
		// ICMP port unreachable surfaces as a read error on a connected
		// socket; the device may simply not be up yet.
		metrics.IncError(metrics.ErrLinkRead)
		k.l.Debug("udp_read_error", "error", err)
		return nil, fmt.Errorf("udp read: %w", err)
	}
	metrics.AddRxBytes(n)
	return append([]byte(nil), k.buf[:n]...), nil
}

func (k *Link) Close() error {
	if k.closed.Swap(true) {
		return nil
	}
	return k.conn.Close()
}

func (k *Link) RemoteAddr() string { return k.conn.RemoteAddr().String() }

func (k *Link) LocalAddr() string { return k.conn.LocalAddr().String() }

// Datagrams reports true; each Receive returns one whole datagram.
func (k *Link) Datagrams() bool { return true }

var (
	_ transport.Link     = (*Link)(nil)
	_ transport.Datagram = (*Link)(nil)
)
