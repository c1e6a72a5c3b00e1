// Package session owns one device link: it stamps sequence numbers, matches
// replies to requests, caches the last record of every reply kind and runs
// the liveness, attitude and gimbal info pollers while connected.
package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kstaniek/go-siyi-gimbal/internal/hub"
	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

// Session is safe for concurrent use. Requests are serialised: at most one
// is outstanding at a time.
type Session struct {
	id    string
	link  transport.Link
	opts  options
	l     *slog.Logger
	seq   sequencer
	cache *cache
	hub   *hub.Hub
	codec siyi.Codec

	// datagram links deliver whole frames per read; leftovers are dropped.
	datagram bool

	reqMu sync.Mutex
	rxBuf bytes.Buffer // sync mode only, guarded by reqMu

	waitMu sync.Mutex
	waiter *waiter // stream mode only

	state     atomic.Int32
	connectMu sync.Mutex
	mu        sync.Mutex // guards pollers, connCanc and connAborted
	pollers   *pollGroup
	connCanc  context.CancelFunc

	// connAborted records a Disconnect that ran while Connect was probing.
	connAborted bool
	probed      func() // test hook, runs between probe and the state change

	rxCancel context.CancelFunc
	rxWG     sync.WaitGroup
	closed   atomic.Bool
}

type waiter struct {
	cmd        siyi.Command
	ch         chan siyi.Frame
	mismatches int
	malformed  int
}

// New creates a disconnected session over link. In ModeStream the receive
// loop starts immediately.
func New(link transport.Link, opts ...Option) *Session {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	id := uuid.NewString()
	l := logging.OrDiscard(o.l).With("session", id)
	h := o.hub
	if h == nil {
		h = hub.New(l)
	}
	s := &Session{
		id:    id,
		link:  link,
		opts:  o,
		l:     l,
		cache: newCache(),
		hub:   h,

		datagram: transport.IsDatagram(link),
	}
	s.seq.l = l
	s.codec = siyi.Codec{OnMalformed: func(err error) {
		l.Debug("frame_rejected", "error", err)
		s.waitMu.Lock()
		if s.waiter != nil {
			s.waiter.malformed++
		}
		s.waitMu.Unlock()
	}}
	metrics.SetState(int(StateDisconnected))
	if o.mode == ModeStream {
		ctx, cancel := context.WithCancel(context.Background())
		s.rxCancel = cancel
		s.rxWG.Add(1)
		go s.rxLoop(ctx)
	}
	l.Info("session_created", "mode", o.mode.String(), "recv_timeout", o.recvTimeout)
	return s
}

// ID is a random identifier used in logs.
func (s *Session) ID() string { return s.id }

// State is the current connection state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev == st {
		return
	}
	metrics.SetState(int(st))
	s.l.Info("session_state", "from", prev.String(), "to", st.String())
}

// Hub is the fan-out every decoded frame is broadcast on.
func (s *Session) Hub() *hub.Hub { return s.hub }

// Subscribe registers a subscriber for decoded frames, optionally limited
// to cmds. In ModeSync frames are only seen while a request is reading.
func (s *Session) Subscribe(buf int, cmds ...siyi.Command) *hub.Client {
	c := hub.NewClient(buf, cmds...)
	s.hub.Add(c)
	return c
}

// Unsubscribe removes and closes c.
func (s *Session) Unsubscribe(c *hub.Client) { s.hub.Remove(c) }

// Snapshot copies the state and every cached record.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{ID: s.id, State: s.State(), Mode: s.opts.mode, Seq: s.seq.current()}
	s.cache.fill(&snap)
	return snap
}

// route updates the cache and subscribers with one decoded frame. While
// disconnected the cache stays cleared.
func (s *Session) route(f siyi.Frame) {
	metrics.IncRx()
	if !f.Cmd.Known() {
		metrics.IncUnknown()
		s.l.Debug("unknown_command", "cmd", f.Cmd.String(), "seq", f.Seq, "len", len(f.Payload))
		s.hub.Broadcast(f)
		return
	}
	if s.State() != StateDisconnected {
		if _, err := s.cache.store(f); err != nil {
			metrics.IncError(metrics.ErrParse)
			s.l.Debug("record_parse_error", "cmd", f.Cmd.String(), "seq", f.Seq, "error", err)
		}
	}
	s.hub.Broadcast(f)
}

func (s *Session) rxLoop(ctx context.Context) {
	defer s.rxWG.Done()
	var buf bytes.Buffer
	for {
		b, err := s.link.Receive(ctx, s.opts.recvTimeout)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, transport.ErrClosed):
				return
			case errors.Is(err, transport.ErrTimeout):
				continue
			}
			s.l.Debug("rx_error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.recvTimeout / 10):
			}
			continue
		}
		s.feed(s.codec, &buf, b, s.deliver)
	}
}

// feed appends one read to buf and drains its frames. On a datagram link
// the buffer starts empty every time, so a truncated or corrupt datagram
// cannot hold back the ones after it.
func (s *Session) feed(c siyi.Codec, buf *bytes.Buffer, b []byte, out func(siyi.Frame)) {
	if s.datagram {
		buf.Reset()
	}
	buf.Write(b)
	_ = c.DecodeStream(buf, out)
}

// deliver routes a frame and hands it to the waiting request, if any.
func (s *Session) deliver(f siyi.Frame) {
	s.route(f)
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	w := s.waiter
	if w == nil {
		return
	}
	if f.Cmd != w.cmd {
		w.mismatches++
		return
	}
	s.waiter = nil
	w.ch <- f
}

// Close disconnects, stops the receive loop and closes the link. Workers
// are joined before the link is released.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.Disconnect()
	if s.rxCancel != nil {
		s.rxCancel()
		s.rxWG.Wait()
	}
	s.hub.CloseAll()
	err := s.link.Close()
	s.l.Info("session_closed")
	return err
}
