package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

// Do sends req and waits up to the receive timeout for a frame carrying
// req.Reply. Frames of other commands that arrive meanwhile are cached and
// broadcast but do not end the wait.
func (s *Session) Do(ctx context.Context, req siyi.Request) (siyi.Frame, error) {
	if s.closed.Load() {
		return siyi.Frame{}, ErrClosed
	}
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if s.opts.limiter != nil {
		if err := s.opts.limiter.Wait(ctx); err != nil {
			return siyi.Frame{}, err
		}
	}
	seq := s.seq.next()
	wire, err := siyi.AppendFrame(nil, siyi.Frame{Control: s.opts.control, Seq: seq, Cmd: req.Cmd, Payload: req.Payload})
	if err != nil {
		return siyi.Frame{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	var w *waiter
	if s.opts.mode == ModeStream {
		w = &waiter{cmd: req.Reply, ch: make(chan siyi.Frame, 1)}
		s.waitMu.Lock()
		s.waiter = w
		s.waitMu.Unlock()
		defer func() {
			s.waitMu.Lock()
			if s.waiter == w {
				s.waiter = nil
			}
			s.waitMu.Unlock()
		}()
	}

	start := time.Now()
	if err := s.link.Send(ctx, wire); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return siyi.Frame{}, ErrClosed
		}
		metrics.IncError(metrics.ErrLinkSend)
		return siyi.Frame{}, fmt.Errorf("%w: %s: %w", ErrSendFailed, req, err)
	}
	metrics.IncTx()
	s.l.Debug("request_sent", "cmd", req.Cmd.String(), "seq", seq, "len", len(req.Payload))

	var f siyi.Frame
	if w != nil {
		f, err = s.awaitStream(ctx, w)
	} else {
		f, err = s.awaitSync(ctx, req.Reply)
	}
	if err != nil {
		if errors.Is(err, ErrNoResponse) {
			metrics.IncTimeout(req.Reply.String())
			s.l.Debug("request_timeout", "cmd", req.String(), "seq", seq, "error", err)
		}
		return siyi.Frame{}, err
	}
	metrics.ObserveLatency(req.Reply.String(), time.Since(start).Seconds())
	return f, nil
}

// awaitSync reads the link until a frame of cmd arrives or the receive
// timeout expires. Caller holds reqMu.
func (s *Session) awaitSync(ctx context.Context, cmd siyi.Command) (siyi.Frame, error) {
	deadline := time.Now().Add(s.opts.recvTimeout)
	var (
		got        *siyi.Frame
		mismatches int
		malformed  int
	)
	codec := siyi.Codec{OnMalformed: func(err error) {
		malformed++
		s.codec.OnMalformed(err)
	}}
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		b, err := s.link.Receive(ctx, remaining)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrTimeout):
				return siyi.Frame{}, noResponse(mismatches, malformed)
			case ctx.Err() != nil:
				return siyi.Frame{}, ctx.Err()
			case errors.Is(err, transport.ErrClosed):
				return siyi.Frame{}, ErrClosed
			}
			return siyi.Frame{}, fmt.Errorf("%w: %w", ErrNoResponse, err)
		}
		s.feed(codec, &s.rxBuf, b, func(f siyi.Frame) {
			s.route(f)
			switch {
			case got == nil && f.Cmd == cmd:
				got = &f
			case f.Cmd != cmd:
				mismatches++
				metrics.IncMismatch()
				s.l.Debug("reply_mismatch", "want", cmd.String(), "got", f.Cmd.String(), "seq", f.Seq)
			}
		})
		if got != nil {
			return *got, nil
		}
	}
	return siyi.Frame{}, noResponse(mismatches, malformed)
}

func (s *Session) awaitStream(ctx context.Context, w *waiter) (siyi.Frame, error) {
	t := time.NewTimer(s.opts.recvTimeout)
	defer t.Stop()
	select {
	case f := <-w.ch:
		return f, nil
	case <-ctx.Done():
		return siyi.Frame{}, ctx.Err()
	case <-t.C:
	}
	s.waitMu.Lock()
	n, bad := w.mismatches, w.malformed
	s.waitMu.Unlock()
	// A reply may have raced the timer.
	select {
	case f := <-w.ch:
		return f, nil
	default:
	}
	return siyi.Frame{}, noResponse(n, bad)
}

func noResponse(mismatches, malformed int) error {
	switch {
	case mismatches > 0:
		return fmt.Errorf("%w: %w", ErrNoResponse, ErrCommandMismatch)
	case malformed > 0:
		return fmt.Errorf("%w: %w", ErrNoResponse, ErrChecksum)
	}
	return ErrNoResponse
}

// call performs req and parses the reply with parse.
func call[T any](ctx context.Context, s *Session, req siyi.Request, parse func(siyi.Frame) (T, error)) (T, error) {
	var zero T
	f, err := s.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	r, err := parse(f)
	if err != nil {
		metrics.IncError(metrics.ErrParse)
		return zero, fmt.Errorf("%s reply: %w", req.Reply, err)
	}
	return r, nil
}
