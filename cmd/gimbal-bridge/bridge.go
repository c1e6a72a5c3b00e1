package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

const (
	reconnectBackoffMin = 250 * time.Millisecond
	reconnectBackoffMax = 5 * time.Second
	stateCheckInterval  = 50 * time.Millisecond
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = defaultSleep

func defaultSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// bridge keeps one session to the gimbal connected for the life of the
// process. Every attempt opens a fresh link; a lost session is closed and
// replaced.
type bridge struct {
	cfg    *appConfig
	l      *slog.Logger
	limits device.Table
	open   func(ctx context.Context) (transport.Link, error)

	cur      atomic.Pointer[session.Session]
	connects atomic.Uint64
}

func newBridge(cfg *appConfig, limits device.Table, l *slog.Logger) *bridge {
	b := &bridge{cfg: cfg, l: l, limits: limits}
	b.open = func(ctx context.Context) (transport.Link, error) { return openLink(ctx, cfg, l) }
	return b
}

// Session returns the current session, or nil before the first attempt.
func (b *bridge) Session() *session.Session { return b.cur.Load() }

// Connected reports whether the current session is connected.
func (b *bridge) Connected() bool {
	s := b.cur.Load()
	return s != nil && s.State() == session.StateConnected
}

func (b *bridge) sessionOptions() []session.Option {
	mode, _ := session.ParseMode(b.cfg.mode)
	opts := []session.Option{
		session.WithMode(mode),
		session.WithReceiveTimeout(b.cfg.recvTimeout),
		session.WithProbeInterval(b.cfg.probeInterval),
		session.WithAttitudePeriod(b.cfg.attitudePeriod),
		session.WithInfoPeriod(b.cfg.infoPeriod),
		session.WithMaxStaleProbes(b.cfg.maxStale),
		session.WithLimits(b.limits),
		session.WithHub(initHub(b.cfg, b.l)),
		session.WithLogger(b.l),
	}
	if b.cfg.rateLimit > 0 {
		burst := int(math.Max(1, math.Ceil(b.cfg.rateLimit)))
		opts = append(opts, session.WithRateLimit(b.cfg.rateLimit, burst))
	}
	return opts
}

// run retries until ctx is done. Failed attempts back off exponentially
// from reconnectBackoffMin to reconnectBackoffMax; a session that reached
// connected resets the backoff.
func (b *bridge) run(ctx context.Context) {
	backoff := reconnectBackoffMin
	for ctx.Err() == nil {
		err := b.attempt(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			backoff = reconnectBackoffMin
		} else {
			b.l.Warn("bridge_connect_failed", "error", err, "backoff", backoff)
		}
		sleepFn(ctx, backoff)
		if err != nil {
			backoff *= 2
			if backoff > reconnectBackoffMax {
				backoff = reconnectBackoffMax
			}
		}
	}
}

// attempt opens a link, connects and blocks while the session stays
// connected. It returns nil when a connected session was lost or ctx ended.
func (b *bridge) attempt(ctx context.Context) error {
	link, err := b.open(ctx)
	if err != nil {
		metrics.IncError(metrics.ErrLinkOpen)
		return err
	}
	s := session.New(link, b.sessionOptions()...)
	b.cur.Store(s)
	defer func() { _ = s.Close() }()

	if err := s.Connect(ctx, b.cfg.connectTimeout); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	n := b.connects.Add(1)
	b.l.Info("bridge_connected", "session", s.ID(), "connects", n)
	b.describe(ctx, s)
	stop := watchFeedback(s, b.l)
	defer stop()
	if b.cfg.streamHz > 0 {
		if err := s.SetDataStream(ctx, siyi.StreamAttitude, b.cfg.streamHz); err != nil {
			b.l.Warn("data_stream_failed", "hz", b.cfg.streamHz, "error", err)
		}
	}

	t := time.NewTicker(stateCheckInterval)
	defer t.Stop()
	for s.State() == session.StateConnected {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
	b.l.Warn("bridge_session_lost", "session", s.ID())
	return nil
}

// describe logs the identity of a freshly connected gimbal.
func (b *bridge) describe(ctx context.Context, s *session.Session) {
	snap := s.Snapshot()
	attrs := []any{"session", s.ID()}
	if snap.Firmware != nil {
		attrs = append(attrs, "code_board", snap.Firmware.CodeBoard.String(), "gimbal_fw", snap.Firmware.Gimbal.String())
	}
	hw, err := s.HardwareID(ctx)
	switch {
	case err == nil:
		attrs = append(attrs, "type_code", hw.TypeCode, "model", hw.Model)
	case errors.Is(err, context.Canceled):
		return
	default:
		attrs = append(attrs, "hwid_error", err)
	}
	b.l.Info("gimbal_identified", attrs...)
}

// watchFeedback logs the function feedback frames the camera pushes after
// photo and record requests. The returned func unsubscribes.
func watchFeedback(s *session.Session, l *slog.Logger) func() {
	c := s.Subscribe(16, siyi.CmdFuncFeedback)
	go func() {
		for {
			select {
			case f := <-c.Out:
				fb, err := siyi.ParseFuncFeedback(f)
				if err != nil {
					continue
				}
				l.Info("camera_feedback", "code", fb.Code.String(), "seq", fb.Seq)
			case <-c.Closed:
				return
			}
		}
	}()
	return func() { s.Unsubscribe(c) }
}
