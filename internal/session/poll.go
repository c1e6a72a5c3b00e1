package session

import (
	"context"
	"errors"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// startPollers launches the periodic tasks of a connected session. Caller
// holds s.mu.
func (s *Session) startPollers() {
	ctx, cancel := context.WithCancel(context.Background())
	g := &pollGroup{cancel: cancel}
	s.pollers = g

	s.every(ctx, g, "liveness", s.opts.probeInterval, s.livenessCheck(g))
	if s.opts.attitudePeriod > 0 {
		s.every(ctx, g, "attitude", s.opts.attitudePeriod, func(ctx context.Context) error {
			_, err := s.GimbalAttitude(ctx)
			return err
		})
	}
	if s.opts.infoPeriod > 0 {
		s.every(ctx, g, "gimbal_info", s.opts.infoPeriod, func(ctx context.Context) error {
			_, err := s.GimbalInfo(ctx)
			return err
		})
	}
}

// every runs fn now and then once per period until ctx is cancelled. A
// failed cycle is logged and retried on the next tick.
func (s *Session) every(ctx context.Context, g *pollGroup, name string, period time.Duration, fn func(context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				if !errors.Is(err, ErrNoResponse) {
					metrics.IncError(metrics.ErrPoll)
				}
				s.l.Debug("poll_failed", "poller", name, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

// livenessCheck probes the firmware version and drops the session after
// maxStale consecutive probes without a fresh reply.
func (s *Session) livenessCheck(g *pollGroup) func(context.Context) error {
	last := s.cache.generation(siyi.CmdFirmwareVersion)
	stale := 0
	return func(ctx context.Context) error {
		_, err := s.FirmwareVersion(ctx)
		if ctx.Err() != nil {
			return err
		}
		cur := s.cache.generation(siyi.CmdFirmwareVersion)
		if cur != last {
			last = cur
			stale = 0
			return err
		}
		stale++
		s.l.Debug("liveness_stale", "count", stale, "max", s.opts.maxStale)
		if stale >= s.opts.maxStale {
			s.lost(g, stale)
		}
		return err
	}
}
