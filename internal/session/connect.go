package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// Connect probes the device with firmware requests every probe interval
// until a fresh reply arrives, then starts the pollers. If maxWait elapses
// first the session returns to disconnected with ErrConnectTimeout. A
// Disconnect issued while Connect runs makes it fail with ErrConnectAborted.
func (s *Session) Connect(ctx context.Context, maxWait time.Duration) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	if s.State() == StateConnected {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	s.mu.Lock()
	s.connCanc = cancel
	s.connAborted = false
	s.setState(StateConnecting)
	s.mu.Unlock()

	start := time.Now()
	err := s.probe(cctx)
	if s.probed != nil {
		s.probed()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connCanc = nil
	aborted := s.connAborted
	s.connAborted = false
	if err == nil && aborted {
		err = ErrConnectAborted
	}
	if err != nil {
		s.setState(StateDisconnected)
		s.cache.clear()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrClosed), s.closed.Load():
			return ErrClosed
		case aborted:
			s.l.Info("connect_aborted")
			return ErrConnectAborted
		}
		s.l.Warn("connect_failed", "max_wait", maxWait, "error", err)
		return fmt.Errorf("%w after %s", ErrConnectTimeout, maxWait)
	}
	s.setState(StateConnected)
	s.startPollers()
	s.l.Info("session_connected", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// probe returns nil once a firmware reply newer than the call arrives.
func (s *Session) probe(ctx context.Context) error {
	startGen := s.cache.generation(siyi.CmdFirmwareVersion)
	t := time.NewTicker(s.opts.probeInterval)
	defer t.Stop()
	for {
		_, err := s.FirmwareVersion(ctx)
		if err == nil && s.cache.generation(siyi.CmdFirmwareVersion) != startGen {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Disconnect stops the pollers, waits for them, and clears the cache. A
// Connect in progress is aborted.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.connCanc != nil {
		s.connCanc()
		s.connAborted = true
	}
	g := s.pollers
	s.pollers = nil
	s.mu.Unlock()

	if g != nil {
		g.stop()
	}

	s.mu.Lock()
	s.setState(StateDisconnected)
	s.cache.clear()
	s.mu.Unlock()
}

// lost is called by the liveness poller of g. It does not wait for g's
// goroutines since it runs on one of them.
func (s *Session) lost(g *pollGroup, stale int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollers != g {
		return
	}
	s.pollers = nil
	g.cancel()
	s.setState(StateDisconnected)
	s.cache.clear()
	metrics.IncError(metrics.ErrPoll)
	s.l.Warn("session_lost", "stale_probes", stale)
}

// WaitConnected blocks until the session is connected or ctx is done.
func (s *Session) WaitConnected(ctx context.Context) error {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for s.State() != StateConnected {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err())
		case <-t.C:
		}
	}
	return nil
}

type pollGroup struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (g *pollGroup) stop() {
	g.cancel()
	g.wg.Wait()
}
