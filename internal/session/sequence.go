package session

import (
	"log/slog"
	"sync"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
)

// sequencer hands out outbound sequence numbers. It starts at 0 and is
// incremented before every send, so the first frame carries 1. Past 65535
// it restarts at 0 with a warning.
type sequencer struct {
	mu sync.Mutex
	v  uint16
	l  *slog.Logger
}

func (s *sequencer) next() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v == 0xFFFF {
		s.v = 0
		metrics.IncSeqWrap()
		s.l.Warn("seq_wrap", "seq", s.v)
		return s.v
	}
	s.v++
	return s.v
}

func (s *sequencer) current() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}
