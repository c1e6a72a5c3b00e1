package session

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/hub"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// Mode selects how replies are read.
type Mode int

const (
	// ModeSync reads the link only while a request waits for its reply.
	ModeSync Mode = iota
	// ModeStream runs a receive loop that routes every frame as it arrives.
	ModeStream
)

func (m Mode) String() string {
	if m == ModeStream {
		return "stream"
	}
	return "sync"
}

// ParseMode maps "sync" and "stream" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "sync":
		return ModeSync, true
	case "stream":
		return ModeStream, true
	}
	return ModeSync, false
}

// Defaults.
const (
	DefaultReceiveTimeout = 500 * time.Millisecond
	DefaultProbeInterval  = time.Second
	DefaultAttitudePeriod = 100 * time.Millisecond
	DefaultInfoPeriod     = time.Second
	DefaultMaxStaleProbes = 3
)

type options struct {
	recvTimeout    time.Duration
	probeInterval  time.Duration
	attitudePeriod time.Duration
	infoPeriod     time.Duration
	maxStale       int
	control        byte
	mode           Mode
	limiter        *rate.Limiter
	l              *slog.Logger
	hub            *hub.Hub
	limits         device.Table
}

func defaultOptions() options {
	return options{
		recvTimeout:    DefaultReceiveTimeout,
		probeInterval:  DefaultProbeInterval,
		attitudePeriod: DefaultAttitudePeriod,
		infoPeriod:     DefaultInfoPeriod,
		maxStale:       DefaultMaxStaleProbes,
		control:        siyi.ControlNeedAck,
		mode:           ModeSync,
		limits:         device.Builtin(),
	}
}

// Option configures a Session.
type Option func(*options)

// WithReceiveTimeout bounds the wait for each reply.
func WithReceiveTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.recvTimeout = d
		}
	}
}

// WithProbeInterval sets the liveness probe period, used both while
// connecting and once connected.
func WithProbeInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.probeInterval = d
		}
	}
}

// WithAttitudePeriod sets the attitude poll period; 0 disables the poller.
func WithAttitudePeriod(d time.Duration) Option {
	return func(o *options) { o.attitudePeriod = d }
}

// WithInfoPeriod sets the gimbal info poll period; 0 disables the poller.
func WithInfoPeriod(d time.Duration) Option { return func(o *options) { o.infoPeriod = d } }

// WithMaxStaleProbes sets how many consecutive liveness probes may go
// without a fresh firmware reply before the session drops to disconnected.
func WithMaxStaleProbes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxStale = n
		}
	}
}

// WithControl overrides the control byte stamped on outbound frames.
func WithControl(c byte) Option { return func(o *options) { o.control = c } }

func WithMode(m Mode) Option { return func(o *options) { o.mode = m } }

// WithRateLimit caps outbound frames per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.l = l } }

// WithHub makes the session broadcast decoded frames on h instead of a
// private hub.
func WithHub(h *hub.Hub) Option { return func(o *options) { o.hub = h } }

// WithLimits replaces the device limit table. A nil table disables angle
// clamping and the model check.
func WithLimits(t device.Table) Option { return func(o *options) { o.limits = t } }
