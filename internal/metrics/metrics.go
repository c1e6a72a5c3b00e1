package metrics

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors
var (
	TxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siyi_tx_frames_total",
		Help: "Total frames written to the gimbal link.",
	})
	RxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siyi_rx_frames_total",
		Help: "Total valid frames decoded from the gimbal link.",
	})
	RxBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siyi_rx_bytes_total",
		Help: "Total raw bytes read from the gimbal link.",
	})
	MalformedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siyi_malformed_frames_total",
		Help: "Rejected frame candidates by reason (checksum, length).",
	}, []string{"reason"})
	RequestTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siyi_request_timeouts_total",
		Help: "Requests that received no matching reply within the receive timeout.",
	}, []string{"cmd"})
	CommandMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siyi_command_mismatch_total",
		Help: "Replies decoded while waiting for a different command id.",
	})
	UnknownCommand = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siyi_unknown_command_total",
		Help: "Decoded frames whose command id is not in the catalog.",
	})
	SequenceWraps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siyi_sequence_wraps_total",
		Help: "Times the outbound sequence counter wrapped past 65535.",
	})
	SessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "siyi_session_state",
		Help: "Session state: 0 disconnected, 1 connecting, 2 connected.",
	})
	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "siyi_request_latency_seconds",
		Help:    "Round trip time of answered requests.",
		Buckets: []float64{.002, .005, .01, .025, .05, .1, .25, .5, 1, 2},
	}, []string{"cmd"})
	HubDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_frames_total",
		Help: "Total frames dropped by hub due to slow subscribers.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total subscribers disconnected due to backpressure kick policy.",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of frame subscribers.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrLinkOpen     = "link_open"
	ErrLinkSend     = "link_send"
	ErrLinkRead     = "link_read"
	ErrLinkOverflow = "link_tx_overflow"
	ErrParse        = "parse"
	ErrPoll         = "poll"
	ErrSimRead      = "sim_read"
	ErrSimWrite     = "sim_write"
)

// Malformed reasons
const (
	ReasonChecksum = "checksum"
	ReasonLength   = "length"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
// Extra handlers (e.g. a status page) may be mounted through extra.
func StartHTTP(addr string, l *slog.Logger, extra map[string]http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
	for path, h := range extra {
		mux.Handle(path, h)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		l.Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localTx         uint64
	localRx         uint64
	localRxBytes    uint64
	localMalformed  uint64
	localTimeouts   uint64
	localMismatch   uint64
	localUnknown    uint64
	localSeqWraps   uint64
	localErrors     uint64
	localHubDrop    uint64
	localHubKick    uint64
	localHubClients uint64
	localState      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	TxFrames   uint64
	RxFrames   uint64
	RxBytes    uint64
	Malformed  uint64
	Timeouts   uint64
	Mismatch   uint64
	Unknown    uint64
	SeqWraps   uint64
	Errors     uint64 // sum across error labels
	HubDrops   uint64
	HubKicks   uint64
	HubClients uint64
	State      uint64
}

func Snap() Snapshot {
	return Snapshot{
		TxFrames:   atomic.LoadUint64(&localTx),
		RxFrames:   atomic.LoadUint64(&localRx),
		RxBytes:    atomic.LoadUint64(&localRxBytes),
		Malformed:  atomic.LoadUint64(&localMalformed),
		Timeouts:   atomic.LoadUint64(&localTimeouts),
		Mismatch:   atomic.LoadUint64(&localMismatch),
		Unknown:    atomic.LoadUint64(&localUnknown),
		SeqWraps:   atomic.LoadUint64(&localSeqWraps),
		Errors:     atomic.LoadUint64(&localErrors),
		HubDrops:   atomic.LoadUint64(&localHubDrop),
		HubKicks:   atomic.LoadUint64(&localHubKick),
		HubClients: atomic.LoadUint64(&localHubClients),
		State:      atomic.LoadUint64(&localState),
	}
}

// Wrapper helpers to keep call sites simple.
func IncTx() {
	TxFrames.Inc()
	atomic.AddUint64(&localTx, 1)
}

func IncRx() {
	RxFrames.Inc()
	atomic.AddUint64(&localRx, 1)
}

func AddRxBytes(n int) {
	RxBytes.Add(float64(n))
	atomic.AddUint64(&localRxBytes, uint64(n))
}

// IncMalformed counts a rejected frame candidate.
func IncMalformed(reason string) {
	MalformedFrames.WithLabelValues(reason).Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncTimeout(cmd string) {
	RequestTimeouts.WithLabelValues(cmd).Inc()
	atomic.AddUint64(&localTimeouts, 1)
}

func IncMismatch() {
	CommandMismatch.Inc()
	atomic.AddUint64(&localMismatch, 1)
}

func IncUnknown() {
	UnknownCommand.Inc()
	atomic.AddUint64(&localUnknown, 1)
}

func IncSeqWrap() {
	SequenceWraps.Inc()
	atomic.AddUint64(&localSeqWraps, 1)
}

func ObserveLatency(cmd string, seconds float64) {
	RequestLatency.WithLabelValues(cmd).Observe(seconds)
}

func IncHubDrop() {
	HubDroppedFrames.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func SetState(n int) {
	SessionState.Set(float64(n))
	atomic.StoreUint64(&localState, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common label series so first error does not log a registration latency.
	for _, lbl := range []string{ErrLinkOpen, ErrLinkSend, ErrLinkRead, ErrLinkOverflow, ErrParse, ErrPoll} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, r := range []string{ReasonChecksum, ReasonLength} {
		MalformedFrames.WithLabelValues(r).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
