// Package simulator is a fake SIYI gimbal. It answers the command catalog
// over UDP (or any transport.Link), integrates commanded speeds into a moving
// attitude and can be told to misbehave: go silent, drop replies, freeze its
// reply sequence or interleave unsolicited frames.
package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

const (
	defaultMaxRate = 60.0 // deg/s
	pushTick       = 10 * time.Millisecond
)

// Device owns the listener and the simulated gimbal state.
type Device struct {
	mu        sync.Mutex
	addr      string
	g         *gimbal
	firmware  [3]siyi.Version
	hwid      []byte
	feedback  siyi.FeedbackCode
	replySeq  uint16
	frozenSeq bool
	modeQuiet bool
	extra     siyi.Command
	now       func() time.Time

	sinkMu sync.Mutex
	sink   func([]byte) error

	readyOnce sync.Once
	readyCh   chan struct{}
	logger    *slog.Logger
	codec     siyi.Codec

	muted    atomic.Bool
	noise    atomic.Bool
	drop     atomic.Int64
	requests atomic.Uint64
	replies  atomic.Uint64
}

type Option func(*Device)

// New builds an A8 mini at rest unless options say otherwise.
func New(opts ...Option) *Device {
	d := &Device{
		addr:    "127.0.0.1:0",
		readyCh: make(chan struct{}),
		logger:  logging.Discard(),
		now:     time.Now,
		firmware: [3]siyi.Version{
			{Major: 0, Minor: 3, Patch: 1},
			{Major: 0, Minor: 2, Patch: 7},
			{Major: 0, Minor: 1, Patch: 4},
		},
	}
	lim, _ := device.Builtin().Lookup("73")
	d.hwid = HardwareIDFor("73")
	d.g = newGimbal(lim, defaultMaxRate, d.now())
	for _, o := range opts {
		o(d)
	}
	return d
}

func WithListenAddr(a string) Option { return func(d *Device) { d.addr = a } }

func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithModel sets the hardware type code reported by the ID reply and the
// mechanical limits of that model. Codes missing from the built-in table
// keep the current limits.
func WithModel(code string) Option {
	return func(d *Device) {
		d.hwid = HardwareIDFor(code)
		if lim, err := device.Builtin().Lookup(code); err == nil {
			d.g.limits = lim
		}
	}
}

// WithMaxRate sets the angular rate in deg/s reached at speed 100.
func WithMaxRate(degPerSec float64) Option {
	return func(d *Device) {
		if degPerSec > 0 {
			d.g.maxRate = degPerSec
		}
	}
}

// WithFirmware sets the code board, gimbal and zoom version words.
func WithFirmware(code, gimbal, zoom siyi.Version) Option {
	return func(d *Device) { d.firmware = [3]siyi.Version{code, gimbal, zoom} }
}

// WithFrozenSequence stamps every reply with sequence 0, like firmware that
// never advances its own counter.
func WithFrozenSequence() Option { return func(d *Device) { d.frozenSeq = true } }

// WithQuietModeChange suppresses the feedback frame for lock, follow and
// FPV requests.
func WithQuietModeChange() Option { return func(d *Device) { d.modeQuiet = true } }

// WithUnsolicited makes the device send a cmd frame ahead of every reply.
func WithUnsolicited(cmd siyi.Command) Option { return func(d *Device) { d.extra = cmd } }

func (d *Device) Addr() string           { d.mu.Lock(); defer d.mu.Unlock(); return d.addr }
func (d *Device) setAddr(a string)       { d.mu.Lock(); d.addr = a; d.mu.Unlock() }
func (d *Device) Ready() <-chan struct{} { return d.readyCh }

// SetMuted stops (or resumes) all replies and pushed frames.
func (d *Device) SetMuted(v bool) { d.muted.Store(v) }

// SetNoise prefixes each reply datagram with bytes that are not a frame.
func (d *Device) SetNoise(v bool) { d.noise.Store(v) }

// DropNext discards the next n requests without replying.
func (d *Device) DropNext(n int) { d.drop.Store(int64(n)) }

// SetAttitude moves the gimbal instantly and stops any rotation.
func (d *Device) SetAttitude(yaw, pitch, roll float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.g.yaw, d.g.pitch, d.g.roll = yaw, pitch, roll
	d.g.yawSpeed, d.g.pitchSpeed = 0, 0
	d.g.updated = d.now()
}

// Attitude returns the current simulated yaw, pitch and roll.
func (d *Device) Attitude() (yaw, pitch, roll float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.g.advance(d.now())
	return d.g.yaw, d.g.pitch, d.g.roll
}

// Speed returns the last commanded yaw and pitch speeds.
func (d *Device) Speed() (yaw, pitch int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.g.yawSpeed, d.g.pitchSpeed
}

// SetRecordState overrides the recording state, e.g. to simulate a missing card.
func (d *Device) SetRecordState(r siyi.RecordState) {
	d.mu.Lock()
	d.g.recording = r
	d.mu.Unlock()
}

func (d *Device) MotionMode() siyi.MotionMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.g.motion
}

// Requests counts every decoded request, answered or not.
func (d *Device) Requests() uint64 { return d.requests.Load() }

// HardwareIDFor builds a 10-byte hardware ID whose first byte carries code
// with its nibbles swapped, the way the camera reports it.
func HardwareIDFor(code string) []byte {
	id := []byte{0, 0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38}
	if len(code) == 2 {
		if b, err := strconv.ParseUint(string([]byte{code[1], code[0]}), 16, 8); err == nil {
			id[0] = byte(b)
		}
	}
	return id
}

// Serve answers UDP requests on the listen address until ctx is done. The
// last peer to send a request receives pushed data stream frames.
func (d *Device) Serve(ctx context.Context) error {
	pc, err := net.ListenPacket("udp", d.Addr())
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		return wrap
	}
	d.setAddr(pc.LocalAddr().String())
	d.readyOnce.Do(func() { close(d.readyCh) })
	d.logger.Info("sim_listen", "addr", d.Addr())
	go func() { <-ctx.Done(); _ = pc.Close() }()
	go d.pushLoop(ctx)

	buf := make([]byte, 2048)
	for {
		n, peer, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				d.logger.Info("sim_stopped", "requests", d.requests.Load(), "replies", d.replies.Load())
				return nil
			}
			wrap := fmt.Errorf("%w: %v", ErrRead, err)
			metrics.IncError(mapErrToMetric(wrap))
			return wrap
		}
		d.setSink(func(b []byte) error {
			_, err := pc.WriteTo(b, peer)
			return err
		})
		for _, f := range d.codec.DecodeAll(buf[:n]) {
			d.reply(f)
		}
	}
}

// ServeLink answers requests arriving on link until ctx is done or the link
// closes. Frames may be split across reads unless link keeps datagram
// boundaries.
func (d *Device) ServeLink(ctx context.Context, link transport.Link) error {
	d.setSink(func(b []byte) error { return link.Send(ctx, b) })
	d.readyOnce.Do(func() { close(d.readyCh) })
	go d.pushLoop(ctx)
	datagram := transport.IsDatagram(link)
	var in bytes.Buffer
	for {
		b, err := link.Receive(ctx, 100*time.Millisecond)
		switch {
		case err == nil:
		case errors.Is(err, transport.ErrTimeout):
			continue
		case ctx.Err() != nil, errors.Is(err, transport.ErrClosed):
			return nil
		default:
			wrap := fmt.Errorf("%w: %v", ErrRead, err)
			metrics.IncError(mapErrToMetric(wrap))
			return wrap
		}
		if datagram {
			in.Reset()
		}
		in.Write(b)
		_ = d.codec.DecodeStream(&in, d.reply)
	}
}

func (d *Device) setSink(fn func([]byte) error) {
	d.sinkMu.Lock()
	d.sink = fn
	d.sinkMu.Unlock()
}

func (d *Device) send(frames []siyi.Frame) {
	d.sinkMu.Lock()
	sink := d.sink
	d.sinkMu.Unlock()
	if sink == nil || len(frames) == 0 {
		return
	}
	for _, f := range frames {
		wire, err := siyi.AppendFrame(nil, f)
		if err != nil {
			d.logger.Error("sim_encode_error", "cmd", f.Cmd.String(), "error", err)
			continue
		}
		if d.noise.Load() {
			wire = append([]byte{0x55, 0x00, 0xAA}, wire...)
		}
		if err := sink(wire); err != nil {
			wrap := fmt.Errorf("%w: %v", ErrWrite, err)
			metrics.IncError(mapErrToMetric(wrap))
			d.logger.Debug("sim_write_error", "error", wrap)
			return
		}
		d.replies.Add(1)
	}
}

func (d *Device) reply(f siyi.Frame) {
	d.requests.Add(1)
	if d.muted.Load() {
		return
	}
	if d.drop.Load() > 0 && d.drop.Add(-1) >= 0 {
		d.logger.Debug("sim_drop", "cmd", f.Cmd.String(), "seq", f.Seq)
		return
	}
	d.send(d.handle(f))
}

// pushLoop emits attitude frames at the rate set by the data stream command.
func (d *Device) pushLoop(ctx context.Context) {
	t := time.NewTicker(pushTick)
	defer t.Stop()
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			d.mu.Lock()
			hz := d.g.attitudeHz
			d.mu.Unlock()
			if hz <= 0 || d.muted.Load() || now.Sub(last) < time.Second/time.Duration(hz) {
				continue
			}
			last = now
			d.mu.Lock()
			d.g.advance(d.now())
			f := d.attitudeFrame()
			d.mu.Unlock()
			d.send([]siyi.Frame{f})
		}
	}
}
