// Package control drives the gimbal to a target attitude with a
// proportional speed loop.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

var (
	// ErrAttitudeUnavailable means too many consecutive attitude reads failed.
	ErrAttitudeUnavailable = errors.New("control: attitude unavailable")
	// ErrNotConverged means the iteration budget ran out before both axes
	// were within the threshold.
	ErrNotConverged = errors.New("control: target not reached")
)

// Gimbal is the part of a session the controller needs.
type Gimbal interface {
	GimbalAttitude(ctx context.Context) (siyi.Attitude, error)
	SetGimbalSpeed(ctx context.Context, yaw, pitch int) error
}

// Target is the requested attitude in degrees.
type Target struct {
	Yaw, Pitch float64
}

// Defaults.
const (
	DefaultKp                = 4.0
	DefaultThreshold         = 0.5
	DefaultPeriod            = 100 * time.Millisecond
	DefaultMaxIterations     = 600
	DefaultMaxAttitudeErrors = 5
)

// Config tunes RotateTo. Zero fields take the defaults.
type Config struct {
	Kp        float64
	Threshold float64 // degrees, both axes
	Period    time.Duration
	// MaxIterations bounds the loop; each iteration is one attitude read.
	MaxIterations int
	// MaxAttitudeErrors is how many consecutive failed reads abort the loop.
	MaxAttitudeErrors int
	// Limits, if set, clamps the target to the model range first.
	Limits *device.Limits
}

func (c Config) withDefaults() Config {
	if c.Kp <= 0 {
		c.Kp = DefaultKp
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxAttitudeErrors <= 0 {
		c.MaxAttitudeErrors = DefaultMaxAttitudeErrors
	}
	return c
}

// Result describes how a rotation ended.
type Result struct {
	Target     Target
	Final      siyi.Attitude
	YawErr     float64
	PitchErr   float64
	Iterations int
	Elapsed    time.Duration
}

// Errors returns the yaw and pitch errors for attitude a. Yaw is inverted:
// a positive yaw speed turns toward negative yaw.
func Errors(a siyi.Attitude, t Target) (yawErr, pitchErr float64) {
	return a.Yaw - t.Yaw, t.Pitch - a.Pitch
}

// Speed converts an error into a speed command in [-100, 100]. The product
// is truncated toward zero.
func Speed(kp, err float64) int {
	v := kp * err
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(math.Min(v, siyi.MaxSpeed), siyi.MinSpeed)
	return int(v)
}

// RotateTo runs the loop until both axes are within cfg.Threshold of target,
// then commands zero speed. On any other exit it still tries to stop the
// gimbal before returning.
func RotateTo(ctx context.Context, g Gimbal, target Target, cfg Config, l *slog.Logger) (Result, error) {
	cfg = cfg.withDefaults()
	l = logging.OrDiscard(l)
	if cfg.Limits != nil {
		y, p, clamped := cfg.Limits.Clamp(target.Yaw, target.Pitch)
		if clamped {
			l.Warn("rotate_target_clamped", "model", cfg.Limits.Name, "yaw", target.Yaw, "pitch", target.Pitch, "yaw_used", y, "pitch_used", p)
		}
		target = Target{Yaw: y, Pitch: p}
	}
	res := Result{Target: target}
	start := time.Now()
	l.Info("rotate_start", "yaw", target.Yaw, "pitch", target.Pitch, "kp", cfg.Kp, "threshold", cfg.Threshold)

	t := time.NewTicker(cfg.Period)
	defer t.Stop()
	failures := 0
	moving := false
	for res.Iterations < cfg.MaxIterations {
		res.Iterations++
		a, err := g.GimbalAttitude(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return finish(ctx, g, res, start, moving, l, ctx.Err())
		case err != nil:
			failures++
			l.Debug("rotate_attitude_failed", "count", failures, "error", err)
			if failures >= cfg.MaxAttitudeErrors {
				return finish(ctx, g, res, start, moving, l, fmt.Errorf("%w after %d reads: %w", ErrAttitudeUnavailable, failures, err))
			}
		default:
			failures = 0
			res.Final = a
			res.YawErr, res.PitchErr = Errors(a, target)
			if math.Abs(res.YawErr) <= cfg.Threshold && math.Abs(res.PitchErr) <= cfg.Threshold {
				if err := g.SetGimbalSpeed(ctx, 0, 0); err != nil {
					return finish(ctx, g, res, start, moving, l, fmt.Errorf("stop: %w", err))
				}
				res.Elapsed = time.Since(start)
				l.Info("rotate_done", "yaw", a.Yaw, "pitch", a.Pitch, "iterations", res.Iterations, "elapsed", res.Elapsed.Round(time.Millisecond))
				return res, nil
			}
			ys, ps := Speed(cfg.Kp, res.YawErr), Speed(cfg.Kp, res.PitchErr)
			l.Debug("rotate_step", "yaw", a.Yaw, "pitch", a.Pitch, "yaw_err", res.YawErr, "pitch_err", res.PitchErr, "yaw_speed", ys, "pitch_speed", ps)
			if err := g.SetGimbalSpeed(ctx, ys, ps); err != nil {
				if ctx.Err() != nil {
					return finish(ctx, g, res, start, true, l, ctx.Err())
				}
				l.Debug("rotate_speed_failed", "error", err)
			}
			moving = true
		}
		select {
		case <-ctx.Done():
			return finish(ctx, g, res, start, moving, l, ctx.Err())
		case <-t.C:
		}
	}
	return finish(ctx, g, res, start, moving, l, fmt.Errorf("%w in %d iterations: yaw_err=%.1f pitch_err=%.1f", ErrNotConverged, res.Iterations, res.YawErr, res.PitchErr))
}

// finish stops a moving gimbal on a context detached from ctx's
// cancellation and returns err.
func finish(ctx context.Context, g Gimbal, res Result, start time.Time, moving bool, l *slog.Logger, err error) (Result, error) {
	res.Elapsed = time.Since(start)
	if moving {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if serr := g.SetGimbalSpeed(sctx, 0, 0); serr != nil {
			l.Warn("rotate_stop_failed", "error", serr)
		}
	}
	l.Warn("rotate_aborted", "iterations", res.Iterations, "yaw_err", res.YawErr, "pitch_err", res.PitchErr, "error", err)
	return res, err
}
