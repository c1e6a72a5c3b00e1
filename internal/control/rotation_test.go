package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/simulator"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

// stepGimbal moves by speed*gain degrees per attitude read.
type stepGimbal struct {
	mu         sync.Mutex
	yaw, pitch float64
	ys, ps     int
	gain       float64
	speeds     [][2]int
	failReads  int
	attErr     error
}

func (g *stepGimbal) GimbalAttitude(ctx context.Context) (siyi.Attitude, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failReads > 0 {
		g.failReads--
		return siyi.Attitude{}, g.attErr
	}
	if g.attErr != nil && g.failReads < 0 {
		return siyi.Attitude{}, g.attErr
	}
	g.yaw -= float64(g.ys) * g.gain
	g.pitch += float64(g.ps) * g.gain
	return siyi.Attitude{Yaw: g.yaw, Pitch: g.pitch}, nil
}

func (g *stepGimbal) SetGimbalSpeed(ctx context.Context, yaw, pitch int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ys, g.ps = yaw, pitch
	g.speeds = append(g.speeds, [2]int{yaw, pitch})
	return nil
}

func (g *stepGimbal) lastSpeed() [2]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.speeds) == 0 {
		return [2]int{-1, -1}
	}
	return g.speeds[len(g.speeds)-1]
}

func fast() Config { return Config{Period: time.Millisecond, MaxIterations: 500} }

func TestErrorsAndSpeed(t *testing.T) {
	ye, pe := Errors(siyi.Attitude{Yaw: 10, Pitch: -5}, Target{Yaw: 30, Pitch: 5})
	assert.InDelta(t, -20, ye, 1e-9)
	assert.InDelta(t, 10, pe, 1e-9)

	tests := []struct {
		err  float64
		want int
	}{
		{0, 0},
		{0.2, 0},
		{2.6, 10},
		{-2.6, -10},
		{30, 100},
		{-30, -100},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Speed(4, tc.err), "err %v", tc.err)
	}
}

func TestRotateTo_Converges(t *testing.T) {
	g := &stepGimbal{yaw: 40, pitch: -30, gain: 0.05}
	res, err := RotateTo(context.Background(), g, Target{Yaw: -20, Pitch: 10}, fast(), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, abs(res.YawErr), DefaultThreshold)
	assert.LessOrEqual(t, abs(res.PitchErr), DefaultThreshold)
	assert.Equal(t, [2]int{0, 0}, g.lastSpeed(), "final command must stop the gimbal")
	assert.Less(t, res.Iterations, 500)
}

func TestRotateTo_AlreadyThere(t *testing.T) {
	g := &stepGimbal{yaw: 5, pitch: 5, gain: 0.05}
	res, err := RotateTo(context.Background(), g, Target{Yaw: 5.3, Pitch: 4.8}, fast(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, g.speeds, 1)
	assert.Equal(t, [2]int{0, 0}, g.speeds[0])
}

func TestRotateTo_ClampsTargetToLimits(t *testing.T) {
	lim := device.Limits{YawMin: -135, YawMax: 135, PitchMin: -90, PitchMax: 25}
	cfg := fast()
	cfg.Limits = &lim
	g := &stepGimbal{gain: 0.1}
	res, err := RotateTo(context.Background(), g, Target{Yaw: 0, Pitch: 60}, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, res.Target.Pitch)
	assert.InDelta(t, 25, res.Final.Pitch, DefaultThreshold)
}

func TestRotateTo_AttitudeFailuresAbort(t *testing.T) {
	boom := errors.New("no reply")
	g := &stepGimbal{gain: 0.05, failReads: -1, attErr: boom}
	cfg := fast()
	cfg.MaxAttitudeErrors = 3
	res, err := RotateTo(context.Background(), g, Target{Yaw: 10}, cfg, nil)
	require.ErrorIs(t, err, ErrAttitudeUnavailable)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, res.Iterations)
	assert.Empty(t, g.speeds, "never moved, nothing to stop")
}

func TestRotateTo_TransientFailuresTolerated(t *testing.T) {
	g := &stepGimbal{yaw: 10, gain: 0.05, failReads: 2, attErr: errors.New("timeout")}
	_, err := RotateTo(context.Background(), g, Target{}, fast(), nil)
	require.NoError(t, err)
}

func TestRotateTo_NotConverged(t *testing.T) {
	g := &stepGimbal{yaw: 100, gain: 0} // never moves
	cfg := fast()
	cfg.MaxIterations = 5
	res, err := RotateTo(context.Background(), g, Target{}, cfg, nil)
	require.ErrorIs(t, err, ErrNotConverged)
	assert.Equal(t, 5, res.Iterations)
	assert.Equal(t, [2]int{0, 0}, g.lastSpeed())
}

func TestRotateTo_ContextCancelStops(t *testing.T) {
	g := &stepGimbal{yaw: 100, gain: 0}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	cfg := Config{Period: 5 * time.Millisecond}
	_, err := RotateTo(ctx, g, Target{}, cfg, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, [2]int{0, 0}, g.lastSpeed())
}

func TestRotateTo_Simulator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, b := transport.Pipe(64)
	d := simulator.New(simulator.WithMaxRate(90))
	go func() { _ = d.ServeLink(ctx, b) }()
	<-d.Ready()
	s := session.New(a, session.WithReceiveTimeout(100*time.Millisecond))
	defer s.Close()

	d.SetAttitude(30, -20, 0)
	lim, err := s.Limits(ctx)
	require.NoError(t, err)
	cfg := Config{Period: 20 * time.Millisecond, Limits: &lim}
	res, err := RotateTo(ctx, s, Target{Yaw: -15, Pitch: 10}, cfg, nil)
	require.NoError(t, err)
	assert.InDelta(t, -15, res.Final.Yaw, 1)
	assert.InDelta(t, 10, res.Final.Pitch, 1)

	ys, ps := d.Speed()
	assert.Zero(t, ys)
	assert.Zero(t, ps)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
