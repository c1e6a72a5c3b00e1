package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-siyi-gimbal/internal/simulator"
)

func TestConnect_ReachesConnectedAndPolls(t *testing.T) {
	for _, mode := range []Mode{ModeSync, ModeStream} {
		t.Run(mode.String(), func(t *testing.T) {
			s, _ := newSimSession(t, nil, fastOptions(WithMode(mode))...)
			require.NoError(t, s.Connect(context.Background(), time.Second))
			assert.Equal(t, StateConnected, s.State())

			require.Eventually(t, func() bool {
				snap := s.Snapshot()
				return snap.Firmware != nil && snap.Attitude != nil && snap.GimbalInfo != nil
			}, time.Second, 10*time.Millisecond)

			snap := s.Snapshot()
			assert.Equal(t, "v0.3.1", snap.Firmware.CodeBoard.String())
			assert.Less(t, snap.AttitudeAge, time.Second)
			_, err := s.Attitude()
			assert.NoError(t, err)

			// Connect on a connected session is a no-op.
			require.NoError(t, s.Connect(context.Background(), time.Second))
		})
	}
}

func TestConnect_TimeoutWhenDeviceSilent(t *testing.T) {
	s, d := newSimSession(t, nil, fastOptions()...)
	d.SetMuted(true)

	start := time.Now()
	err := s.Connect(context.Background(), 150*time.Millisecond)
	require.ErrorIs(t, err, ErrConnectTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Nil(t, s.Snapshot().Firmware)
}

func TestConnect_RetriesUntilFirstReply(t *testing.T) {
	s, d := newSimSession(t, nil, fastOptions()...)
	d.DropNext(2)
	require.NoError(t, s.Connect(context.Background(), time.Second))
	assert.Equal(t, StateConnected, s.State())
	assert.GreaterOrEqual(t, d.Requests(), uint64(3))
}

func TestConnect_FrozenReplySequence(t *testing.T) {
	s, _ := newSimSession(t, []simulator.Option{simulator.WithFrozenSequence()}, fastOptions()...)
	require.NoError(t, s.Connect(context.Background(), time.Second))
	// Freshness comes from the reply count, not the reply sequence, so the
	// session stays up.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, StateConnected, s.State())
}

func TestConnect_CallerContextCancelled(t *testing.T) {
	s, d := newSimSession(t, nil, fastOptions()...)
	d.SetMuted(true)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(40 * time.Millisecond)
		cancel()
	}()
	err := s.Connect(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestConnect_DisconnectAfterProbeWins(t *testing.T) {
	s, d := newSimSession(t, nil, fastOptions()...)
	s.probed = s.Disconnect
	err := s.Connect(context.Background(), time.Second)
	require.ErrorIs(t, err, ErrConnectAborted)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Nil(t, s.Snapshot().Firmware)

	time.Sleep(30 * time.Millisecond)
	n := d.Requests()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, d.Requests(), "pollers started after Disconnect")

	// The next Connect is unaffected.
	s.probed = nil
	require.NoError(t, s.Connect(context.Background(), time.Second))
}

func TestConnect_DisconnectWhileProbing(t *testing.T) {
	s, d := newSimSession(t, nil, fastOptions()...)
	d.SetMuted(true)
	go func() {
		time.Sleep(40 * time.Millisecond)
		s.Disconnect()
	}()
	err := s.Connect(context.Background(), 5*time.Second)
	assert.ErrorIs(t, err, ErrConnectAborted)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestLiveness_LossDisconnectsAndClearsCache(t *testing.T) {
	s, d := newSimSession(t, nil, fastOptions()...)
	require.NoError(t, s.Connect(context.Background(), time.Second))
	require.Eventually(t, func() bool { return s.Snapshot().Attitude != nil }, time.Second, 10*time.Millisecond)

	d.SetMuted(true)
	require.Eventually(t, func() bool { return s.State() == StateDisconnected }, 2*time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Nil(t, snap.Firmware)
	assert.Nil(t, snap.Attitude)
	assert.Nil(t, snap.GimbalInfo)
	_, err := s.Attitude()
	assert.ErrorIs(t, err, ErrNotConnected)

	// The device comes back and a new Connect succeeds.
	d.SetMuted(false)
	require.NoError(t, s.Connect(context.Background(), time.Second))
	assert.Equal(t, StateConnected, s.State())
}

func TestDisconnect_StopsPollers(t *testing.T) {
	s, d := newSimSession(t, nil, fastOptions()...)
	require.NoError(t, s.Connect(context.Background(), time.Second))
	time.Sleep(60 * time.Millisecond)

	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())
	assert.Nil(t, s.Snapshot().Firmware)

	// Let a request sent just before the stop reach the device.
	time.Sleep(30 * time.Millisecond)
	n := d.Requests()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, n, d.Requests(), "pollers still running after Disconnect")

	// Idempotent.
	s.Disconnect()
}

func TestWaitConnected(t *testing.T) {
	s, _ := newSimSession(t, nil, fastOptions()...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitConnected(ctx), ErrNotConnected)

	go func() { _ = s.Connect(context.Background(), time.Second) }()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, s.WaitConnected(ctx2))
}
