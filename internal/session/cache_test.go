package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

func TestCache_StoreAndSlots(t *testing.T) {
	c := newCache()

	_, err := c.store(siyi.Frame{Cmd: siyi.CmdManualZoom, Payload: []byte{35, 0}})
	require.NoError(t, err)
	z := cached[siyi.ZoomLevel](c, siyi.CmdCurrentZoom)
	require.NotNil(t, z)
	assert.InDelta(t, 3.5, z.Level, 0.01)

	_, err = c.store(siyi.Frame{Cmd: siyi.CmdSetImageMode, Payload: []byte{4}})
	require.NoError(t, err)
	m := cached[siyi.ImageMode](c, siyi.CmdImageMode)
	require.NotNil(t, m)
	assert.Equal(t, uint8(4), m.Mode)

	_, err = c.store(siyi.Frame{Cmd: siyi.CmdCodecSpecs, Payload: []byte{2, 1, 0, 5, 0xd0, 2, 0xb8, 0x0b, 30}})
	require.NoError(t, err)
	_, err = c.store(siyi.Frame{Cmd: siyi.CmdCodecSpecs, Payload: []byte{1, 2, 0x80, 7, 0x38, 4, 0xa0, 0x0f, 30}})
	require.NoError(t, err)

	var snap Snapshot
	c.fill(&snap)
	require.Len(t, snap.Codecs, 2)
	assert.Equal(t, siyi.VideoMain, snap.Codecs[0].Stream)
	assert.Equal(t, siyi.VideoSub, snap.Codecs[1].Stream)
	assert.Nil(t, snap.Attitude)
	assert.Zero(t, snap.AttitudeAge)
}

func TestCache_GenerationCountsEveryReply(t *testing.T) {
	c := newCache()
	f := siyi.Frame{Cmd: siyi.CmdFirmwareVersion, Seq: 0, Payload: []byte{1, 2, 3, 0}}
	for i := 0; i < 3; i++ {
		_, err := c.store(f)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), c.generation(siyi.CmdFirmwareVersion))

	// A reply that cannot be parsed still proves the device answered.
	_, err := c.store(siyi.Frame{Cmd: siyi.CmdFirmwareVersion, Payload: []byte{1}})
	require.ErrorIs(t, err, siyi.ErrShortPayload)
	assert.Equal(t, uint64(4), c.generation(siyi.CmdFirmwareVersion))

	// Acks only move the generation.
	_, err = c.store(siyi.Frame{Cmd: siyi.CmdCenter, Payload: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.generation(siyi.CmdCenter))
	_, _, ok := c.get(siyi.CmdCenter)
	assert.False(t, ok)
}

func TestCache_ClearKeepsGenerations(t *testing.T) {
	c := newCache()
	_, err := c.store(siyi.Frame{Cmd: siyi.CmdFirmwareVersion, Payload: []byte{1, 2, 3, 0}})
	require.NoError(t, err)
	c.clear()
	assert.Nil(t, cached[siyi.FirmwareVersion](c, siyi.CmdFirmwareVersion))
	assert.Equal(t, uint64(1), c.generation(siyi.CmdFirmwareVersion))
}
