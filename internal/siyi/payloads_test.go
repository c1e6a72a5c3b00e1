package siyi

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGimbalSpeedPayload_Clamp(t *testing.T) {
	p := GimbalSpeedPayload(150, -150)
	want100, _ := IntToFixedHex(100, 8)
	wantM100, _ := IntToFixedHex(-100, 8)
	assert.Equal(t, "64", want100)
	assert.Equal(t, want100, hex.EncodeToString(p[:1]))
	assert.Equal(t, wantM100, hex.EncodeToString(p[1:]))

	assert.Equal(t, []byte{0x00, 0x00}, GimbalSpeedPayload(0, 0))
	assert.Equal(t, []byte{0x19, 0xE7}, GimbalSpeedPayload(25, -25))
}

func TestSetAnglesPayload(t *testing.T) {
	p := SetAnglesPayload(-90, 12.34)
	assert.Equal(t, "7cfc7b00", hex.EncodeToString(p))
	assert.Equal(t, int16(-1), Decidegrees(-0.06))
	assert.Equal(t, int16(32767), Decidegrees(1e6))
}

func TestDirectionPayload(t *testing.T) {
	assert.Equal(t, []byte{0x01}, DirectionPayload(5))
	assert.Equal(t, []byte{0xFF}, DirectionPayload(-1))
	assert.Equal(t, []byte{0x00}, DirectionPayload(0))
}

func TestAbsoluteZoomPayload(t *testing.T) {
	p, err := AbsoluteZoomPayload(4.5)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, p)

	p, err = AbsoluteZoomPayload(2.96)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0}, p)

	_, err = AbsoluteZoomPayload(0.5)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestDataStreamPayload(t *testing.T) {
	for i, hz := range StreamFrequencies() {
		p, err := DataStreamPayload(StreamAttitude, hz)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, byte(i)}, p)
	}
	_, err := DataStreamPayload(StreamAttitude, 30)
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = DataStreamPayload(StreamType(9), 10)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestCodecSetPayload(t *testing.T) {
	p, err := CodecSetPayload(CodecSpecs{Stream: VideoMain, Encoding: EncodingH265, Width: 1920, Height: 1080, BitrateKbps: 4000})
	require.NoError(t, err)
	assert.Equal(t, "010280073804a00f00", hex.EncodeToString(p))

	_, err = CodecSetPayload(CodecSpecs{Stream: VideoMain, Encoding: 7})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestMiscPayloads(t *testing.T) {
	assert.Equal(t, []byte{0x0A, 0x00, 0x14, 0x00, 0x01}, TemperatureAtPayload(10, 20, TempOnce))
	assert.Equal(t, []byte{1, 0}, SoftRestartPayload(true, false))
	assert.Equal(t, []byte{2}, PhotoVideoPayload(FuncToggleRecord))
	assert.Equal(t, []byte{1}, TriggerPayload())
	assert.Equal(t, []byte{2}, CodecQueryPayload(VideoSub))
	assert.Equal(t, "photo_video->function_feedback", Request{Cmd: CmdPhotoVideo, Reply: CmdFuncFeedback}.String())
	assert.Equal(t, "center", NewRequest(CmdCenter, nil).String())
}
