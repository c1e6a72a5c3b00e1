package siyi

import (
	"bytes"
	"testing"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t testing.TB, cmd Command, seq uint16, payload ...byte) []byte {
	t.Helper()
	b, err := Encode(payload, cmd, seq)
	require.NoError(t, err)
	return b
}

func TestDecodeStream_Chunked(t *testing.T) {
	codec := Codec{}
	want := []Frame{
		{Control: ControlNeedAck, Seq: 1, Cmd: CmdFirmwareVersion, Payload: []byte{0x00, 0x00, 0x00, 0x01}},
		{Control: ControlNeedAck, Seq: 2, Cmd: CmdGimbalAttitude, Payload: []byte{0x10, 0x00, 0xF0, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0}},
		{Control: ControlNeedAck, Seq: 3, Cmd: CmdCenter, Payload: []byte{0x01}},
		{Control: ControlNeedAck, Seq: 65535, Cmd: CmdHardwareID, Payload: []byte{0x37, 0x30, 0x55, 0x66}},
	}
	stream := []byte{0xDE, 0xAD}
	for _, f := range want {
		b, err := f.MarshalBinary()
		require.NoError(t, err)
		stream = append(stream, b...)
	}

	var buf bytes.Buffer
	var got []Frame
	chunkSizes := []int{1, 2, 3, 5, 7, 11}
	cs := 0
	for pos := 0; pos < len(stream); {
		n := chunkSizes[cs%len(chunkSizes)]
		cs++
		if pos+n > len(stream) {
			n = len(stream) - pos
		}
		buf.Write(stream[pos : pos+n])
		pos += n
		require.NoError(t, codec.DecodeStream(&buf, func(f Frame) { got = append(got, f) }))
	}
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Cmd, got[i].Cmd)
		assert.Equal(t, want[i].Seq, got[i].Seq)
		assert.Equal(t, want[i].Payload, got[i].Payload)
	}
	assert.Zero(t, buf.Len())
}

func TestDecodeStream_SkipsCorruptFrame(t *testing.T) {
	codec := Codec{}
	bad := mustEncode(t, CmdGimbalInfo, 1, 0, 0, 0, 1, 0, 1)
	bad[len(bad)-1] ^= 0xFF
	good := mustEncode(t, CmdCenter, 2, 0x01)

	before := metrics.Snap().Malformed
	buf := bytes.NewBuffer(append(bad, good...))
	var got []Frame
	require.NoError(t, codec.DecodeStream(buf, func(f Frame) { got = append(got, f) }))
	require.Len(t, got, 1)
	assert.Equal(t, CmdCenter, got[0].Cmd)
	assert.Greater(t, metrics.Snap().Malformed, before)
}

func TestDecodeStream_KeepsSplitMarker(t *testing.T) {
	codec := Codec{}
	wire := mustEncode(t, CmdCenter, 9, 0x01)
	buf := bytes.NewBuffer([]byte{0x01, 0x02, wire[0]})
	var got []Frame
	require.NoError(t, codec.DecodeStream(buf, func(f Frame) { got = append(got, f) }))
	assert.Empty(t, got)
	assert.Equal(t, []byte{Marker0}, buf.Bytes())

	buf.Write(wire[1:])
	require.NoError(t, codec.DecodeStream(buf, func(f Frame) { got = append(got, f) }))
	require.Len(t, got, 1)
	assert.Equal(t, uint16(9), got[0].Seq)
}

func TestDecodeAll_Datagram(t *testing.T) {
	dg := append(mustEncode(t, CmdCenter, 1, 1), mustEncode(t, CmdAutoFocus, 2, 1)...)
	orig := append([]byte(nil), dg...)
	frames := Codec{}.DecodeAll(dg)
	require.Len(t, frames, 2)
	assert.Equal(t, CmdAutoFocus, frames[1].Cmd)
	assert.Equal(t, orig, dg)
}

func TestDecodeStream_LongRunKeepsOnlyPartialTail(t *testing.T) {
	codec := Codec{}
	frame := mustEncode(t, CmdGimbalAttitude, 7, make([]byte, 12)...)
	var buf bytes.Buffer
	n := 0
	for i := 0; i < 5000; i++ {
		buf.Write(frame[:5])
		require.NoError(t, codec.DecodeStream(&buf, func(Frame) { n++ }))
		buf.Write(frame[5:])
		require.NoError(t, codec.DecodeStream(&buf, func(Frame) { n++ }))
	}
	buf.Write(frame[:4])
	require.NoError(t, codec.DecodeStream(&buf, func(Frame) { n++ }))
	assert.Equal(t, 5000, n)
	assert.Equal(t, frame[:4], buf.Bytes())
	assert.Less(t, buf.Cap(), 4096, "consumed frames must not pin memory")
}

func TestDecodeStream_OnMalformedHook(t *testing.T) {
	var seen []error
	codec := Codec{OnMalformed: func(err error) { seen = append(seen, err) }}
	bad := mustEncode(t, CmdCenter, 1, 0x01)
	bad[HeaderLen] ^= 0x01
	buf := bytes.NewBuffer(bad)
	require.NoError(t, codec.DecodeStream(buf, func(Frame) {}))
	require.Len(t, seen, 1)
	assert.ErrorIs(t, seen[0], ErrChecksum)
}
