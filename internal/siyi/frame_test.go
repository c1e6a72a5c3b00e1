package siyi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_FirmwareRequest(t *testing.T) {
	got, err := Encode(nil, CmdFirmwareVersion, 1)
	require.NoError(t, err)
	want := []byte{0x55, 0x66, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x54, 0xF3}
	assert.Equal(t, want, got)
}

func TestEncode_CRCStoredLowByteFirst(t *testing.T) {
	wire, err := Encode([]byte{0x01}, CmdCenter, 0)
	require.NoError(t, err)
	sum := CRC16(wire[:len(wire)-2])
	assert.Equal(t, byte(sum), wire[len(wire)-2])
	assert.Equal(t, byte(sum>>8), wire[len(wire)-1])
}

func TestEncodeHex_OddLengthPadded(t *testing.T) {
	a, err := EncodeHex("1", CmdCenter, 7)
	require.NoError(t, err)
	b, err := EncodeHex("01", CmdCenter, 7)
	require.NoError(t, err)
	assert.Equal(t, b, a)
	assert.Equal(t, byte(1), a[3], "data length counts bytes")
}

func TestEncodeHex_Invalid(t *testing.T) {
	_, err := EncodeHex("zz", CmdCenter, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncoding))
	var ee *EncodingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "zz", ee.Input)
}

func TestAppendFrame_TooLong(t *testing.T) {
	dst := []byte{0xAA}
	out, err := AppendFrame(dst, Frame{Cmd: CmdCenter, Payload: make([]byte, MaxPayloadLen+1)})
	require.ErrorIs(t, err, ErrEncoding)
	assert.Equal(t, []byte{0xAA}, out)
}

func TestDecode_RoundTrip(t *testing.T) {
	payloads := [][]byte{nil, {0x01}, {0xFF, 0x00, 0x7F}, bytes.Repeat([]byte{0x55, 0x66}, 40)}
	for _, cmd := range Commands() {
		for i, p := range payloads {
			seq := uint16(i*7919 + int(cmd))
			wire, err := Encode(p, cmd, seq)
			require.NoError(t, err)
			f, n, err := Decode(wire)
			require.NoError(t, err, "cmd %s", cmd)
			assert.Equal(t, len(wire), n)
			assert.Equal(t, cmd, f.Cmd)
			assert.Equal(t, seq, f.Seq)
			assert.Equal(t, ControlNeedAck, f.Control)
			assert.Equal(t, len(p), len(f.Payload))
			assert.True(t, bytes.Equal(p, f.Payload))
		}
	}
}

func TestDecode_GarbagePrefix(t *testing.T) {
	wire, _ := Encode([]byte{0x10, 0x20}, CmdGimbalSpeed, 3)
	buf := append([]byte{0x00, 0x13, 0x55, 0x42}, wire...)
	f, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, CmdGimbalSpeed, f.Cmd)
}

func TestDecode_PayloadNotAliased(t *testing.T) {
	wire, _ := Encode([]byte{0x01, 0x02}, CmdCenter, 1)
	f, _, err := Decode(wire)
	require.NoError(t, err)
	wire[HeaderLen] = 0xEE
	assert.Equal(t, byte(0x01), f.Payload[0])
}

func TestDecode_Errors(t *testing.T) {
	full, _ := Encode([]byte{0xAA, 0xBB, 0xCC}, CmdGimbalAttitude, 9)
	bad := append([]byte(nil), full...)
	bad[HeaderLen] ^= 0x01
	long := []byte{0x55, 0x66, 0x01, 0xFF, 0xFF, 0x00, 0x00, 0x0D}

	cases := []struct {
		name  string
		in    []byte
		err   error
		wantN int
	}{
		{"empty", nil, ErrNoFrameFound, 0},
		{"no_marker", []byte{1, 2, 3, 4}, ErrNoFrameFound, 4},
		{"trailing_half_marker", []byte{1, 2, 0x55}, ErrNoFrameFound, 2},
		{"short_header", []byte{9, 0x55, 0x66, 0x01}, ErrIncompleteFrame, 1},
		{"truncated_payload", full[:len(full)-3], ErrIncompleteFrame, 0},
		{"truncated_crc", full[:len(full)-1], ErrIncompleteFrame, 0},
		{"checksum", bad, ErrChecksum, 1},
		{"length_out_of_range", long, ErrLengthOutOfRange, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, n, err := Decode(tc.in)
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.wantN, n)
		})
	}
}

// A corrupted candidate whose payload hides a genuine frame must not swallow it.
func TestDecode_ResyncOneByte(t *testing.T) {
	inner, _ := Encode([]byte{0x01}, CmdCenter, 42)
	outer := []byte{0x55, 0x66, 0x01, byte(len(inner) + 1), 0x00, 0x00, 0x00, 0x0D}
	outer = append(outer, 0x55) // false start before the real marker
	buf := append(outer, inner...)

	_, n, err := Decode(buf)
	require.ErrorIs(t, err, ErrIncompleteFrame)
	assert.Equal(t, 0, n)

	buf = append(buf, 0x00, 0x00) // bogus crc, now the outer candidate is complete
	_, n, err = Decode(buf)
	require.ErrorIs(t, err, ErrChecksum)
	require.Equal(t, 1, n)

	f, _, err := Decode(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, CmdCenter, f.Cmd)
	assert.Equal(t, uint16(42), f.Seq)
}

func TestFrame_MarshalBinary(t *testing.T) {
	f := Frame{Control: ControlNoAck, Seq: 5, Cmd: CmdGimbalAttitude}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	got, _, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, ControlNoAck, got.Control)
	assert.Contains(t, got.String(), "gimbal_attitude")
}
