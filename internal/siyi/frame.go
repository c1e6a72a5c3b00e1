package siyi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Wire layout (all multi-byte fields little-endian):
//
//	0  2  marker     0x55 0x66
//	2  1  control    0x01 need ack / 0x00 no ack / 0x02 reply
//	3  2  data_len   payload byte count
//	5  2  sequence   wraps at 65536
//	7  1  command id
//	8  N  payload
//	8+N 2 crc16      XMODEM over [0, 8+N), low byte first
const (
	Marker0 byte = 0x55
	Marker1 byte = 0x66

	ControlNeedAck byte = 0x01
	ControlNoAck   byte = 0x00
	ControlAck     byte = 0x02 // set by the camera on replies

	HeaderLen   = 8
	CRCLen      = 2
	MinFrameLen = HeaderLen + CRCLen

	// MaxPayloadLen bounds the data length accepted in both directions. The
	// largest payload in the command catalog is a few dozen bytes; anything
	// above this is treated as a corrupted length field.
	MaxPayloadLen = 1024
)

var marker = []byte{Marker0, Marker1}

// Frame is one decoded (or to-be-encoded) protocol message. Payload is owned
// by the frame; Decode never aliases the input buffer.
type Frame struct {
	Control byte
	Seq     uint16
	Cmd     Command
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("%s seq=%d len=%d % X", f.Cmd, f.Seq, len(f.Payload), f.Payload)
}

// Encode builds a need-ack frame for cmd carrying payload, stamped with seq.
// The codec never picks or increments the sequence itself.
func Encode(payload []byte, cmd Command, seq uint16) ([]byte, error) {
	return AppendFrame(nil, Frame{Control: ControlNeedAck, Seq: seq, Cmd: cmd, Payload: payload})
}

// EncodeHex is Encode for a payload given as hex text (see PayloadFromHex).
func EncodeHex(payloadHex string, cmd Command, seq uint16) ([]byte, error) {
	p, err := PayloadFromHex(payloadHex)
	if err != nil {
		return nil, err
	}
	return Encode(p, cmd, seq)
}

// AppendFrame appends the wire form of f to dst. On error dst is returned
// unchanged; a partial frame is never produced.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadLen {
		return dst, &EncodingError{Reason: fmt.Sprintf("payload length %d exceeds %d", len(f.Payload), MaxPayloadLen)}
	}
	start := len(dst)
	out := append(dst, Marker0, Marker1, f.Control, 0, 0, 0, 0, byte(f.Cmd))
	binary.LittleEndian.PutUint16(out[start+3:], uint16(len(f.Payload)))
	binary.LittleEndian.PutUint16(out[start+5:], f.Seq)
	out = append(out, f.Payload...)
	c := CRC16(out[start:])
	return append(out, byte(c), byte(c>>8)), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (f Frame) MarshalBinary() ([]byte, error) { return AppendFrame(nil, f) }

// Decode looks for the first frame in buf. It returns the frame and the
// number of bytes of buf the caller may discard.
//
//   - ErrNoFrameFound: no marker; n covers everything except a trailing 0x55
//     that may be the first half of a marker split across reads.
//   - ErrIncompleteFrame: n covers only the garbage before the marker; wait
//     for more bytes.
//   - ErrChecksum, ErrLengthOutOfRange: n ends one byte past the marker start
//     so a scan resumes inside the rejected candidate.
//
// Decode has no side effects and never panics on arbitrary input.
func Decode(buf []byte) (Frame, int, error) {
	i := bytes.Index(buf, marker)
	if i < 0 {
		n := len(buf)
		if n > 0 && buf[n-1] == Marker0 {
			n--
		}
		return Frame{}, n, ErrNoFrameFound
	}
	cand := buf[i:]
	if len(cand) < HeaderLen {
		return Frame{}, i, ErrIncompleteFrame
	}
	dataLen := int(binary.LittleEndian.Uint16(cand[3:5]))
	if dataLen > MaxPayloadLen {
		return Frame{}, i + 1, fmt.Errorf("%w: %d", ErrLengthOutOfRange, dataLen)
	}
	total := MinFrameLen + dataLen
	if len(cand) < total {
		return Frame{}, i, ErrIncompleteFrame
	}
	body := cand[:HeaderLen+dataLen]
	got := binary.LittleEndian.Uint16(cand[HeaderLen+dataLen : total])
	if want := CRC16(body); got != want {
		return Frame{}, i + 1, fmt.Errorf("%w: got 0x%04X want 0x%04X", ErrChecksum, got, want)
	}
	f := Frame{
		Control: cand[2],
		Seq:     binary.LittleEndian.Uint16(cand[5:7]),
		Cmd:     Command(cand[7]),
		Payload: make([]byte, dataLen),
	}
	copy(f.Payload, cand[HeaderLen:HeaderLen+dataLen])
	return f, i + total, nil
}
