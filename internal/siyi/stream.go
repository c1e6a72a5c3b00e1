package siyi

import (
	"bytes"
	"errors"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
)

// Codec drains frames from an accumulating byte stream. It holds no buffer
// state and is safe for concurrent use on distinct buffers.
type Codec struct {
	// OnMalformed, if set, sees every rejected candidate (ErrChecksum or
	// ErrLengthOutOfRange) after it is counted.
	OnMalformed func(error)
}

// DecodeStream consumes every complete frame buffered in `in` and emits it via
// out. Bytes that cannot start a frame are discarded; a partial frame is left
// in place for the next call. It returns nil once the buffer is drained or
// only a partial frame remains.
//
// A candidate rejected for checksum or length is skipped by exactly one byte,
// so a genuine frame that begins inside the rejected bytes is still found.
//
// Example (firmware request, seq 1):
//
//	55 66       - marker
//	01          - control (need ack)
//	00 00       - data length 0
//	01 00       - sequence 1
//	01          - command: firmware version
//	xx xx       - crc16, low byte first
func (c Codec) DecodeStream(in *bytes.Buffer, out func(Frame)) error {
	for {
		f, n, err := Decode(in.Bytes())
		switch {
		case err == nil:
			in.Next(n)
			out(f)
		case errors.Is(err, ErrIncompleteFrame):
			in.Next(n)
			return nil
		case errors.Is(err, ErrNoFrameFound):
			in.Next(n)
			return nil
		case errors.Is(err, ErrChecksum):
			metrics.IncMalformed(metrics.ReasonChecksum)
			c.malformed(err)
			in.Next(n)
		case errors.Is(err, ErrLengthOutOfRange):
			metrics.IncMalformed(metrics.ReasonLength)
			c.malformed(err)
			in.Next(n)
		default:
			return err
		}
	}
}

func (c Codec) malformed(err error) {
	if c.OnMalformed != nil {
		c.OnMalformed(err)
	}
}

// DecodeAll decodes every frame contained in a single datagram.
func (c Codec) DecodeAll(datagram []byte) []Frame {
	var frames []Frame
	buf := bytes.NewBuffer(append([]byte(nil), datagram...))
	_ = c.DecodeStream(buf, func(f Frame) { frames = append(frames, f) })
	return frames
}
