package siyi

import (
	"errors"
	"fmt"
)

// Framing errors returned by Decode. None of them is fatal: the caller drops
// the offending bytes (or waits for more) and keeps going.
var (
	// ErrNoFrameFound means the buffer holds no frame marker.
	ErrNoFrameFound = errors.New("siyi: no frame found")
	// ErrIncompleteFrame means a marker was found but the frame is not fully buffered yet.
	ErrIncompleteFrame = errors.New("siyi: incomplete frame")
	// ErrChecksum means the trailing CRC does not match the frame bytes.
	ErrChecksum = errors.New("siyi: checksum mismatch")
	// ErrLengthOutOfRange means the declared data length exceeds MaxPayloadLen.
	ErrLengthOutOfRange = errors.New("siyi: data length out of range")
)

var (
	// ErrEncoding is matched by every *EncodingError.
	ErrEncoding = errors.New("siyi: encoding error")
	// ErrShortPayload is returned by record parsers when a payload is too short.
	ErrShortPayload = errors.New("siyi: short payload")
	// ErrUnexpectedCommand is returned by record parsers given a frame of another command.
	ErrUnexpectedCommand = errors.New("siyi: unexpected command")
)

// EncodingError describes input that cannot be turned into a frame.
type EncodingError struct {
	Input  string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("siyi encode: %s", e.Reason)
	}
	return fmt.Sprintf("siyi encode %q: %s", e.Input, e.Reason)
}

// Is makes errors.Is(err, ErrEncoding) true for any *EncodingError.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }
