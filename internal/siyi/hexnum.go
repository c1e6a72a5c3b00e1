package siyi

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// IntToFixedHex encodes v as a two's-complement integer of the given bit
// width (8, 16, 24 or 32) and renders it as lowercase hex in device byte
// order: low byte first when the value spans more than one byte.
// Values outside the width wrap, matching a C cast to the narrower type.
//
//	IntToFixedHex(-1, 8)   == "ff"
//	IntToFixedHex(100, 16) == "6400"
func IntToFixedHex(v int, bits int) (string, error) {
	if bits <= 0 || bits > 32 || bits%8 != 0 {
		return "", &EncodingError{Input: strconv.Itoa(bits), Reason: "bit width must be 8, 16, 24 or 32"}
	}
	mask := uint64(1)<<uint(bits) - 1
	u := uint64(int64(v)) & mask
	n := bits / 8
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(u >> (8 * uint(i)))
	}
	return hex.EncodeToString(b), nil
}

// FixedHexToInt is the inverse of IntToFixedHex: s must hold exactly bits/4
// hex digits in device byte order. The result is sign-extended.
func FixedHexToInt(s string, bits int) (int, error) {
	if bits <= 0 || bits > 32 || bits%8 != 0 {
		return 0, &EncodingError{Input: strconv.Itoa(bits), Reason: "bit width must be 8, 16, 24 or 32"}
	}
	if len(s) != bits/4 {
		return 0, &EncodingError{Input: s, Reason: fmt.Sprintf("want %d hex digits", bits/4)}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, &EncodingError{Input: s, Reason: err.Error()}
	}
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	sign := uint64(1) << uint(bits-1)
	if u&sign != 0 {
		return int(int64(u) - int64(sign<<1)), nil
	}
	return int(u), nil
}

// HexToSignedInt reads a 16-bit signed field: exactly four hex digits, low
// byte first. Shorter input must be padded by the caller.
func HexToSignedInt(s string) (int, error) { return FixedHexToInt(s, 16) }

// PayloadFromHex converts hex text to payload bytes. Whitespace is ignored.
// An odd number of digits is padded with a single '0' on the left, so "1"
// and "01" both yield {0x01}; the data length is then counted in bytes.
func PayloadFromHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &EncodingError{Input: s, Reason: err.Error()}
	}
	if len(b) > MaxPayloadLen {
		return nil, &EncodingError{Reason: fmt.Sprintf("payload length %d exceeds %d", len(b), MaxPayloadLen)}
	}
	return b, nil
}
