package siyi

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Speed bounds of the gimbal rotation command, in percent of max rate.
const (
	MaxSpeed = 100
	MinSpeed = -100
)

// FuncType selects the action of a CmdPhotoVideo request.
type FuncType uint8

const (
	FuncTakePhoto    FuncType = 0
	FuncToggleHDR    FuncType = 1
	FuncToggleRecord FuncType = 2
	FuncLockMode     FuncType = 3
	FuncFollowMode   FuncType = 4
	FuncFPVMode      FuncType = 5
)

// StreamType selects which data stream CmdDataStream configures.
type StreamType uint8

const (
	StreamAttitude StreamType = 1
	StreamLaser    StreamType = 2
)

// Data stream rates in Hz mapped to their wire code. 0 turns a stream off.
var streamFreqCodes = map[int]byte{0: 0, 2: 1, 4: 2, 5: 3, 10: 4, 20: 5, 50: 6, 100: 7}

// VideoStream selects the encoder a codec request applies to.
type VideoStream uint8

const (
	VideoRecording VideoStream = 0
	VideoMain      VideoStream = 1
	VideoSub       VideoStream = 2
)

// VideoEncoding is the codec of a video stream.
type VideoEncoding uint8

const (
	EncodingH264 VideoEncoding = 1
	EncodingH265 VideoEncoding = 2
)

func (e VideoEncoding) String() string {
	switch e {
	case EncodingH264:
		return "H264"
	case EncodingH265:
		return "H265"
	}
	return "unknown(" + strconv.Itoa(int(e)) + ")"
}

// TempMeasure controls temperature-at-point measurement.
type TempMeasure uint8

const (
	TempOff        TempMeasure = 0
	TempOnce       TempMeasure = 1
	TempContinuous TempMeasure = 2
)

// ClampSpeed limits v to the [-100, 100] range accepted by the gimbal.
func ClampSpeed(v int) int {
	if v > MaxSpeed {
		return MaxSpeed
	}
	if v < MinSpeed {
		return MinSpeed
	}
	return v
}

// GimbalSpeedPayload encodes yaw and pitch rates as two int8 fields, each
// clamped to [-100, 100] first.
func GimbalSpeedPayload(yaw, pitch int) []byte {
	return []byte{byte(int8(ClampSpeed(yaw))), byte(int8(ClampSpeed(pitch)))}
}

// Decidegrees converts degrees to the int16 tenths used on the wire,
// rounding to the nearest tenth and saturating at the int16 range.
func Decidegrees(deg float64) int16 {
	v := math.Round(deg * 10)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// SetAnglesPayload encodes target yaw and pitch in degrees as int16 decidegrees.
func SetAnglesPayload(yawDeg, pitchDeg float64) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint16(b[0:], uint16(Decidegrees(yawDeg)))
	binary.LittleEndian.PutUint16(b[2:], uint16(Decidegrees(pitchDeg)))
	return b
}

// DirectionPayload encodes a manual zoom or focus direction: 1 in/far,
// -1 out/near, 0 stop. Any positive or negative value collapses to ±1.
func DirectionPayload(dir int) []byte {
	switch {
	case dir > 0:
		return []byte{0x01}
	case dir < 0:
		return []byte{0xFF}
	}
	return []byte{0x00}
}

// AbsoluteZoomPayload encodes a zoom level with one decimal: integer part
// then tenths, one byte each.
func AbsoluteZoomPayload(level float64) ([]byte, error) {
	if math.IsNaN(level) || level < 1 || level >= 256 {
		return nil, &EncodingError{Input: strconv.FormatFloat(level, 'f', -1, 64), Reason: "zoom level must be within [1, 255.9]"}
	}
	tenths := int(math.Round(level * 10))
	return []byte{byte(tenths / 10), byte(tenths % 10)}, nil
}

// PhotoVideoPayload encodes a photo/record/HDR/motion-mode request.
func PhotoVideoPayload(fn FuncType) []byte { return []byte{byte(fn)} }

// DataStreamPayload encodes a data stream subscription. hz must be one of
// 0, 2, 4, 5, 10, 20, 50 or 100.
func DataStreamPayload(typ StreamType, hz int) ([]byte, error) {
	if typ != StreamAttitude && typ != StreamLaser {
		return nil, &EncodingError{Input: strconv.Itoa(int(typ)), Reason: "stream type must be 1 (attitude) or 2 (laser)"}
	}
	code, ok := streamFreqCodes[hz]
	if !ok {
		return nil, &EncodingError{Input: strconv.Itoa(hz), Reason: "unsupported stream frequency"}
	}
	return []byte{byte(typ), code}, nil
}

// StreamFrequencies lists the accepted data stream rates in Hz.
func StreamFrequencies() []int { return []int{0, 2, 4, 5, 10, 20, 50, 100} }

// TemperatureAtPayload encodes a temperature-at-point request.
func TemperatureAtPayload(x, y uint16, flag TempMeasure) []byte {
	b := make([]byte, 5)
	binary.LittleEndian.PutUint16(b[0:], x)
	binary.LittleEndian.PutUint16(b[2:], y)
	b[4] = byte(flag)
	return b
}

// CodecQueryPayload selects the stream whose codec settings are requested.
func CodecQueryPayload(s VideoStream) []byte { return []byte{byte(s)} }

// CodecSetPayload encodes new codec settings for one stream. The frame rate
// is device-chosen; its slot is reserved on write.
func CodecSetPayload(c CodecSpecs) ([]byte, error) {
	if c.Encoding != EncodingH264 && c.Encoding != EncodingH265 {
		return nil, &EncodingError{Input: c.Encoding.String(), Reason: "encoding must be H264 or H265"}
	}
	if c.Stream > VideoSub {
		return nil, &EncodingError{Input: strconv.Itoa(int(c.Stream)), Reason: "stream must be 0, 1 or 2"}
	}
	b := make([]byte, 9)
	b[0] = byte(c.Stream)
	b[1] = byte(c.Encoding)
	binary.LittleEndian.PutUint16(b[2:], c.Width)
	binary.LittleEndian.PutUint16(b[4:], c.Height)
	binary.LittleEndian.PutUint16(b[6:], c.BitrateKbps)
	return b, nil
}

// ImageModePayload encodes a camera image (display) mode.
func ImageModePayload(mode uint8) []byte { return []byte{mode} }

// SoftRestartPayload encodes which units to reboot.
func SoftRestartPayload(camera, gimbal bool) []byte {
	return []byte{boolByte(camera), boolByte(gimbal)}
}

// TriggerPayload is the one-byte "start" used by center and auto focus.
func TriggerPayload() []byte { return []byte{0x01} }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Request pairs a command with its payload and the command id of the reply
// that acknowledges it.
type Request struct {
	Cmd     Command
	Payload []byte
	Reply   Command
}

// NewRequest is a Request answered by a frame of the same command.
func NewRequest(cmd Command, payload []byte) Request {
	return Request{Cmd: cmd, Payload: payload, Reply: cmd}
}

func (r Request) String() string {
	if r.Reply != r.Cmd {
		return fmt.Sprintf("%s->%s", r.Cmd, r.Reply)
	}
	return r.Cmd.String()
}
