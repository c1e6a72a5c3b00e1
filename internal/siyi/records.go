package siyi

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Records are plain values. Every record carries the sequence of the frame it
// was parsed from.

// Version is one firmware version word: patch, minor, major and a vendor byte,
// least significant byte first on the wire.
type Version struct {
	Major, Minor, Patch, Extra uint8
}

func (v Version) String() string { return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch) }

// IsZero reports whether the word was absent or all zero.
func (v Version) IsZero() bool { return v == Version{} }

func versionFromWord(b []byte) Version {
	return Version{Patch: b[0], Minor: b[1], Major: b[2], Extra: b[3]}
}

// FirmwareVersion is the reply to CmdFirmwareVersion. Older firmware omits
// the zoom word (and sometimes the gimbal word).
type FirmwareVersion struct {
	Seq       uint16
	CodeBoard Version
	Gimbal    Version
	Zoom      Version
}

// HardwareID is the reply to CmdHardwareID.
type HardwareID struct {
	Seq uint16
	// Raw is the ID as lowercase hex text.
	Raw string
	// TypeCode identifies the camera model, e.g. "73" for the A8 mini.
	TypeCode string
	// Model is the product name for TypeCode, empty when unknown.
	Model string
}

var modelNames = map[string]string{
	"6B": "ZR10",
	"73": "A8 mini",
	"75": "A2 mini",
	"78": "ZR30",
	"83": "ZT6",
	"7A": "ZT30",
}

// ModelName returns the product name for a hardware type code.
func ModelName(code string) (string, bool) {
	n, ok := modelNames[strings.ToUpper(code)]
	return n, ok
}

// RecordState is the camera recording state reported in GimbalInfo.
type RecordState uint8

const (
	RecordOff      RecordState = 0
	RecordOn       RecordState = 1
	RecordNoCard   RecordState = 2
	RecordDataLoss RecordState = 3
)

func (s RecordState) String() string {
	switch s {
	case RecordOff:
		return "off"
	case RecordOn:
		return "on"
	case RecordNoCard:
		return "no_card"
	case RecordDataLoss:
		return "data_loss"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// MotionMode is the gimbal stabilisation mode.
type MotionMode uint8

const (
	MotionLock   MotionMode = 0
	MotionFollow MotionMode = 1
	MotionFPV    MotionMode = 2
)

func (m MotionMode) String() string {
	switch m {
	case MotionLock:
		return "lock"
	case MotionFollow:
		return "follow"
	case MotionFPV:
		return "fpv"
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

// MountDirection tells whether the gimbal is mounted normally or flipped.
type MountDirection uint8

const (
	MountNormal     MountDirection = 1
	MountUpsideDown MountDirection = 2
)

func (d MountDirection) String() string {
	switch d {
	case MountNormal:
		return "normal"
	case MountUpsideDown:
		return "upside_down"
	}
	return fmt.Sprintf("unknown(%d)", uint8(d))
}

// GimbalInfo is the reply to CmdGimbalInfo.
type GimbalInfo struct {
	Seq         uint16
	HDROn       bool
	RecordState RecordState
	MotionMode  MotionMode
	Mount       MountDirection
	// VideoOut is 0 for HDMI and 1 for CVBS; zero when the device omits it.
	VideoOut uint8
}

// Attitude is the reply to CmdGimbalAttitude: angles in degrees and rates in
// degrees per second.
type Attitude struct {
	Seq                          uint16
	Yaw, Pitch, Roll             float64
	YawRate, PitchRate, RollRate float64
}

// FeedbackCode is the result pushed in a CmdFuncFeedback frame.
type FeedbackCode uint8

const (
	FeedbackOK          FeedbackCode = 0
	FeedbackPhotoFailed FeedbackCode = 1
	FeedbackHDROn       FeedbackCode = 2
	FeedbackHDROff      FeedbackCode = 3
	FeedbackRecordFail  FeedbackCode = 4
)

func (c FeedbackCode) String() string {
	switch c {
	case FeedbackOK:
		return "ok"
	case FeedbackPhotoFailed:
		return "photo_failed"
	case FeedbackHDROn:
		return "hdr_on"
	case FeedbackHDROff:
		return "hdr_off"
	case FeedbackRecordFail:
		return "record_failed"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// FuncFeedback is the asynchronous result of a photo/video request.
type FuncFeedback struct {
	Seq  uint16
	Code FeedbackCode
}

// ZoomLevel is the reply to manual zoom and current zoom.
type ZoomLevel struct {
	Seq   uint16
	Level float64
}

// ZoomRange is the reply to CmdZoomRange.
type ZoomRange struct {
	Seq uint16
	Max float64
}

// Ack is a one-byte status reply (center, auto focus, manual focus,
// gimbal speed and similar). OK is true when the device reported success.
type Ack struct {
	Seq    uint16
	Cmd    Command
	Status uint8
}

// OK reports whether the device accepted the request.
func (a Ack) OK() bool { return a.Status != 0 }

// Angles is the reply to CmdSetGimbalAngles: the attitude the gimbal is
// now heading to.
type Angles struct {
	Seq              uint16
	Yaw, Pitch, Roll float64
}

// DataStreamAck is the reply to CmdDataStream.
type DataStreamAck struct {
	Seq  uint16
	Type StreamType
}

// ImageMode is the reply to CmdImageMode and CmdSetImageMode.
type ImageMode struct {
	Seq  uint16
	Mode uint8
}

// Temperature is the reply to CmdTemperatureAt.
type Temperature struct {
	Seq     uint16
	Celsius float64
	X, Y    uint16
}

// CodecSpecs describes one video stream encoder. It is both the reply to
// CmdCodecSpecs and the argument of CodecSetPayload.
type CodecSpecs struct {
	Seq         uint16
	Stream      VideoStream
	Encoding    VideoEncoding
	Width       uint16
	Height      uint16
	BitrateKbps uint16
	FPS         uint8
}

// CodecSetResult is the reply to CmdSetCodecSpecs.
type CodecSetResult struct {
	Seq    uint16
	Stream VideoStream
	OK     bool
}

// RestartAck is the reply to CmdSoftRestart.
type RestartAck struct {
	Seq            uint16
	Camera, Gimbal bool
}

func need(f Frame, cmd Command, n int) error {
	if f.Cmd != cmd {
		return fmt.Errorf("%w: got %s want %s", ErrUnexpectedCommand, f.Cmd, cmd)
	}
	if len(f.Payload) < n {
		return fmt.Errorf("%w: %s has %d bytes, need %d", ErrShortPayload, cmd, len(f.Payload), n)
	}
	return nil
}

func le16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }

func deci(b []byte, off int) float64 { return float64(int16(le16(b, off))) / 10 }

// ParseFirmwareVersion decodes up to three version words. At least the code
// board word must be present.
func ParseFirmwareVersion(f Frame) (FirmwareVersion, error) {
	if err := need(f, CmdFirmwareVersion, 4); err != nil {
		return FirmwareVersion{}, err
	}
	r := FirmwareVersion{Seq: f.Seq, CodeBoard: versionFromWord(f.Payload[0:4])}
	if len(f.Payload) >= 8 {
		r.Gimbal = versionFromWord(f.Payload[4:8])
	}
	if len(f.Payload) >= 12 {
		r.Zoom = versionFromWord(f.Payload[8:12])
	}
	return r, nil
}

// ParseHardwareID decodes the raw ID. The type code is the first ID byte with
// its nibbles swapped, as the vendor documents the model table that way.
func ParseHardwareID(f Frame) (HardwareID, error) {
	if err := need(f, CmdHardwareID, 1); err != nil {
		return HardwareID{}, err
	}
	raw := hex.EncodeToString(f.Payload)
	code := strings.ToUpper(string([]byte{raw[1], raw[0]}))
	model, _ := ModelName(code)
	return HardwareID{Seq: f.Seq, Raw: raw, TypeCode: code, Model: model}, nil
}

// ParseGimbalInfo decodes the gimbal configuration block. The video output
// byte is optional.
func ParseGimbalInfo(f Frame) (GimbalInfo, error) {
	if err := need(f, CmdGimbalInfo, 6); err != nil {
		return GimbalInfo{}, err
	}
	p := f.Payload
	r := GimbalInfo{
		Seq:         f.Seq,
		HDROn:       p[1] != 0,
		RecordState: RecordState(p[3]),
		MotionMode:  MotionMode(p[4]),
		Mount:       MountDirection(p[5]),
	}
	if len(p) > 6 {
		r.VideoOut = p[6]
	}
	return r, nil
}

// ParseAttitude decodes six int16 fields scaled by 0.1.
func ParseAttitude(f Frame) (Attitude, error) {
	if err := need(f, CmdGimbalAttitude, 12); err != nil {
		return Attitude{}, err
	}
	p := f.Payload
	return Attitude{
		Seq:       f.Seq,
		Yaw:       deci(p, 0),
		Pitch:     deci(p, 2),
		Roll:      deci(p, 4),
		YawRate:   deci(p, 6),
		PitchRate: deci(p, 8),
		RollRate:  deci(p, 10),
	}, nil
}

func ParseFuncFeedback(f Frame) (FuncFeedback, error) {
	if err := need(f, CmdFuncFeedback, 1); err != nil {
		return FuncFeedback{}, err
	}
	return FuncFeedback{Seq: f.Seq, Code: FeedbackCode(f.Payload[0])}, nil
}

// ParseZoomLevel decodes the zoom reply of CmdManualZoom (uint16 tenths) or
// of CmdCurrentZoom (integer byte then tenths byte).
func ParseZoomLevel(f Frame) (ZoomLevel, error) {
	switch f.Cmd {
	case CmdManualZoom:
		if err := need(f, CmdManualZoom, 2); err != nil {
			return ZoomLevel{}, err
		}
		return ZoomLevel{Seq: f.Seq, Level: float64(le16(f.Payload, 0)) / 10}, nil
	case CmdCurrentZoom:
		if err := need(f, CmdCurrentZoom, 2); err != nil {
			return ZoomLevel{}, err
		}
		return ZoomLevel{Seq: f.Seq, Level: float64(f.Payload[0]) + float64(f.Payload[1])/10}, nil
	}
	return ZoomLevel{}, fmt.Errorf("%w: %s is not a zoom reply", ErrUnexpectedCommand, f.Cmd)
}

func ParseZoomRange(f Frame) (ZoomRange, error) {
	if err := need(f, CmdZoomRange, 2); err != nil {
		return ZoomRange{}, err
	}
	return ZoomRange{Seq: f.Seq, Max: float64(f.Payload[0]) + float64(f.Payload[1])/10}, nil
}

// ParseAck decodes a single status byte for any command.
func ParseAck(f Frame) (Ack, error) {
	if len(f.Payload) < 1 {
		return Ack{}, fmt.Errorf("%w: %s ack is empty", ErrShortPayload, f.Cmd)
	}
	return Ack{Seq: f.Seq, Cmd: f.Cmd, Status: f.Payload[0]}, nil
}

func ParseAngles(f Frame) (Angles, error) {
	if err := need(f, CmdSetGimbalAngles, 6); err != nil {
		return Angles{}, err
	}
	p := f.Payload
	return Angles{Seq: f.Seq, Yaw: deci(p, 0), Pitch: deci(p, 2), Roll: deci(p, 4)}, nil
}

func ParseDataStreamAck(f Frame) (DataStreamAck, error) {
	if err := need(f, CmdDataStream, 1); err != nil {
		return DataStreamAck{}, err
	}
	return DataStreamAck{Seq: f.Seq, Type: StreamType(f.Payload[0])}, nil
}

func ParseImageMode(f Frame) (ImageMode, error) {
	if f.Cmd != CmdImageMode && f.Cmd != CmdSetImageMode {
		return ImageMode{}, fmt.Errorf("%w: %s is not an image mode reply", ErrUnexpectedCommand, f.Cmd)
	}
	if err := need(f, f.Cmd, 1); err != nil {
		return ImageMode{}, err
	}
	return ImageMode{Seq: f.Seq, Mode: f.Payload[0]}, nil
}

// ParseTemperature decodes the temperature in hundredths of a degree followed
// by the measured pixel coordinates.
func ParseTemperature(f Frame) (Temperature, error) {
	if err := need(f, CmdTemperatureAt, 6); err != nil {
		return Temperature{}, err
	}
	p := f.Payload
	return Temperature{
		Seq:     f.Seq,
		Celsius: float64(le16(p, 0)) / 100,
		X:       le16(p, 2),
		Y:       le16(p, 4),
	}, nil
}

// ParseCodecSpecs decodes stream, encoding, resolution, bitrate and frame
// rate. Example payload 01 01 0005 d002 b80b 1e is main stream H264
// 1280x720 at 3000 kbps, 30 fps.
func ParseCodecSpecs(f Frame) (CodecSpecs, error) {
	if err := need(f, CmdCodecSpecs, 8); err != nil {
		return CodecSpecs{}, err
	}
	p := f.Payload
	r := CodecSpecs{
		Seq:         f.Seq,
		Stream:      VideoStream(p[0]),
		Encoding:    VideoEncoding(p[1]),
		Width:       le16(p, 2),
		Height:      le16(p, 4),
		BitrateKbps: le16(p, 6),
	}
	if len(p) > 8 {
		r.FPS = p[8]
	}
	return r, nil
}

func ParseCodecSetResult(f Frame) (CodecSetResult, error) {
	if err := need(f, CmdSetCodecSpecs, 2); err != nil {
		return CodecSetResult{}, err
	}
	return CodecSetResult{Seq: f.Seq, Stream: VideoStream(f.Payload[0]), OK: f.Payload[1] != 0}, nil
}

func ParseRestartAck(f Frame) (RestartAck, error) {
	if err := need(f, CmdSoftRestart, 2); err != nil {
		return RestartAck{}, err
	}
	return RestartAck{Seq: f.Seq, Camera: f.Payload[0] != 0, Gimbal: f.Payload[1] != 0}, nil
}

// Parse decodes f into the record type of its command. Unknown commands
// return ErrUnexpectedCommand; callers route them to the unknown path.
func Parse(f Frame) (any, error) {
	switch f.Cmd {
	case CmdFirmwareVersion:
		return ParseFirmwareVersion(f)
	case CmdHardwareID:
		return ParseHardwareID(f)
	case CmdGimbalInfo:
		return ParseGimbalInfo(f)
	case CmdGimbalAttitude:
		return ParseAttitude(f)
	case CmdFuncFeedback:
		return ParseFuncFeedback(f)
	case CmdManualZoom, CmdCurrentZoom:
		return ParseZoomLevel(f)
	case CmdZoomRange:
		return ParseZoomRange(f)
	case CmdSetGimbalAngles:
		return ParseAngles(f)
	case CmdDataStream:
		return ParseDataStreamAck(f)
	case CmdImageMode, CmdSetImageMode:
		return ParseImageMode(f)
	case CmdTemperatureAt:
		return ParseTemperature(f)
	case CmdCodecSpecs:
		return ParseCodecSpecs(f)
	case CmdSetCodecSpecs:
		return ParseCodecSetResult(f)
	case CmdSoftRestart:
		return ParseRestartAck(f)
	case CmdAutoFocus, CmdManualFocus, CmdGimbalSpeed, CmdCenter, CmdPhotoVideo, CmdAbsoluteZoom:
		return ParseAck(f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnexpectedCommand, f.Cmd)
}
