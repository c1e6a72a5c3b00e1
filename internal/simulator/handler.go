package simulator

import (
	"encoding/binary"
	"math"

	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// handle builds the frames the camera sends back for request f.
func (d *Device) handle(f siyi.Frame) []siyi.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.g.advance(d.now())

	var out []siyi.Frame
	if d.extra != 0 && d.extra != f.Cmd {
		if e, ok := d.answer(siyi.Frame{Cmd: d.extra}); ok {
			out = append(out, e)
		}
	}
	r, ok := d.answer(f)
	if !ok {
		d.logger.Debug("sim_no_reply", "cmd", f.Cmd.String(), "seq", f.Seq)
		return out
	}
	return append(out, r)
}

func (d *Device) frame(cmd siyi.Command, p []byte) siyi.Frame {
	seq := d.replySeq
	if !d.frozenSeq {
		d.replySeq++
	} else {
		seq = 0
	}
	return siyi.Frame{Control: siyi.ControlAck, Seq: seq, Cmd: cmd, Payload: p}
}

func (d *Device) ack(cmd siyi.Command) siyi.Frame { return d.frame(cmd, []byte{1}) }

func putDeci(b []byte, off int, deg float64) {
	binary.LittleEndian.PutUint16(b[off:], uint16(siyi.Decidegrees(deg)))
}

func zoomBytes(z float64) []byte {
	t := int(math.Round(z * 10))
	return []byte{byte(t / 10), byte(t % 10)}
}

func (d *Device) attitudeFrame() siyi.Frame {
	g := d.g
	yr, pr := g.rates()
	p := make([]byte, 12)
	putDeci(p, 0, g.yaw)
	putDeci(p, 2, g.pitch)
	putDeci(p, 4, g.roll)
	putDeci(p, 6, yr)
	putDeci(p, 8, pr)
	return d.frame(siyi.CmdGimbalAttitude, p)
}

// answer returns the reply to f and false when the camera stays silent.
// Caller holds d.mu.
func (d *Device) answer(f siyi.Frame) (siyi.Frame, bool) {
	g := d.g
	p := f.Payload
	switch f.Cmd {
	case siyi.CmdFirmwareVersion:
		b := make([]byte, 0, 12)
		for _, v := range d.firmware {
			b = append(b, v.Patch, v.Minor, v.Major, v.Extra)
		}
		return d.frame(f.Cmd, b), true
	case siyi.CmdHardwareID:
		return d.frame(f.Cmd, append([]byte(nil), d.hwid...)), true
	case siyi.CmdAutoFocus, siyi.CmdManualFocus, siyi.CmdCenter, siyi.CmdAbsoluteZoom:
		switch f.Cmd {
		case siyi.CmdCenter:
			g.yaw, g.pitch = 0, 0
			g.yawSpeed, g.pitchSpeed = 0, 0
		case siyi.CmdAbsoluteZoom:
			if len(p) < 2 {
				return d.frame(f.Cmd, []byte{0}), true
			}
			g.zoom = math.Min(math.Max(float64(p[0])+float64(p[1])/10, 1), g.limits.MaxZoom)
		}
		return d.ack(f.Cmd), true
	case siyi.CmdManualZoom:
		if len(p) > 0 {
			g.stepZoom(int(int8(p[0])))
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(math.Round(g.zoom*10)))
		return d.frame(f.Cmd, b), true
	case siyi.CmdGimbalSpeed:
		if len(p) < 2 {
			return d.frame(f.Cmd, []byte{0}), true
		}
		g.yawSpeed, g.pitchSpeed = int(int8(p[0])), int(int8(p[1]))
		return d.ack(f.Cmd), true
	case siyi.CmdGimbalInfo:
		return d.frame(f.Cmd, []byte{0, boolByte(g.hdr), 0, byte(g.recording), byte(g.motion), byte(g.mount), 0}), true
	case siyi.CmdFuncFeedback:
		return d.frame(f.Cmd, []byte{byte(d.feedback)}), true
	case siyi.CmdPhotoVideo:
		return d.photoVideo(p)
	case siyi.CmdGimbalAttitude:
		return d.attitudeFrame(), true
	case siyi.CmdSetGimbalAngles:
		if len(p) < 4 {
			return siyi.Frame{}, false
		}
		yaw := float64(int16(binary.LittleEndian.Uint16(p[0:]))) / 10
		pitch := float64(int16(binary.LittleEndian.Uint16(p[2:]))) / 10
		g.yaw, g.pitch, _ = g.limits.Clamp(yaw, pitch)
		g.yawSpeed, g.pitchSpeed = 0, 0
		b := make([]byte, 6)
		putDeci(b, 0, g.yaw)
		putDeci(b, 2, g.pitch)
		putDeci(b, 4, g.roll)
		return d.frame(f.Cmd, b), true
	case siyi.CmdImageMode:
		return d.frame(f.Cmd, []byte{g.imageMode}), true
	case siyi.CmdSetImageMode:
		if len(p) > 0 {
			g.imageMode = p[0]
		}
		return d.frame(f.Cmd, []byte{g.imageMode}), true
	case siyi.CmdTemperatureAt:
		if len(p) < 4 {
			return siyi.Frame{}, false
		}
		b := make([]byte, 6)
		binary.LittleEndian.PutUint16(b[0:], 2500+binary.LittleEndian.Uint16(p[0:])%100)
		copy(b[2:], p[0:4])
		return d.frame(f.Cmd, b), true
	case siyi.CmdZoomRange:
		return d.frame(f.Cmd, zoomBytes(g.limits.MaxZoom)), true
	case siyi.CmdCurrentZoom:
		return d.frame(f.Cmd, zoomBytes(g.zoom)), true
	case siyi.CmdCodecSpecs:
		if len(p) < 1 {
			return siyi.Frame{}, false
		}
		c, ok := g.codecs[siyi.VideoStream(p[0])]
		if !ok {
			return siyi.Frame{}, false
		}
		b := make([]byte, 9)
		b[0], b[1] = byte(c.Stream), byte(c.Encoding)
		binary.LittleEndian.PutUint16(b[2:], c.Width)
		binary.LittleEndian.PutUint16(b[4:], c.Height)
		binary.LittleEndian.PutUint16(b[6:], c.BitrateKbps)
		b[8] = c.FPS
		return d.frame(f.Cmd, b), true
	case siyi.CmdSetCodecSpecs:
		if len(p) < 8 {
			return siyi.Frame{}, false
		}
		st := siyi.VideoStream(p[0])
		old, ok := g.codecs[st]
		if !ok {
			return d.frame(f.Cmd, []byte{p[0], 0}), true
		}
		old.Encoding = siyi.VideoEncoding(p[1])
		old.Width = binary.LittleEndian.Uint16(p[2:])
		old.Height = binary.LittleEndian.Uint16(p[4:])
		old.BitrateKbps = binary.LittleEndian.Uint16(p[6:])
		g.codecs[st] = old
		return d.frame(f.Cmd, []byte{p[0], 1}), true
	case siyi.CmdDataStream:
		if len(p) < 2 {
			return siyi.Frame{}, false
		}
		if siyi.StreamType(p[0]) == siyi.StreamAttitude {
			g.attitudeHz = streamHz(p[1])
		}
		return d.frame(f.Cmd, []byte{p[0]}), true
	case siyi.CmdSoftRestart:
		if len(p) < 2 {
			return siyi.Frame{}, false
		}
		if p[1] != 0 {
			g.yaw, g.pitch = 0, 0
			g.yawSpeed, g.pitchSpeed = 0, 0
		}
		return d.frame(f.Cmd, []byte{p[0], p[1]}), true
	}
	return siyi.Frame{}, false
}

// photoVideo answers a 0x0C request with a function feedback frame.
func (d *Device) photoVideo(p []byte) (siyi.Frame, bool) {
	if len(p) < 1 {
		return siyi.Frame{}, false
	}
	g := d.g
	code := siyi.FeedbackOK
	switch siyi.FuncType(p[0]) {
	case siyi.FuncTakePhoto:
	case siyi.FuncToggleHDR:
		g.hdr = !g.hdr
		code = siyi.FeedbackHDROff
		if g.hdr {
			code = siyi.FeedbackHDROn
		}
	case siyi.FuncToggleRecord:
		switch g.recording {
		case siyi.RecordOff:
			g.recording = siyi.RecordOn
		case siyi.RecordOn:
			g.recording = siyi.RecordOff
		default:
			code = siyi.FeedbackRecordFail
		}
	case siyi.FuncLockMode, siyi.FuncFollowMode, siyi.FuncFPVMode:
		g.motion = siyi.MotionMode(p[0] - byte(siyi.FuncLockMode))
		if d.modeQuiet {
			return siyi.Frame{}, false
		}
	default:
		return siyi.Frame{}, false
	}
	d.feedback = code
	return d.frame(siyi.CmdFuncFeedback, []byte{byte(code)}), true
}

var hzByCode = map[byte]int{0: 0, 1: 2, 2: 4, 3: 5, 4: 10, 5: 20, 6: 50, 7: 100}

func streamHz(code byte) int { return hzByCode[code] }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
