package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// FirmwareVersion asks for the code board, gimbal and zoom firmware versions.
func (s *Session) FirmwareVersion(ctx context.Context) (siyi.FirmwareVersion, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdFirmwareVersion, nil), siyi.ParseFirmwareVersion)
}

// HardwareID asks for the hardware ID and the model it identifies.
func (s *Session) HardwareID(ctx context.Context) (siyi.HardwareID, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdHardwareID, nil), siyi.ParseHardwareID)
}

// GimbalAttitude requests a fresh attitude reading.
func (s *Session) GimbalAttitude(ctx context.Context) (siyi.Attitude, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdGimbalAttitude, nil), siyi.ParseAttitude)
}

// GimbalInfo requests HDR, recording, motion mode and mounting state.
func (s *Session) GimbalInfo(ctx context.Context) (siyi.GimbalInfo, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdGimbalInfo, nil), siyi.ParseGimbalInfo)
}

// FuncFeedback asks for the last function feedback code.
func (s *Session) FuncFeedback(ctx context.Context) (siyi.FuncFeedback, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdFuncFeedback, nil), siyi.ParseFuncFeedback)
}

// ack performs req and requires a non-zero status byte.
func (s *Session) ack(ctx context.Context, req siyi.Request) error {
	a, err := call(ctx, s, req, siyi.ParseAck)
	if err != nil {
		return err
	}
	if !a.OK() {
		return fmt.Errorf("%w: %s status %d", ErrRejected, req.Cmd, a.Status)
	}
	return nil
}

// AutoFocus triggers a single auto focus.
func (s *Session) AutoFocus(ctx context.Context) error {
	return s.ack(ctx, siyi.NewRequest(siyi.CmdAutoFocus, siyi.TriggerPayload()))
}

// Center returns the gimbal to yaw 0, pitch 0.
func (s *Session) Center(ctx context.Context) error {
	return s.ack(ctx, siyi.NewRequest(siyi.CmdCenter, siyi.TriggerPayload()))
}

// ManualZoom starts zooming in (dir > 0), out (dir < 0) or stops (0) and
// returns the zoom level reported by the camera.
func (s *Session) ManualZoom(ctx context.Context, dir int) (float64, error) {
	z, err := call(ctx, s, siyi.NewRequest(siyi.CmdManualZoom, siyi.DirectionPayload(dir)), siyi.ParseZoomLevel)
	return z.Level, err
}

// ManualFocus moves focus far (dir > 0), near (dir < 0) or stops (0).
func (s *Session) ManualFocus(ctx context.Context, dir int) error {
	return s.ack(ctx, siyi.NewRequest(siyi.CmdManualFocus, siyi.DirectionPayload(dir)))
}

// SetGimbalSpeed commands yaw and pitch rates in percent of the maximum.
// Values outside [-100, 100] are clamped.
func (s *Session) SetGimbalSpeed(ctx context.Context, yaw, pitch int) error {
	if cy, cp := siyi.ClampSpeed(yaw), siyi.ClampSpeed(pitch); cy != yaw || cp != pitch {
		s.l.Warn("speed_clamped", "yaw", yaw, "pitch", pitch, "yaw_used", cy, "pitch_used", cp)
	}
	return s.ack(ctx, siyi.NewRequest(siyi.CmdGimbalSpeed, siyi.GimbalSpeedPayload(yaw, pitch)))
}

// SetAngles points the gimbal at yaw and pitch degrees. With a limit table
// configured, the connected model must be in it (ErrUnsupportedDevice
// otherwise) and the angles are clamped to its range.
func (s *Session) SetAngles(ctx context.Context, yaw, pitch float64) (siyi.Angles, error) {
	if s.opts.limits != nil {
		lim, err := s.limits(ctx)
		if err != nil {
			s.l.Warn("set_angles_refused", "error", err)
			return siyi.Angles{}, err
		}
		if y, p, clamped := lim.Clamp(yaw, pitch); clamped {
			s.l.Warn("angles_clamped", "model", lim.Name, "yaw", yaw, "pitch", pitch, "yaw_used", y, "pitch_used", p)
			yaw, pitch = y, p
		}
	}
	return call(ctx, s, siyi.NewRequest(siyi.CmdSetGimbalAngles, siyi.SetAnglesPayload(yaw, pitch)), siyi.ParseAngles)
}

// Model returns the hardware type code, asking the device if it is not
// cached.
func (s *Session) Model(ctx context.Context) (string, error) {
	if hw := cached[siyi.HardwareID](s.cache, siyi.CmdHardwareID); hw != nil {
		return hw.TypeCode, nil
	}
	hw, err := s.HardwareID(ctx)
	if err != nil {
		return "", err
	}
	return hw.TypeCode, nil
}

// AbsoluteZoom sets the zoom level (one decimal). With a limit table, the
// level is clamped to the model's maximum zoom.
func (s *Session) AbsoluteZoom(ctx context.Context, level float64) error {
	if s.opts.limits != nil {
		if lim, err := s.limits(ctx); err == nil && lim.MaxZoom > 0 && level > lim.MaxZoom {
			s.l.Warn("zoom_clamped", "model", lim.Name, "level", level, "used", lim.MaxZoom)
			level = lim.MaxZoom
		}
	}
	p, err := siyi.AbsoluteZoomPayload(level)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return s.ack(ctx, siyi.NewRequest(siyi.CmdAbsoluteZoom, p))
}

// CurrentZoom returns the zoom level reported by the camera.
func (s *Session) CurrentZoom(ctx context.Context) (float64, error) {
	z, err := call(ctx, s, siyi.NewRequest(siyi.CmdCurrentZoom, nil), siyi.ParseZoomLevel)
	return z.Level, err
}

// ZoomRange returns the maximum zoom level of the camera.
func (s *Session) ZoomRange(ctx context.Context) (float64, error) {
	z, err := call(ctx, s, siyi.NewRequest(siyi.CmdZoomRange, nil), siyi.ParseZoomRange)
	return z.Max, err
}

// photoVideo sends a 0x0C function request. The camera answers with a
// function feedback frame rather than an echo.
func (s *Session) photoVideo(ctx context.Context, fn siyi.FuncType) (siyi.FuncFeedback, error) {
	req := siyi.Request{Cmd: siyi.CmdPhotoVideo, Payload: siyi.PhotoVideoPayload(fn), Reply: siyi.CmdFuncFeedback}
	return call(ctx, s, req, siyi.ParseFuncFeedback)
}

// TakePhoto captures a still and requires an OK feedback.
func (s *Session) TakePhoto(ctx context.Context) error {
	fb, err := s.photoVideo(ctx, siyi.FuncTakePhoto)
	if err != nil {
		return err
	}
	if fb.Code != siyi.FeedbackOK {
		return fmt.Errorf("%w: photo: %s", ErrRejected, fb.Code)
	}
	return nil
}

// ToggleHDR flips HDR and returns the new state.
func (s *Session) ToggleHDR(ctx context.Context) (bool, error) {
	fb, err := s.photoVideo(ctx, siyi.FuncToggleHDR)
	if err != nil {
		return false, err
	}
	switch fb.Code {
	case siyi.FeedbackHDROn:
		return true, nil
	case siyi.FeedbackHDROff:
		return false, nil
	}
	return false, fmt.Errorf("%w: hdr: %s", ErrRejected, fb.Code)
}

// ToggleRecording flips recording and confirms the new state with a
// gimbal info request.
func (s *Session) ToggleRecording(ctx context.Context) (siyi.RecordState, error) {
	fb, err := s.photoVideo(ctx, siyi.FuncToggleRecord)
	switch {
	case err == nil && fb.Code == siyi.FeedbackRecordFail:
		return 0, fmt.Errorf("%w: record: %s", ErrRejected, fb.Code)
	case err != nil && !errors.Is(err, ErrNoResponse):
		return 0, err
	case err != nil:
		s.l.Warn("record_feedback_missing", "error", err)
	}
	info, err := s.GimbalInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("confirm record state: %w", err)
	}
	s.l.Info("record_state", "state", info.RecordState.String())
	return info.RecordState, nil
}

// SetMotionMode switches between lock, follow and FPV. Some firmware sends
// no feedback for mode changes, so a missing reply is confirmed through
// gimbal info.
func (s *Session) SetMotionMode(ctx context.Context, m siyi.MotionMode) error {
	var fn siyi.FuncType
	switch m {
	case siyi.MotionLock:
		fn = siyi.FuncLockMode
	case siyi.MotionFollow:
		fn = siyi.FuncFollowMode
	case siyi.MotionFPV:
		fn = siyi.FuncFPVMode
	default:
		return fmt.Errorf("%w: motion mode %d", ErrInvalidArgument, m)
	}
	fb, err := s.photoVideo(ctx, fn)
	if err == nil {
		if fb.Code != siyi.FeedbackOK {
			return fmt.Errorf("%w: mode %s: %s", ErrRejected, m, fb.Code)
		}
		return nil
	}
	if !errors.Is(err, ErrNoResponse) {
		return err
	}
	info, ierr := s.GimbalInfo(ctx)
	if ierr != nil {
		return err
	}
	if info.MotionMode != m {
		return fmt.Errorf("%w: mode is %s, want %s", ErrRejected, info.MotionMode, m)
	}
	return nil
}

// SetDataStream asks the gimbal to push typ frames at hz (0 stops).
func (s *Session) SetDataStream(ctx context.Context, typ siyi.StreamType, hz int) error {
	p, err := siyi.DataStreamPayload(typ, hz)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	_, err = call(ctx, s, siyi.NewRequest(siyi.CmdDataStream, p), siyi.ParseDataStreamAck)
	return err
}

// ImageMode returns the current image (split view) mode.
func (s *Session) ImageMode(ctx context.Context) (uint8, error) {
	m, err := call(ctx, s, siyi.NewRequest(siyi.CmdImageMode, nil), siyi.ParseImageMode)
	return m.Mode, err
}

// SetImageMode selects an image mode and returns the one now active.
func (s *Session) SetImageMode(ctx context.Context, mode uint8) (uint8, error) {
	m, err := call(ctx, s, siyi.NewRequest(siyi.CmdSetImageMode, siyi.ImageModePayload(mode)), siyi.ParseImageMode)
	return m.Mode, err
}

// TemperatureAt measures the temperature at pixel (x, y) of a thermal camera.
func (s *Session) TemperatureAt(ctx context.Context, x, y uint16, flag siyi.TempMeasure) (siyi.Temperature, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdTemperatureAt, siyi.TemperatureAtPayload(x, y, flag)), siyi.ParseTemperature)
}

// CodecSpecs returns the encoder settings of stream st.
func (s *Session) CodecSpecs(ctx context.Context, st siyi.VideoStream) (siyi.CodecSpecs, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdCodecSpecs, siyi.CodecQueryPayload(st)), siyi.ParseCodecSpecs)
}

// SetCodecSpecs applies encoding, resolution and bitrate to c.Stream.
func (s *Session) SetCodecSpecs(ctx context.Context, c siyi.CodecSpecs) error {
	p, err := siyi.CodecSetPayload(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	r, err := call(ctx, s, siyi.NewRequest(siyi.CmdSetCodecSpecs, p), siyi.ParseCodecSetResult)
	if err != nil {
		return err
	}
	if !r.OK {
		return fmt.Errorf("%w: codec for stream %d", ErrRejected, r.Stream)
	}
	return nil
}

// SoftRestart restarts the camera, the gimbal or both.
func (s *Session) SoftRestart(ctx context.Context, camera, gimbal bool) (siyi.RestartAck, error) {
	return call(ctx, s, siyi.NewRequest(siyi.CmdSoftRestart, siyi.SoftRestartPayload(camera, gimbal)), siyi.ParseRestartAck)
}

// Attitude returns the cached attitude. It fails with ErrNotConnected while
// disconnected and ErrNoResponse before the first attitude frame.
func (s *Session) Attitude() (siyi.Attitude, error) {
	if s.State() != StateConnected {
		return siyi.Attitude{}, ErrNotConnected
	}
	a := cached[siyi.Attitude](s.cache, siyi.CmdGimbalAttitude)
	if a == nil {
		return siyi.Attitude{}, ErrNoResponse
	}
	return *a, nil
}
