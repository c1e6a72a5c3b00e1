package simulator

import (
	"math"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// gimbal is the simulated mechanical and camera state. Guarded by Device.mu.
type gimbal struct {
	limits  device.Limits
	maxRate float64 // deg/s at speed 100

	yaw, pitch, roll     float64
	yawSpeed, pitchSpeed int
	updated              time.Time
	zoom                 float64
	hdr                  bool
	recording            siyi.RecordState
	motion               siyi.MotionMode
	mount                siyi.MountDirection
	imageMode            uint8
	codecs               map[siyi.VideoStream]siyi.CodecSpecs
	attitudeHz           int
}

func newGimbal(l device.Limits, maxRate float64, now time.Time) *gimbal {
	return &gimbal{
		limits:    l,
		maxRate:   maxRate,
		updated:   now,
		zoom:      1,
		recording: siyi.RecordOff,
		motion:    siyi.MotionFollow,
		mount:     siyi.MountNormal,
		codecs: map[siyi.VideoStream]siyi.CodecSpecs{
			siyi.VideoRecording: {Stream: siyi.VideoRecording, Encoding: siyi.EncodingH265, Width: 3840, Height: 2160, BitrateKbps: 12000, FPS: 30},
			siyi.VideoMain:      {Stream: siyi.VideoMain, Encoding: siyi.EncodingH265, Width: 1920, Height: 1080, BitrateKbps: 4000, FPS: 30},
			siyi.VideoSub:       {Stream: siyi.VideoSub, Encoding: siyi.EncodingH264, Width: 1280, Height: 720, BitrateKbps: 2000, FPS: 30},
		},
	}
}

// advance integrates the commanded speeds up to now. A positive yaw speed
// turns toward negative yaw; a positive pitch speed raises the camera.
func (g *gimbal) advance(now time.Time) {
	dt := now.Sub(g.updated).Seconds()
	g.updated = now
	if dt <= 0 {
		return
	}
	g.yaw -= float64(g.yawSpeed) / 100 * g.maxRate * dt
	g.pitch += float64(g.pitchSpeed) / 100 * g.maxRate * dt
	g.yaw, g.pitch, _ = g.limits.Clamp(g.yaw, g.pitch)
}

func (g *gimbal) rates() (yaw, pitch float64) {
	return -float64(g.yawSpeed) / 100 * g.maxRate, float64(g.pitchSpeed) / 100 * g.maxRate
}

func (g *gimbal) stepZoom(dir int) {
	switch {
	case dir > 0:
		g.zoom = math.Min(g.zoom+1, g.limits.MaxZoom)
	case dir < 0:
		g.zoom = math.Max(g.zoom-1, 1)
	}
}
