package main

import (
	"encoding/json"
	"net/http"

	"github.com/kstaniek/go-siyi-gimbal/internal/session"
)

type attitudeView struct {
	Yaw       float64 `json:"yaw"`
	Pitch     float64 `json:"pitch"`
	Roll      float64 `json:"roll"`
	YawRate   float64 `json:"yaw_rate"`
	PitchRate float64 `json:"pitch_rate"`
	RollRate  float64 `json:"roll_rate"`
	AgeMS     int64   `json:"age_ms"`
}

type infoView struct {
	HDR        bool   `json:"hdr"`
	Recording  string `json:"recording"`
	MotionMode string `json:"motion_mode"`
	Mount      string `json:"mount"`
}

type codecView struct {
	Stream      uint8  `json:"stream"`
	Encoding    string `json:"encoding"`
	Width       uint16 `json:"width"`
	Height      uint16 `json:"height"`
	BitrateKbps uint16 `json:"bitrate_kbps"`
	FPS         uint8  `json:"fps"`
}

// statusView is the JSON body of /status.
type statusView struct {
	Session   string        `json:"session,omitempty"`
	State     string        `json:"state"`
	Mode      string        `json:"mode,omitempty"`
	Seq       uint16        `json:"seq"`
	Connects  uint64        `json:"connects"`
	CodeBoard string        `json:"code_board,omitempty"`
	GimbalFW  string        `json:"gimbal_fw,omitempty"`
	ZoomFW    string        `json:"zoom_fw,omitempty"`
	TypeCode  string        `json:"type_code,omitempty"`
	Model     string        `json:"model,omitempty"`
	Attitude  *attitudeView `json:"attitude,omitempty"`
	Info      *infoView     `json:"gimbal_info,omitempty"`
	Zoom      *float64      `json:"zoom,omitempty"`
	ZoomMax   *float64      `json:"zoom_max,omitempty"`
	Codecs    []codecView   `json:"codecs,omitempty"`
}

func newStatusView(snap session.Snapshot) statusView {
	v := statusView{
		Session: snap.ID,
		State:   snap.State.String(),
		Mode:    snap.Mode.String(),
		Seq:     snap.Seq,
	}
	if fw := snap.Firmware; fw != nil {
		v.CodeBoard = fw.CodeBoard.String()
		if !fw.Gimbal.IsZero() {
			v.GimbalFW = fw.Gimbal.String()
		}
		if !fw.Zoom.IsZero() {
			v.ZoomFW = fw.Zoom.String()
		}
	}
	if hw := snap.HardwareID; hw != nil {
		v.TypeCode, v.Model = hw.TypeCode, hw.Model
	}
	if a := snap.Attitude; a != nil {
		v.Attitude = &attitudeView{
			Yaw: a.Yaw, Pitch: a.Pitch, Roll: a.Roll,
			YawRate: a.YawRate, PitchRate: a.PitchRate, RollRate: a.RollRate,
			AgeMS: snap.AttitudeAge.Milliseconds(),
		}
	}
	if gi := snap.GimbalInfo; gi != nil {
		v.Info = &infoView{
			HDR:        gi.HDROn,
			Recording:  gi.RecordState.String(),
			MotionMode: gi.MotionMode.String(),
			Mount:      gi.Mount.String(),
		}
	}
	if z := snap.Zoom; z != nil {
		v.Zoom = &z.Level
	}
	if zr := snap.ZoomRange; zr != nil {
		v.ZoomMax = &zr.Max
	}
	for _, c := range snap.Codecs {
		v.Codecs = append(v.Codecs, codecView{
			Stream:      uint8(c.Stream),
			Encoding:    c.Encoding.String(),
			Width:       c.Width,
			Height:      c.Height,
			BitrateKbps: c.BitrateKbps,
			FPS:         c.FPS,
		})
	}
	return v
}

// statusHandler serves the current session snapshot as JSON.
func statusHandler(b *bridge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := statusView{State: session.StateDisconnected.String()}
		if s := b.Session(); s != nil {
			v = newStatusView(s.Snapshot())
		}
		v.Connects = b.connects.Load()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(v)
	})
}
