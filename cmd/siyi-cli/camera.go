package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

type zoomView struct {
	Level float64 `json:"level"`
	Max   float64 `json:"max,omitempty"`
}

func zoomCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	switch {
	case c.IsSet("set"):
		if err := s.AbsoluteZoom(ctx, c.Float64("set")); err != nil {
			return err
		}
	case c.IsSet("step"):
		z, err := s.ManualZoom(ctx, c.Int("step"))
		if err != nil {
			return err
		}
		return emit(c, zoomView{Level: z}, "zoom %.1fx", z)
	}
	z, err := s.CurrentZoom(ctx)
	if err != nil {
		return err
	}
	zmax, err := s.ZoomRange(ctx)
	if err != nil {
		return err
	}
	return emit(c, zoomView{Level: z, Max: zmax}, "zoom %.1fx (max %.1fx)", z, zmax)
}

func focusCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	if c.IsSet("step") {
		if err := s.ManualFocus(ctx, c.Int("step")); err != nil {
			return err
		}
		return emit(c, map[string]int{"step": c.Int("step")}, "manual focus %d", c.Int("step"))
	}
	if err := s.AutoFocus(ctx); err != nil {
		return err
	}
	return emit(c, map[string]bool{"ok": true}, "auto focus")
}

func photoCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	if err := s.TakePhoto(ctx); err != nil {
		return err
	}
	return emit(c, map[string]bool{"ok": true}, "photo taken")
}

func recordCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	st, err := s.ToggleRecording(ctx)
	if err != nil {
		return err
	}
	return emit(c, map[string]string{"recording": st.String()}, "recording %s", st)
}

func hdrCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	on, err := s.ToggleHDR(ctx)
	if err != nil {
		return err
	}
	state := "off"
	if on {
		state = "on"
	}
	return emit(c, map[string]bool{"hdr": on}, "hdr %s", state)
}

func codecCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	st, err := parseStream(c.String("stream"))
	if err != nil {
		return err
	}
	cs, err := s.CodecSpecs(ctx, st)
	if err != nil {
		return err
	}
	changed := false
	if c.IsSet("encoding") {
		switch strings.ToLower(c.String("encoding")) {
		case "h264":
			cs.Encoding = siyi.EncodingH264
		case "h265":
			cs.Encoding = siyi.EncodingH265
		default:
			return fmt.Errorf("unknown encoding %q", c.String("encoding"))
		}
		changed = true
	}
	for name, dst := range map[string]*uint16{"width": &cs.Width, "height": &cs.Height, "bitrate": &cs.BitrateKbps} {
		if c.IsSet(name) {
			v := c.Int(name)
			if v <= 0 || v > 0xFFFF {
				return fmt.Errorf("%s out of range: %d", name, v)
			}
			*dst = uint16(v)
			changed = true
		}
	}
	if c.IsSet("fps") {
		v := c.Int("fps")
		if v <= 0 || v > 0xFF {
			return fmt.Errorf("fps out of range: %d", v)
		}
		cs.FPS = uint8(v)
		changed = true
	}
	if changed {
		if err := s.SetCodecSpecs(ctx, cs); err != nil {
			return err
		}
	}
	return emit(c, cs, "%s: %s %dx%d %d kbps %d fps",
		c.String("stream"), cs.Encoding, cs.Width, cs.Height, cs.BitrateKbps, cs.FPS)
}

func imageModeCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	var (
		m   uint8
		err error
	)
	if v := c.Int("set"); v >= 0 {
		if v > 0xFF {
			return fmt.Errorf("image mode out of range: %d", v)
		}
		m, err = s.SetImageMode(ctx, uint8(v))
	} else {
		m, err = s.ImageMode(ctx)
	}
	if err != nil {
		return err
	}
	return emit(c, map[string]uint8{"mode": m}, "image mode %d", m)
}

func tempCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	x, y := c.Int("x"), c.Int("y")
	if x < 0 || y < 0 || x > 0xFFFF || y > 0xFFFF {
		return fmt.Errorf("pixel out of range: %d,%d", x, y)
	}
	t, err := s.TemperatureAt(ctx, uint16(x), uint16(y), siyi.TempOnce)
	if err != nil {
		return err
	}
	return emit(c, t, "%.2f C at %d,%d", t.Celsius, t.X, t.Y)
}

func streamCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	var typ siyi.StreamType
	switch c.String("type") {
	case "attitude":
		typ = siyi.StreamAttitude
	case "laser":
		typ = siyi.StreamLaser
	default:
		return fmt.Errorf("unknown stream type %q", c.String("type"))
	}
	hz := c.Int("hz")
	if err := s.SetDataStream(ctx, typ, hz); err != nil {
		return err
	}
	return emit(c, map[string]any{"type": c.String("type"), "hz": hz}, "%s stream at %d Hz", c.String("type"), hz)
}

func restartCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	camera, gimbal := c.Bool("camera"), c.Bool("gimbal")
	if !camera && !gimbal {
		return fmt.Errorf("nothing to restart: pass --camera and/or --gimbal")
	}
	r, err := s.SoftRestart(ctx, camera, gimbal)
	if err != nil {
		return err
	}
	return emit(c, r, "restart camera=%t gimbal=%t", r.Camera, r.Gimbal)
}
