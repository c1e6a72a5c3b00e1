package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

func firmwareCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	fw, err := s.FirmwareVersion(ctx)
	if err != nil {
		return err
	}
	return emit(c, fw, "camera %s gimbal %s zoom %s", fw.CodeBoard, fw.Gimbal, fw.Zoom)
}

func hardwareIDCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	hw, err := s.HardwareID(ctx)
	if err != nil {
		return err
	}
	model := hw.Model
	if model == "" {
		model = "unknown"
	}
	return emit(c, hw, "id %s type %s model %s", hw.Raw, hw.TypeCode, model)
}

func printAttitude(c *cli.Context, a siyi.Attitude) error {
	return emit(c, a, "yaw %.1f pitch %.1f roll %.1f (rates %.1f %.1f %.1f deg/s)",
		a.Yaw, a.Pitch, a.Roll, a.YawRate, a.PitchRate, a.RollRate)
}

func attitudeCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	watch := c.Duration("watch")
	if watch <= 0 {
		a, err := s.GimbalAttitude(ctx)
		if err != nil {
			return err
		}
		return printAttitude(c, a)
	}

	if err := s.Connect(ctx, connectTimeout); err != nil {
		return err
	}
	if hz := c.Int("hz"); hz > 0 {
		if err := s.SetDataStream(ctx, siyi.StreamAttitude, hz); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			_ = s.SetDataStream(sctx, siyi.StreamAttitude, 0)
		}()
	}
	sub := s.Subscribe(64, siyi.CmdGimbalAttitude)
	defer s.Unsubscribe(sub)
	deadline := time.NewTimer(watch)
	defer deadline.Stop()
	for {
		select {
		case f := <-sub.Out:
			a, err := siyi.ParseAttitude(f)
			if err != nil {
				continue
			}
			if err := printAttitude(c, a); err != nil {
				return err
			}
		case <-sub.Closed:
			return errors.New("subscription closed")
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func infoCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	gi, err := s.GimbalInfo(ctx)
	if err != nil {
		return err
	}
	hdr := "off"
	if gi.HDROn {
		hdr = "on"
	}
	video := "hdmi"
	if gi.VideoOut == 1 {
		video = "cvbs"
	}
	return emit(c, gi, "hdr %s recording %s motion %s mount %s video %s",
		hdr, gi.RecordState, gi.MotionMode, gi.Mount, video)
}

func parseStream(name string) (siyi.VideoStream, error) {
	switch name {
	case "recording":
		return siyi.VideoRecording, nil
	case "main":
		return siyi.VideoMain, nil
	case "sub":
		return siyi.VideoSub, nil
	}
	return 0, fmt.Errorf("unknown video stream %q", name)
}
