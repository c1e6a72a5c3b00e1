package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/kstaniek/go-siyi-gimbal/internal/control"
	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

func centerCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	if err := s.Center(ctx); err != nil {
		return err
	}
	return emit(c, map[string]bool{"ok": true}, "centered")
}

func speedCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	yaw, pitch := c.Int("yaw"), c.Int("pitch")
	if err := s.SetGimbalSpeed(ctx, yaw, pitch); err != nil {
		return err
	}
	d := c.Duration("for")
	if d <= 0 {
		return emit(c, map[string]int{"yaw": siyi.ClampSpeed(yaw), "pitch": siyi.ClampSpeed(pitch)},
			"speed yaw %d pitch %d", siyi.ClampSpeed(yaw), siyi.ClampSpeed(pitch))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.SetGimbalSpeed(sctx, 0, 0); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	a, err := s.GimbalAttitude(sctx)
	if err != nil {
		return err
	}
	return printAttitude(c, a)
}

func anglesCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	a, err := s.SetAngles(ctx, c.Float64("yaw"), c.Float64("pitch"))
	if err != nil {
		return err
	}
	return emit(c, a, "heading to yaw %.1f pitch %.1f", a.Yaw, a.Pitch)
}

func rotateCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	l := newLogger(c)
	cfg := control.Config{
		Kp:            c.Float64("kp"),
		Threshold:     c.Float64("threshold"),
		Period:        c.Duration("period"),
		MaxIterations: c.Int("max-iterations"),
	}
	lim, err := s.Limits(ctx)
	switch {
	case err == nil:
		cfg.Limits = &lim
	case errors.Is(err, session.ErrUnsupportedDevice):
		l.Warn("rotate_without_limits", "error", err)
	default:
		return err
	}
	target := control.Target{Yaw: c.Float64("yaw"), Pitch: c.Float64("pitch")}
	res, err := control.RotateTo(ctx, s, target, cfg, l)
	if err != nil {
		return err
	}
	return emit(c, res, "reached yaw %.1f pitch %.1f in %d steps (%s)",
		res.Final.Yaw, res.Final.Pitch, res.Iterations, res.Elapsed.Round(time.Millisecond))
}

func parseMotionMode(name string) (siyi.MotionMode, error) {
	switch name {
	case "lock":
		return siyi.MotionLock, nil
	case "follow":
		return siyi.MotionFollow, nil
	case "fpv":
		return siyi.MotionFPV, nil
	}
	return 0, fmt.Errorf("unknown motion mode %q (want lock, follow or fpv)", name)
}

func modeCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	m, err := parseMotionMode(c.Args().First())
	if err != nil {
		return err
	}
	if err := s.SetMotionMode(ctx, m); err != nil {
		return err
	}
	return emit(c, map[string]string{"mode": m.String()}, "motion mode %s", m)
}
