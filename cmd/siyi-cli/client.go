package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/serial"
	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
	"github.com/kstaniek/go-siyi-gimbal/internal/udp"
)

type sessionFunc func(ctx context.Context, c *cli.Context, s *session.Session) error

func newLogger(c *cli.Context) *slog.Logger {
	return logging.New(c.GlobalString("log-format"), logging.ParseLevel(c.GlobalString("log-level")), c.App.ErrWriter).With("app", "siyi-cli")
}

func openLink(ctx context.Context, c *cli.Context, l *slog.Logger) (transport.Link, error) {
	switch c.GlobalString("link") {
	case "udp":
		return udp.Dial(ctx, c.GlobalString("addr"), udp.WithLocalAddr(c.GlobalString("local-addr")), udp.WithLogger(l))
	case "serial":
		dev := c.GlobalString("serial")
		p, err := serial.Open(dev, c.GlobalInt("baud"), serial.DefaultReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("open serial: %w", err)
		}
		return serial.NewLink(ctx, p, dev, 16, l), nil
	}
	return nil, fmt.Errorf("unknown link %q", c.GlobalString("link"))
}

// withSession wraps run with a session over the configured link. The
// context is cancelled on SIGINT or SIGTERM.
func withSession(run sessionFunc) func(*cli.Context) error {
	return func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		l := newLogger(c)
		limits := device.Builtin()
		if path := c.GlobalString("limits-file"); path != "" {
			t, err := device.LoadFile(path)
			if err != nil {
				return err
			}
			limits = t
		}
		link, err := openLink(ctx, c, l)
		if err != nil {
			return err
		}
		mode, _ := session.ParseMode(c.GlobalString("mode"))
		s := session.New(link,
			session.WithMode(mode),
			session.WithReceiveTimeout(c.GlobalDuration("timeout")),
			session.WithLimits(limits),
			session.WithLogger(l),
		)
		defer func() { _ = s.Close() }()
		return run(ctx, c, s)
	}
}

// emit prints v as JSON with --json, otherwise the formatted text.
func emit(c *cli.Context, v any, format string, args ...any) error {
	if c.GlobalBool("json") {
		return json.NewEncoder(c.App.Writer).Encode(v)
	}
	_, err := fmt.Fprintf(c.App.Writer, format+"\n", args...)
	return err
}
