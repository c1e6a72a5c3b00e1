package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/kstaniek/go-siyi-gimbal/internal/serial"
	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/udp"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "link",
		Value:  "udp",
		Usage:  "Device link: udp|serial",
		EnvVar: "SIYI_LINK",
	},
	cli.StringFlag{
		Name:   "addr, a",
		Value:  udp.DefaultAddr,
		Usage:  "Gimbal UDP address",
		EnvVar: "SIYI_ADDR",
	},
	cli.StringFlag{
		Name:  "local-addr",
		Usage: "Local UDP address to bind",
	},
	cli.StringFlag{
		Name:   "serial",
		Value:  "/dev/ttyUSB0",
		Usage:  "Serial device (with --link=serial)",
		EnvVar: "SIYI_SERIAL",
	},
	cli.IntFlag{
		Name:  "baud",
		Value: serial.DefaultBaud,
		Usage: "Serial baud rate",
	},
	cli.StringFlag{
		Name:  "mode",
		Value: "sync",
		Usage: "Reply handling: sync|stream",
	},
	cli.DurationFlag{
		Name:  "timeout, t",
		Value: session.DefaultReceiveTimeout,
		Usage: "Reply timeout per request",
	},
	cli.StringFlag{
		Name:   "limits-file",
		Usage:  "YAML file with extra device limits",
		EnvVar: "SIYI_LIMITS_FILE",
	},
	cli.BoolFlag{
		Name:  "json",
		Usage: "Print replies as JSON",
	},
	cli.StringFlag{
		Name:  "log-level",
		Value: "warn",
		Usage: "Log level: debug|info|warn|error",
	},
	cli.StringFlag{
		Name:  "log-format",
		Value: "text",
		Usage: "Log format: text|json",
	},
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "siyi-cli"
	app.Usage = "Query and command a SIYI gimbal camera"
	app.Version = fmt.Sprintf("%s (commit %s)", version, commit)
	app.Flags = globalFlags
	app.Commands = commands
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.Before = func(c *cli.Context) error {
		if _, ok := session.ParseMode(c.GlobalString("mode")); !ok {
			return fmt.Errorf("invalid mode: %s", c.GlobalString("mode"))
		}
		if c.GlobalDuration("timeout") <= 0 {
			return fmt.Errorf("timeout must be > 0")
		}
		return nil
	}
	return app
}

// connectTimeout bounds Connect for commands that need pollers running.
const connectTimeout = 5 * time.Second
