package main

import (
	"time"

	"github.com/urfave/cli"
)

var commands = []cli.Command{
	{
		Name:   "firmware",
		Usage:  "Print the camera, gimbal and zoom firmware versions",
		Action: withSession(firmwareCommand),
	},
	{
		Name:   "hwid",
		Usage:  "Print the hardware id and camera model",
		Action: withSession(hardwareIDCommand),
	},
	{
		Name:  "attitude",
		Usage: "Print the gimbal attitude",
		Flags: []cli.Flag{
			cli.DurationFlag{
				Name:  "watch, w",
				Usage: "Keep printing attitude frames for this long",
			},
			cli.IntFlag{
				Name:  "hz",
				Usage: "With --watch in stream mode, ask the gimbal to push attitude at this rate",
			},
		},
		Action: withSession(attitudeCommand),
	},
	{
		Name:   "info",
		Usage:  "Print HDR, recording, motion mode and mounting state",
		Action: withSession(infoCommand),
	},
	{
		Name:   "center",
		Usage:  "Return the gimbal to the center position",
		Action: withSession(centerCommand),
	},
	{
		Name:  "speed",
		Usage: "Rotate at a constant speed (-100..100 per axis)",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "yaw", Usage: "Yaw speed; positive turns toward negative yaw"},
			cli.IntFlag{Name: "pitch", Usage: "Pitch speed; positive tilts up"},
			cli.DurationFlag{Name: "for", Usage: "Stop after this long (0 leaves the gimbal moving)"},
		},
		Action: withSession(speedCommand),
	},
	{
		Name:  "angles",
		Usage: "Command absolute angles, clamped to the model limits",
		Flags: []cli.Flag{
			cli.Float64Flag{Name: "yaw", Usage: "Target yaw in degrees"},
			cli.Float64Flag{Name: "pitch", Usage: "Target pitch in degrees"},
		},
		Action: withSession(anglesCommand),
	},
	{
		Name:  "rotate",
		Usage: "Drive the gimbal to a target attitude with the speed controller",
		Flags: []cli.Flag{
			cli.Float64Flag{Name: "yaw", Usage: "Target yaw in degrees"},
			cli.Float64Flag{Name: "pitch", Usage: "Target pitch in degrees"},
			cli.Float64Flag{Name: "kp", Value: 4, Usage: "Proportional gain"},
			cli.Float64Flag{Name: "threshold", Value: 0.5, Usage: "Acceptable error in degrees"},
			cli.DurationFlag{Name: "period", Value: 100 * time.Millisecond, Usage: "Control period"},
			cli.IntFlag{Name: "max-iterations", Value: 600, Usage: "Give up after this many steps"},
		},
		Action: withSession(rotateCommand),
	},
	{
		Name:      "mode",
		Usage:     "Set the motion mode",
		ArgsUsage: "<lock|follow|fpv>",
		Action:    withSession(modeCommand),
	},
	{
		Name:  "zoom",
		Usage: "Print or change the zoom level",
		Flags: []cli.Flag{
			cli.Float64Flag{Name: "set", Usage: "Absolute zoom level (one decimal)"},
			cli.IntFlag{Name: "step", Usage: "Manual zoom: 1 in, -1 out, 0 stop"},
		},
		Action: withSession(zoomCommand),
	},
	{
		Name:  "focus",
		Usage: "Trigger auto focus or step the manual focus",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "step", Usage: "Manual focus: 1 far, -1 near, 0 stop (default: auto focus)"},
		},
		Action: withSession(focusCommand),
	},
	{
		Name:   "photo",
		Usage:  "Take a photo",
		Action: withSession(photoCommand),
	},
	{
		Name:   "record",
		Usage:  "Toggle video recording",
		Action: withSession(recordCommand),
	},
	{
		Name:   "hdr",
		Usage:  "Toggle HDR",
		Action: withSession(hdrCommand),
	},
	{
		Name:  "codec",
		Usage: "Print or change the encoder settings of a video stream",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "stream", Value: "main", Usage: "recording|main|sub"},
			cli.StringFlag{Name: "encoding", Usage: "h264|h265"},
			cli.IntFlag{Name: "width"},
			cli.IntFlag{Name: "height"},
			cli.IntFlag{Name: "bitrate", Usage: "Bitrate in kbps"},
			cli.IntFlag{Name: "fps"},
		},
		Action: withSession(codecCommand),
	},
	{
		Name:  "image-mode",
		Usage: "Print or set the image mode",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "set", Value: -1, Usage: "Mode to select"},
		},
		Action: withSession(imageModeCommand),
	},
	{
		Name:  "temp",
		Usage: "Measure the temperature at a pixel (thermal cameras)",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "x"},
			cli.IntFlag{Name: "y"},
		},
		Action: withSession(tempCommand),
	},
	{
		Name:  "stream",
		Usage: "Configure a pushed data stream",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "type", Value: "attitude", Usage: "attitude|laser"},
			cli.IntFlag{Name: "hz", Usage: "0, 2, 4, 5, 10, 20, 50 or 100 (0 stops)"},
		},
		Action: withSession(streamCommand),
	},
	{
		Name:  "restart",
		Usage: "Soft restart the camera and/or gimbal",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "camera"},
			cli.BoolFlag{Name: "gimbal"},
		},
		Action: withSession(restartCommand),
	},
	{
		Name:      "raw",
		Usage:     "Send any command and print the reply frame",
		ArgsUsage: "<command name or id> [payload hex]",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "reply", Usage: "Expected reply command (default: same as request)"},
		},
		Action: withSession(rawCommand),
	},
	{
		Name:  "simulate",
		Usage: "Run a simulated gimbal on a UDP address",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "listen, l", Value: "127.0.0.1:37260"},
			cli.StringFlag{Name: "model", Value: "73", Usage: "Hardware type code"},
			cli.Float64Flag{Name: "max-rate", Value: 90, Usage: "Degrees per second at full speed"},
		},
		Action: simulateCommand,
	},
}
