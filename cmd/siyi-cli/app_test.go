package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
	"github.com/kstaniek/go-siyi-gimbal/internal/simulator"
)

func startSim(t *testing.T, opts ...simulator.Option) *simulator.Device {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d := simulator.New(opts...)
	done := make(chan struct{})
	go func() { defer close(done); _ = d.Serve(ctx) }()
	t.Cleanup(func() { cancel(); <-done })
	select {
	case <-d.Ready():
	case <-time.After(time.Second):
		t.Fatal("simulator not ready")
	}
	return d
}

// run executes the CLI against d and returns stdout.
func run(t *testing.T, d *simulator.Device, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	argv := append([]string{"siyi-cli", "--addr", d.Addr(), "--timeout", "200ms"}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestCLI_Firmware(t *testing.T) {
	d := startSim(t)
	out, err := run(t, d, "firmware")
	require.NoError(t, err)
	assert.Contains(t, out, "camera v0.3.1")
}

func TestCLI_HardwareIDJSON(t *testing.T) {
	d := startSim(t, simulator.WithModel("6B"))
	out, err := run(t, d, "--json", "hwid")
	require.NoError(t, err)
	var hw siyi.HardwareID
	require.NoError(t, json.Unmarshal([]byte(out), &hw))
	assert.Equal(t, "6B", hw.TypeCode)
	assert.Equal(t, "ZR10", hw.Model)
}

func TestCLI_AnglesClamped(t *testing.T) {
	d := startSim(t)
	out, err := run(t, d, "angles", "--yaw", "170", "--pitch", "-120")
	require.NoError(t, err)
	assert.Contains(t, out, "yaw 135.0 pitch -90.0")
	yaw, pitch, _ := d.Attitude()
	assert.InDelta(t, 135, yaw, 0.01)
	assert.InDelta(t, -90, pitch, 0.01)
}

func TestCLI_Rotate(t *testing.T) {
	d := startSim(t, simulator.WithMaxRate(90))
	d.SetAttitude(20, 0, 0)
	out, err := run(t, d, "rotate", "--yaw", "-10", "--pitch", "5", "--period", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "reached yaw")
	yaw, pitch, _ := d.Attitude()
	assert.InDelta(t, -10, yaw, 1)
	assert.InDelta(t, 5, pitch, 1)
}

func TestCLI_SpeedFor(t *testing.T) {
	d := startSim(t)
	_, err := run(t, d, "speed", "--pitch", "50", "--for", "100ms")
	require.NoError(t, err)
	ys, ps := d.Speed()
	assert.Zero(t, ys)
	assert.Zero(t, ps)
	_, pitch, _ := d.Attitude()
	assert.Greater(t, pitch, 0.0)
}

func TestCLI_Mode(t *testing.T) {
	d := startSim(t)
	_, err := run(t, d, "mode", "fpv")
	require.NoError(t, err)
	assert.Equal(t, siyi.MotionFPV, d.MotionMode())

	_, err = run(t, d, "mode", "sideways")
	assert.ErrorContains(t, err, "unknown motion mode")
}

func TestCLI_ZoomAndCodec(t *testing.T) {
	d := startSim(t)
	out, err := run(t, d, "zoom", "--set", "3.5")
	require.NoError(t, err)
	assert.Contains(t, out, "zoom 3.5x (max 6.0x)")

	out, err = run(t, d, "codec", "--stream", "main", "--width", "1280", "--height", "720", "--encoding", "h264")
	require.NoError(t, err)
	assert.Contains(t, out, "main: H264 1280x720")

	out, err = run(t, d, "codec", "--stream", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "1280x720")
}

func TestCLI_PhotoRecordHDR(t *testing.T) {
	d := startSim(t)
	out, err := run(t, d, "photo")
	require.NoError(t, err)
	assert.Contains(t, out, "photo taken")

	out, err = run(t, d, "record")
	require.NoError(t, err)
	assert.Contains(t, out, "recording on")

	out, err = run(t, d, "hdr")
	require.NoError(t, err)
	assert.Contains(t, out, "hdr on")
}

func TestCLI_Raw(t *testing.T) {
	d := startSim(t)
	out, err := run(t, d, "--json", "raw", "gimbal_attitude")
	require.NoError(t, err)
	var v struct {
		Cmd    string `json:"cmd"`
		Record struct {
			Yaw float64
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "gimbal_attitude", v.Cmd)

	out, err = run(t, d, "raw", "0x0f", "0301")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "absolute_zoom"), out)
}

func TestCLI_Errors(t *testing.T) {
	d := startSim(t)
	d.SetMuted(true)
	_, err := run(t, d, "firmware")
	assert.Error(t, err)

	_, err = run(t, d, "--mode", "burst", "firmware")
	assert.ErrorContains(t, err, "invalid mode")

	_, err = run(t, d, "restart")
	assert.ErrorContains(t, err, "nothing to restart")

	_, err = run(t, d, "raw", "bogus")
	assert.ErrorContains(t, err, "unknown command")
}

func TestParseCommand(t *testing.T) {
	for in, want := range map[string]siyi.Command{
		"center":           siyi.CmdCenter,
		"0x0d":             siyi.CmdGimbalAttitude,
		"128":              siyi.CmdSoftRestart,
		"firmware_version": siyi.CmdFirmwareVersion,
	} {
		got, err := parseCommand(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseCommand("0x100")
	assert.Error(t, err)
}
