package siyi

import "fmt"

// Command is the single-byte opcode selecting a frame's payload meaning.
type Command byte

// Command catalog. Closed and versioned by the vendor; anything else decodes
// fine but is routed to the unknown-command path.
const (
	CmdFirmwareVersion Command = 0x01
	CmdHardwareID      Command = 0x02
	CmdAutoFocus       Command = 0x04
	CmdManualZoom      Command = 0x05
	CmdManualFocus     Command = 0x06
	CmdGimbalSpeed     Command = 0x07
	CmdCenter          Command = 0x08
	CmdGimbalInfo      Command = 0x0A
	CmdFuncFeedback    Command = 0x0B
	CmdPhotoVideo      Command = 0x0C
	CmdGimbalAttitude  Command = 0x0D
	CmdSetGimbalAngles Command = 0x0E
	CmdAbsoluteZoom    Command = 0x0F
	CmdImageMode       Command = 0x10
	CmdSetImageMode    Command = 0x11
	CmdTemperatureAt   Command = 0x12
	CmdZoomRange       Command = 0x16
	CmdCurrentZoom     Command = 0x18
	CmdCodecSpecs      Command = 0x20
	CmdSetCodecSpecs   Command = 0x21
	CmdDataStream      Command = 0x25
	CmdSoftRestart     Command = 0x80
)

var commandNames = map[Command]string{
	CmdFirmwareVersion: "firmware_version",
	CmdHardwareID:      "hardware_id",
	CmdAutoFocus:       "auto_focus",
	CmdManualZoom:      "manual_zoom",
	CmdManualFocus:     "manual_focus",
	CmdGimbalSpeed:     "gimbal_speed",
	CmdCenter:          "center",
	CmdGimbalInfo:      "gimbal_info",
	CmdFuncFeedback:    "function_feedback",
	CmdPhotoVideo:      "photo_video",
	CmdGimbalAttitude:  "gimbal_attitude",
	CmdSetGimbalAngles: "set_gimbal_angles",
	CmdAbsoluteZoom:    "absolute_zoom",
	CmdImageMode:       "image_mode",
	CmdSetImageMode:    "set_image_mode",
	CmdTemperatureAt:   "temperature_at_point",
	CmdZoomRange:       "zoom_range",
	CmdCurrentZoom:     "current_zoom",
	CmdCodecSpecs:      "codec_specs",
	CmdSetCodecSpecs:   "set_codec_specs",
	CmdDataStream:      "data_stream",
	CmdSoftRestart:     "soft_restart",
}

// Known reports whether c is in the catalog.
func (c Command) Known() bool { _, ok := commandNames[c]; return ok }

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("cmd_0x%02x", byte(c))
}

// Commands returns the catalog in opcode order.
func Commands() []Command {
	out := make([]Command, 0, len(commandNames))
	for i := 0; i < 256; i++ {
		if c := Command(i); c.Known() {
			out = append(out, c)
		}
	}
	return out
}

// ParseCommand resolves a catalog name ("gimbal_attitude") to its opcode.
func ParseCommand(name string) (Command, bool) {
	for c, n := range commandNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}
