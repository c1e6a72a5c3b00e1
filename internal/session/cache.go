package session

import (
	"sync"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// cache keeps the last record per reply kind. The most recently decoded
// frame wins; gen counts updates per kind so pollers can tell fresh data
// from a repeat even when the device echoes a constant sequence.
type cache struct {
	mu      sync.RWMutex
	records map[siyi.Command]entry
	codecs  map[siyi.VideoStream]siyi.CodecSpecs
	gens    map[siyi.Command]uint64
}

type entry struct {
	rec any
	at  time.Time
}

func newCache() *cache {
	return &cache{
		records: make(map[siyi.Command]entry),
		codecs:  make(map[siyi.VideoStream]siyi.CodecSpecs),
		gens:    make(map[siyi.Command]uint64),
	}
}

// slot folds commands whose replies share a record kind.
func slot(c siyi.Command) siyi.Command {
	switch c {
	case siyi.CmdManualZoom:
		return siyi.CmdCurrentZoom
	case siyi.CmdSetImageMode:
		return siyi.CmdImageMode
	}
	return c
}

// store parses f and records it. The generation advances even when the
// payload cannot be parsed: the device did answer.
func (c *cache) store(f siyi.Frame) (any, error) {
	rec, err := siyi.Parse(f)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[f.Cmd]++
	if err != nil {
		return nil, err
	}
	switch r := rec.(type) {
	case siyi.CodecSpecs:
		c.codecs[r.Stream] = r
	case siyi.Ack, siyi.CodecSetResult, siyi.RestartAck, siyi.DataStreamAck:
		// nothing to keep beyond the generation
	default:
		c.records[slot(f.Cmd)] = entry{rec: rec, at: time.Now()}
	}
	return rec, nil
}

func (c *cache) generation(cmd siyi.Command) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[cmd]
}

func (c *cache) get(cmd siyi.Command) (any, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.records[slot(cmd)]
	return e.rec, e.at, ok
}

// clear resets every record to unknown. Generations are kept so a stale
// reading is never mistaken for a fresh one across reconnects.
func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.records)
	clear(c.codecs)
}

func cached[T any](c *cache, cmd siyi.Command) *T {
	rec, _, ok := c.get(cmd)
	if !ok {
		return nil
	}
	if v, ok := rec.(T); ok {
		return &v
	}
	return nil
}

// Snapshot is a copy of the session state and every cached record. A nil
// record has not been received since the session last connected.
type Snapshot struct {
	ID          string
	State       State
	Mode        Mode
	Seq         uint16
	Firmware    *siyi.FirmwareVersion
	HardwareID  *siyi.HardwareID
	Attitude    *siyi.Attitude
	GimbalInfo  *siyi.GimbalInfo
	Feedback    *siyi.FuncFeedback
	Zoom        *siyi.ZoomLevel
	ZoomRange   *siyi.ZoomRange
	Angles      *siyi.Angles
	ImageMode   *siyi.ImageMode
	Temperature *siyi.Temperature
	Codecs      []siyi.CodecSpecs
	// AttitudeAge is the time since the last attitude frame; zero when none.
	AttitudeAge time.Duration
}

func (c *cache) fill(s *Snapshot) {
	s.Firmware = cached[siyi.FirmwareVersion](c, siyi.CmdFirmwareVersion)
	s.HardwareID = cached[siyi.HardwareID](c, siyi.CmdHardwareID)
	s.Attitude = cached[siyi.Attitude](c, siyi.CmdGimbalAttitude)
	s.GimbalInfo = cached[siyi.GimbalInfo](c, siyi.CmdGimbalInfo)
	s.Feedback = cached[siyi.FuncFeedback](c, siyi.CmdFuncFeedback)
	s.Zoom = cached[siyi.ZoomLevel](c, siyi.CmdCurrentZoom)
	s.ZoomRange = cached[siyi.ZoomRange](c, siyi.CmdZoomRange)
	s.Angles = cached[siyi.Angles](c, siyi.CmdSetGimbalAngles)
	s.ImageMode = cached[siyi.ImageMode](c, siyi.CmdImageMode)
	s.Temperature = cached[siyi.Temperature](c, siyi.CmdTemperatureAt)
	if _, at, ok := c.get(siyi.CmdGimbalAttitude); ok {
		s.AttitudeAge = time.Since(at)
	}
	c.mu.RLock()
	for _, st := range []siyi.VideoStream{siyi.VideoRecording, siyi.VideoMain, siyi.VideoSub} {
		if cs, ok := c.codecs[st]; ok {
			s.Codecs = append(s.Codecs, cs)
		}
	}
	c.mu.RUnlock()
}
