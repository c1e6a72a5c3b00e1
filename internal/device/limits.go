// Package device holds per-model mechanical limits used to clamp angle
// requests before they reach the gimbal.
package device

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedDevice is returned by Lookup for a type code absent from the table.
var ErrUnsupportedDevice = errors.New("device: unsupported device model")

// Limits are the mechanical ranges of one camera model, in degrees.
type Limits struct {
	Name     string  `yaml:"name"`
	YawMin   float64 `yaml:"yaw_min"`
	YawMax   float64 `yaml:"yaw_max"`
	PitchMin float64 `yaml:"pitch_min"`
	PitchMax float64 `yaml:"pitch_max"`
	MaxZoom  float64 `yaml:"max_zoom"`
}

// Clamp bounds yaw and pitch to the model range. clamped is true when
// either value was changed.
func (l Limits) Clamp(yaw, pitch float64) (y, p float64, clamped bool) {
	y = math.Min(math.Max(yaw, l.YawMin), l.YawMax)
	p = math.Min(math.Max(pitch, l.PitchMin), l.PitchMax)
	return y, p, y != yaw || p != pitch
}

func (l Limits) validate() error {
	if l.YawMin > l.YawMax {
		return fmt.Errorf("yaw_min %.1f > yaw_max %.1f", l.YawMin, l.YawMax)
	}
	if l.PitchMin > l.PitchMax {
		return fmt.Errorf("pitch_min %.1f > pitch_max %.1f", l.PitchMin, l.PitchMax)
	}
	if l.MaxZoom < 0 {
		return fmt.Errorf("max_zoom %.1f < 0", l.MaxZoom)
	}
	return nil
}

// Table maps hardware type codes ("73", "6B") to limits.
type Table map[string]Limits

// Builtin returns the models with known limits.
func Builtin() Table {
	return Table{
		"73": {Name: "A8 mini", YawMin: -135, YawMax: 135, PitchMin: -90, PitchMax: 25, MaxZoom: 6},
		"6B": {Name: "ZR10", YawMin: -135, YawMax: 135, PitchMin: -90, PitchMax: 25, MaxZoom: 30},
	}
}

// Lookup returns the limits for code. Codes are case-insensitive.
func (t Table) Lookup(code string) (Limits, error) {
	l, ok := t[strings.ToUpper(code)]
	if !ok {
		return Limits{}, fmt.Errorf("%w: type code %q", ErrUnsupportedDevice, code)
	}
	return l, nil
}

// Merge returns a copy of t with every entry of o added or replaced.
func (t Table) Merge(o Table) Table {
	out := make(Table, len(t)+len(o))
	maps.Copy(out, t)
	for k, v := range o {
		out[strings.ToUpper(k)] = v
	}
	return out
}

type fileFormat struct {
	Models map[string]Limits `yaml:"models"`
}

// LoadYAML reads a limits table:
//
//	models:
//	  "78":
//	    name: ZR30
//	    yaw_min: -270
//	    yaw_max: 270
//	    pitch_min: -90
//	    pitch_max: 25
//	    max_zoom: 30
func LoadYAML(r io.Reader) (Table, error) {
	var ff fileFormat
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode limits: %w", err)
	}
	t := make(Table, len(ff.Models))
	for code, l := range ff.Models {
		if err := l.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", code, err)
		}
		t[strings.ToUpper(code)] = l
	}
	return t, nil
}

// LoadFile merges the YAML table at path over the built-in models.
func LoadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open limits file: %w", err)
	}
	defer func() { _ = f.Close() }()
	t, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Builtin().Merge(t), nil
}
