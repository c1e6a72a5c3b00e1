package session

import (
	"context"
	"fmt"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
)

// limits resolves the mechanical limits of the connected model.
func (s *Session) limits(ctx context.Context) (device.Limits, error) {
	code, err := s.Model(ctx)
	if err != nil {
		return device.Limits{}, fmt.Errorf("identify model: %w", err)
	}
	return s.opts.limits.Lookup(code)
}

// Limits is the exported form of limits, for callers that clamp targets
// themselves (the rotation controller).
func (s *Session) Limits(ctx context.Context) (device.Limits, error) {
	if s.opts.limits == nil {
		return device.Limits{}, fmt.Errorf("%w: no limit table", ErrUnsupportedDevice)
	}
	return s.limits(ctx)
}
