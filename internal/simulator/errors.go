package simulator

import (
	"errors"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen = errors.New("listen")
	ErrRead   = errors.New("read")
	ErrWrite  = errors.New("write")
)

func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrWrite):
		return metrics.ErrSimWrite
	case errors.Is(err, ErrRead), errors.Is(err, ErrListen):
		return metrics.ErrSimRead
	default:
		return "other"
	}
}
