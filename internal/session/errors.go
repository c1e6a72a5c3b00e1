package session

import (
	"errors"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// Errors surfaced to callers. A timeout is routine on UDP and is reported as
// ErrNoResponse, possibly joined with ErrCommandMismatch or ErrChecksum when
// frames did arrive but none could answer the request.
var (
	ErrSendFailed      = errors.New("session: send failed")
	ErrNoResponse      = errors.New("session: no response")
	ErrCommandMismatch = errors.New("session: reply command mismatch")
	ErrRejected        = errors.New("session: device rejected request")
	ErrNotConnected    = errors.New("session: not connected")
	ErrConnectTimeout  = errors.New("session: connect timeout")
	ErrConnectAborted  = errors.New("session: connect aborted by disconnect")
	ErrClosed          = errors.New("session: closed")
	ErrInvalidArgument = errors.New("session: invalid argument")

	ErrChecksum          = siyi.ErrChecksum
	ErrUnsupportedDevice = device.ErrUnsupportedDevice
)
