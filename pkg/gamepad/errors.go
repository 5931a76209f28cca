package gamepad

import "github.com/pkg/errors"

var (
	// ErrDeviceAbsent is returned (possibly wrapped) by a Source when the
	// gamepad is unplugged or cannot be found.
	ErrDeviceAbsent = errors.New("gamepad not connected")

	// ErrReconnectExhausted ends the polling loop after too many failed probes.
	ErrReconnectExhausted = errors.New("maximum reconnection attempts reached")
)
