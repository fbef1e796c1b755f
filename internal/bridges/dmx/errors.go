package dmx

import "errors"

// Domain errors for the DMX bridge package.
var (
	// ErrInvalidMessage is returned when a payload cannot be decoded or
	// carries invalid fields.
	ErrInvalidMessage = errors.New("dmx bridge: invalid message")

	// ErrUnknownUniverse is returned for a level command addressed to a
	// universe this bridge does not drive.
	ErrUnknownUniverse = errors.New("dmx bridge: unknown universe")

	// ErrInvalidLevel is returned when a level lies outside 0-255.
	ErrInvalidLevel = errors.New("dmx bridge: level out of range")

	// ErrUnknownOperation is returned for a discovery operation other than
	// mute, unmute or branch.
	ErrUnknownOperation = errors.New("dmx bridge: unknown discovery operation")

	// ErrStopped is returned when the bridge shuts down while a request waits.
	ErrStopped = errors.New("dmx bridge: stopped")
)
