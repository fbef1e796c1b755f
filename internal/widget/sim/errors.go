package sim

import "errors"

// Domain errors for the simulated widget.
var (
	// ErrNotOpen is returned by I/O before SetupOutput or after Close.
	ErrNotOpen = errors.New("sim: widget not open")

	// ErrInjected is returned by operations configured to fail.
	ErrInjected = errors.New("sim: injected failure")

	// ErrDuplicateResponder is returned when a UID is added twice.
	ErrDuplicateResponder = errors.New("sim: responder already present")
)
