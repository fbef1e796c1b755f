package engine

import "errors"

// Domain errors for the output engine.
var (
	// ErrNoWidget is returned by Start when the engine has no hardware interface.
	ErrNoWidget = errors.New("engine: no widget configured")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("engine: stopped")

	// ErrSetupFailed is returned when the widget cannot be prepared for output.
	ErrSetupFailed = errors.New("engine: widget setup failed")

	// ErrNilRequest is carried by the result of a nil request.
	ErrNilRequest = errors.New("engine: nil request")

	// ErrSerializeFailed is carried by a send-failure caused by packing.
	ErrSerializeFailed = errors.New("engine: request serialisation failed")

	// ErrWriteFailed is carried by a send-failure caused by the widget.
	ErrWriteFailed = errors.New("engine: widget write failed")

	// ErrShutdown is carried by requests resolved during shutdown.
	ErrShutdown = errors.New("engine: shutting down")

	// ErrNoResponse is carried by a timeout outcome.
	ErrNoResponse = errors.New("engine: no response")

	// ErrInvalidResponse is carried by a response-received outcome whose
	// bytes could not be decoded as a reply to the request.
	ErrInvalidResponse = errors.New("engine: invalid response")

	// ErrNoBranchReply is carried by an unresolved outcome when no device
	// answered a branch probe.
	ErrNoBranchReply = errors.New("engine: no reply to branch probe")

	// ErrCollision is carried by an unresolved outcome when several devices
	// answered a branch probe at once.
	ErrCollision = errors.New("engine: branch reply collision")
)
