package engine

import "github.com/nerrad567/gray-logic-dmx/internal/dmx"

// Widget is the hardware interface the engine drives.
//
// All methods are called from the engine's worker goroutine only.
type Widget interface {
	// IsOpen reports whether the interface is ready for output.
	IsOpen() bool

	// SetupOutput prepares the interface. Called by Start when IsOpen is false.
	SetupOutput() error

	// SetBreak asserts or releases the line break.
	SetBreak(asserted bool) error

	// WriteFrame transmits one DMX frame.
	WriteFrame(frame dmx.Buffer) error

	// Write transmits a packed RDM request.
	Write(data []byte) error

	// Read copies whatever the line returned into buf. It must not block
	// beyond a short, bounded timeout. n == 0 means nothing arrived.
	Read(buf []byte) (n int, err error)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
