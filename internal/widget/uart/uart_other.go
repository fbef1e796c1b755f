//go:build !linux

package uart

import "github.com/nerrad567/gray-logic-dmx/internal/dmx"

// Widget is unavailable outside Linux; every call fails with ErrUnsupported.
type Widget struct {
	cfg Config
}

// New creates a widget that reports ErrUnsupported.
func New(cfg Config) *Widget {
	return &Widget{cfg: cfg}
}

// IsOpen always reports false.
func (w *Widget) IsOpen() bool {
	return false
}

// SetupOutput returns ErrUnsupported.
func (w *Widget) SetupOutput() error {
	return ErrUnsupported
}

// Close does nothing.
func (w *Widget) Close() error {
	return nil
}

// SetBreak returns ErrUnsupported.
func (w *Widget) SetBreak(bool) error {
	return ErrUnsupported
}

// WriteFrame returns ErrUnsupported.
func (w *Widget) WriteFrame(dmx.Buffer) error {
	return ErrUnsupported
}

// Write returns ErrUnsupported.
func (w *Widget) Write([]byte) error {
	return ErrUnsupported
}

// Read returns ErrUnsupported.
func (w *Widget) Read([]byte) (int, error) {
	return 0, ErrUnsupported
}
