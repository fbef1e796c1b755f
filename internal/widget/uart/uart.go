package uart

import (
	"errors"
	"time"
)

// Line settings for DMX512.
const (
	// BaudRate is the DMX512 line rate.
	BaudRate = 250000

	// defaultReadTimeout bounds the wait for the first reply byte.
	defaultReadTimeout = 2 * time.Millisecond

	// interByteTimeout ends a reply once the line has been idle this long.
	interByteTimeout = 500 * time.Microsecond

	// startCodeDMX precedes every null-start-code frame.
	startCodeDMX byte = 0x00
)

// Domain errors for the UART widget.
var (
	// ErrNotOpen is returned by I/O before SetupOutput or after Close.
	ErrNotOpen = errors.New("uart: port not open")

	// ErrUnsupported is returned on platforms without termios2.
	ErrUnsupported = errors.New("uart: not supported on this platform")

	// ErrShortWrite is returned when the kernel accepts fewer bytes than sent.
	ErrShortWrite = errors.New("uart: short write")
)

// Config holds UART widget settings.
type Config struct {
	// Device is the tty path, e.g. "/dev/ttyAMA0".
	Device string

	// ReadTimeout bounds the wait for the first reply byte.
	// Default: 2 ms.
	ReadTimeout time.Duration
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return defaultReadTimeout
	}
	return c.ReadTimeout
}

// frameBytes prefixes the DMX null start code.
func frameBytes(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, startCodeDMX)
	return append(out, data...)
}

// pollMillis converts a timeout to poll(2) milliseconds, rounding up so a
// sub-millisecond timeout still waits.
func pollMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := int((d + time.Millisecond - 1) / time.Millisecond)
	return ms
}
