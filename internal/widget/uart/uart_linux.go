//go:build linux

package uart

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/gray-logic-dmx/internal/dmx"
)

// Widget is a raw UART DMX interface.
//
// Thread Safety: All methods are safe for concurrent use, though the engine
// calls them from one goroutine.
type Widget struct {
	cfg Config

	mu sync.Mutex
	fd int
}

// New creates a UART widget. The device is opened by SetupOutput.
func New(cfg Config) *Widget {
	return &Widget{cfg: cfg, fd: -1}
}

// IsOpen reports whether the tty is open.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fd >= 0
}

// SetupOutput opens the tty and configures 250 kbaud 8N2 raw mode.
func (w *Widget) SetupOutput() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fd >= 0 {
		return nil
	}

	fd, err := unix.Open(w.cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("uart: open %s: %w", w.cfg.Device, err)
	}

	if err := configure(fd); err != nil {
		unix.Close(fd) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("uart: configure %s: %w", w.cfg.Device, err)
	}

	w.fd = fd
	return nil
}

// configure puts the tty in raw 8N2 mode at BaudRate using termios2.
func configure(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	makeRaw(t)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS2, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// makeRaw sets raw 8N2 at BaudRate. Received breaks are discarded so the
// break that opens a responder's reply does not arrive as a 0x00 byte.
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Iflag |= unix.IGNBRK
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD | unix.CRTSCTS
	t.Cflag |= unix.CS8 | unix.CSTOPB | unix.CLOCAL | unix.CREAD | unix.BOTHER
	t.Ispeed = BaudRate
	t.Ospeed = BaudRate
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
}

// Close releases the tty.
func (w *Widget) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fd < 0 {
		return nil
	}
	err := unix.Close(w.fd)
	w.fd = -1
	return err
}

// SetBreak asserts or releases the line break. Asserting waits for the
// previous frame to leave the shift register first.
func (w *Widget) SetBreak(asserted bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fd < 0 {
		return ErrNotOpen
	}
	if asserted {
		// TCSBRK with a non-zero argument is tcdrain.
		if err := unix.IoctlSetInt(w.fd, unix.TCSBRK, 1); err != nil {
			return fmt.Errorf("uart: drain: %w", err)
		}
		return ioctlNoArg(w.fd, unix.TIOCSBRK)
	}
	return ioctlNoArg(w.fd, unix.TIOCCBRK)
}

// WriteFrame writes the null start code and the frame slots.
func (w *Widget) WriteFrame(frame dmx.Buffer) error {
	return w.write(frameBytes(frame.Data()))
}

// Write writes a packed RDM request. Stale input is discarded first so the
// next Read only sees the reply.
func (w *Widget) Write(data []byte) error {
	w.mu.Lock()
	fd := w.fd
	w.mu.Unlock()

	if fd < 0 {
		return ErrNotOpen
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return fmt.Errorf("uart: flush input: %w", err)
	}
	return w.write(data)
}

func (w *Widget) write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fd < 0 {
		return ErrNotOpen
	}
	n, err := unix.Write(w.fd, data)
	if err != nil {
		return fmt.Errorf("uart: write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(data))
	}
	return nil
}

// Read collects a reply: it waits up to the read timeout for the first byte
// and then keeps reading until the line goes idle or buf is full.
func (w *Widget) Read(buf []byte) (int, error) {
	w.mu.Lock()
	fd := w.fd
	w.mu.Unlock()

	if fd < 0 {
		return 0, ErrNotOpen
	}

	total := 0
	timeout := pollMillis(w.cfg.readTimeout())
	for total < len(buf) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}} //nolint:gosec // fd fits in int32
		n, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return total, fmt.Errorf("uart: poll: %w", err)
		}
		if n == 0 {
			break
		}

		got, err := unix.Read(fd, buf[total:])
		if errors.Is(err, unix.EAGAIN) {
			continue
		}
		if err != nil {
			return total, fmt.Errorf("uart: read: %w", err)
		}
		if got == 0 {
			break
		}
		total += got
		timeout = pollMillis(interByteTimeout)
	}
	return total, nil
}

func ioctlNoArg(fd int, req uint) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), 0)
	if errno != 0 {
		return fmt.Errorf("uart: ioctl 0x%x: %w", req, errno)
	}
	return nil
}
