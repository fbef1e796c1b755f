package enttec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Default serial settings. The USB CDC link ignores the line rate but the
// driver still wants one.
const (
	defaultBaud        = 57600
	defaultReadTimeout = 100 * time.Millisecond

	// maxSkippedMessages bounds how many unrelated messages Read discards
	// while looking for a reply.
	maxSkippedMessages = 8
)

// ErrNotOpen is returned by I/O before SetupOutput or after Close.
var ErrNotOpen = errors.New("enttec: port not open")

// Config holds widget settings.
type Config struct {
	// Device is the serial device, e.g. "/dev/ttyUSB0".
	Device string

	// Baud is passed to the serial driver. Default: 57600.
	Baud int

	// ReadTimeout bounds a single serial read. The driver rounds it up to
	// tenths of a second. Default: 100 ms.
	ReadTimeout time.Duration

	// BreakMicros and MABMicros configure the widget's own line timing.
	BreakMicros int
	MABMicros   int

	// Rate is the widget refresh limit in frames per second (0 = maximum).
	Rate int
}

// opener opens the serial link; replaced in tests.
type opener func(cfg Config) (io.ReadWriteCloser, error)

// Widget drives an Enttec DMX USB Pro.
//
// Thread Safety: All methods are safe for concurrent use.
type Widget struct {
	cfg  Config
	open opener

	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

// New creates a widget. The port is opened by SetupOutput.
func New(cfg Config) *Widget {
	return newWithOpener(cfg, openSerial)
}

func newWithOpener(cfg Config, open opener) *Widget {
	if cfg.Baud <= 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	return &Widget{cfg: cfg, open: open}
}

func openSerial(cfg Config) (io.ReadWriteCloser, error) {
	return serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
}

// IsOpen reports whether the port is open.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.port != nil
}

// SetupOutput opens the port and sends the widget parameters.
func (w *Widget) SetupOutput() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.port != nil {
		return nil
	}

	port, err := w.open(w.cfg)
	if err != nil {
		return fmt.Errorf("enttec: open %s: %w", w.cfg.Device, err)
	}

	msg, err := encode(LabelSetParameters, parameters(w.cfg.BreakMicros, w.cfg.MABMicros, w.cfg.Rate))
	if err == nil {
		_, err = port.Write(msg)
	}
	if err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("enttec: set parameters: %w", err)
	}

	w.port = port
	w.reader = bufio.NewReader(port)
	return nil
}

// Close releases the port.
func (w *Widget) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.port == nil {
		return nil
	}
	err := w.port.Close()
	w.port = nil
	w.reader = nil
	return err
}

// SetBreak is a no-op; the widget generates the break itself.
func (w *Widget) SetBreak(bool) error {
	if !w.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// WriteFrame sends a DMX frame with the null start code.
func (w *Widget) WriteFrame(frame dmx.Buffer) error {
	data := make([]byte, 0, frame.Size()+1)
	data = append(data, 0x00)
	data = append(data, frame.Data()...)
	return w.send(LabelSendDMX, data)
}

// Write sends a packed RDM request. Branch probes use the discovery label
// so the widget listens for an unframed reply.
func (w *Widget) Write(data []byte) error {
	label := LabelSendRDM
	if req, err := rdm.ParseRequest(data); err == nil && req.IsDUB() {
		label = LabelSendRDMDiscovery
	}
	return w.send(label, data)
}

func (w *Widget) send(label byte, data []byte) error {
	msg, err := encode(label, data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.port == nil {
		return ErrNotOpen
	}
	if _, err := w.port.Write(msg); err != nil {
		return fmt.Errorf("enttec: write label %d: %w", label, err)
	}
	return nil
}

// Read returns the next RDM reply the widget reports. A widget timeout
// message or an idle port reads as zero bytes.
func (w *Widget) Read(buf []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reader == nil {
		return 0, ErrNotOpen
	}

	for i := 0; i < maxSkippedMessages; i++ {
		msg, err := decode(w.reader)
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}

		switch msg.label {
		case LabelRDMTimeout:
			return 0, nil
		case LabelReceivedDMX:
			if len(msg.data) < 1 || msg.data[0] != statusValid {
				return 0, nil
			}
			return copy(buf, msg.data[1:]), nil
		}
	}
	return 0, nil
}
