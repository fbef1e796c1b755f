package enttec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Message framing.
const (
	startOfMessage byte = 0x7E
	endOfMessage   byte = 0xE7
	headerLength        = 4

	// maxDataLength is the largest payload the widget accepts.
	maxDataLength = 600
)

// Message labels.
const (
	LabelSetParameters    byte = 0x04
	LabelReceivedDMX      byte = 0x05
	LabelSendDMX          byte = 0x06
	LabelSendRDM          byte = 0x07
	LabelSendRDMDiscovery byte = 0x0B
	LabelRDMTimeout       byte = 0x0C
)

// Parameter limits from the widget API, in widget units.
const (
	breakUnit   = 10.67 // microseconds
	minBreak    = 9
	maxBreak    = 127
	minMAB      = 1
	maxMAB      = 127
	maxRate     = 40
	statusValid = 0x00
)

// Protocol errors.
var (
	// ErrMessageTooLong is returned when a payload exceeds the widget limit.
	ErrMessageTooLong = errors.New("enttec: message too long")

	// ErrBadMessage is returned when a received message is malformed.
	ErrBadMessage = errors.New("enttec: malformed message")
)

// message is one framed widget message.
type message struct {
	label byte
	data  []byte
}

// encode frames a message.
func encode(label byte, data []byte) ([]byte, error) {
	if len(data) > maxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(data))
	}
	out := make([]byte, headerLength+len(data)+1)
	out[0] = startOfMessage
	out[1] = label
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(data))) //nolint:gosec // Bounded by maxDataLength
	copy(out[headerLength:], data)
	out[len(out)-1] = endOfMessage
	return out, nil
}

// decode reads the next framed message, skipping any bytes before a start
// of message marker.
func decode(r *bufio.Reader) (message, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return message{}, err
		}
		if b == startOfMessage {
			break
		}
	}

	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return message{}, fmt.Errorf("%w: header: %w", ErrBadMessage, err)
	}
	length := int(binary.LittleEndian.Uint16(hdr[1:3]))
	if length > maxDataLength {
		return message{}, fmt.Errorf("%w: length %d", ErrBadMessage, length)
	}

	body := make([]byte, length+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return message{}, fmt.Errorf("%w: body: %w", ErrBadMessage, err)
	}
	if body[length] != endOfMessage {
		return message{}, fmt.Errorf("%w: missing end marker", ErrBadMessage)
	}

	return message{label: hdr[0], data: body[:length]}, nil
}

// parameters builds the set-parameters payload from break and MAB times in
// microseconds and a refresh rate (0 means as fast as possible).
func parameters(breakMicros, mabMicros, rate int) []byte {
	brk := clamp(int(float64(breakMicros)/breakUnit+0.5), minBreak, maxBreak)
	mab := clamp(int(float64(mabMicros)/breakUnit+0.5), minMAB, maxMAB)
	rate = clamp(rate, 0, maxRate)
	// User configuration size (LSB, MSB) is zero.
	return []byte{0x00, 0x00, byte(brk), byte(mab), byte(rate)}
}

func clamp(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
