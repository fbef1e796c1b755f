package dmx

import (
	"errors"
	"fmt"
)

// UniverseSize is the number of channel slots in one DMX512 universe.
const UniverseSize = 512

// ErrChannelOutOfRange is returned when a channel index lies outside the universe.
var ErrChannelOutOfRange = errors.New("dmx: channel out of range")

// Buffer is one universe of channel levels.
//
// size is the number of slots actually transmitted. Writing a channel past
// the current size grows it, so a producer that only drives channels 1-24
// keeps frames short.
type Buffer struct {
	levels [UniverseSize]byte
	size   int
}

// NewBuffer returns a zeroed buffer transmitting n slots.
// n is clamped to [0, UniverseSize].
func NewBuffer(n int) Buffer {
	return Buffer{size: clampSize(n)}
}

// BufferFromBytes builds a buffer from raw levels. Bytes beyond the
// universe are ignored.
func BufferFromBytes(data []byte) Buffer {
	var b Buffer
	b.size = copy(b.levels[:], data)
	return b
}

// Set writes a single channel level.
func (b *Buffer) Set(channel int, level byte) error {
	if channel < 0 || channel >= UniverseSize {
		return fmt.Errorf("%w: %d", ErrChannelOutOfRange, channel)
	}
	b.levels[channel] = level
	if channel >= b.size {
		b.size = channel + 1
	}
	return nil
}

// SetRange writes consecutive levels starting at channel start.
// Nothing is written if the range does not fit.
func (b *Buffer) SetRange(start int, levels []byte) error {
	if start < 0 || start+len(levels) > UniverseSize {
		return fmt.Errorf("%w: %d+%d", ErrChannelOutOfRange, start, len(levels))
	}
	copy(b.levels[start:], levels)
	if end := start + len(levels); end > b.size {
		b.size = end
	}
	return nil
}

// Get returns a channel level; channels outside the universe read as zero.
func (b Buffer) Get(channel int) byte {
	if channel < 0 || channel >= UniverseSize {
		return 0
	}
	return b.levels[channel]
}

// Size returns the number of slots transmitted.
func (b Buffer) Size() int {
	return b.size
}

// Data returns a copy of the transmitted slots.
func (b Buffer) Data() []byte {
	out := make([]byte, b.size)
	copy(out, b.levels[:b.size])
	return out
}

// Blackout zeroes every level but keeps the frame size.
func (b *Buffer) Blackout() {
	b.levels = [UniverseSize]byte{}
}

// Reset zeroes every level and the frame size.
func (b *Buffer) Reset() {
	*b = Buffer{}
}

// Equal reports whether two buffers transmit the same frame.
func (b Buffer) Equal(other Buffer) bool {
	return b.size == other.size && b.levels == other.levels
}

func clampSize(n int) int {
	switch {
	case n < 0:
		return 0
	case n > UniverseSize:
		return UniverseSize
	default:
		return n
	}
}
