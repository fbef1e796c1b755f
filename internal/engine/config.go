package engine

import (
	"math"
	"time"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Default engine timing values.
const (
	// DefaultFrequency is the DMX refresh rate in frames per second.
	DefaultFrequency = 30

	// MaxFrequency is the highest refresh rate a full 512 slot universe allows.
	MaxFrequency = 44

	// DefaultBreakTime is how long the line is held in break.
	DefaultBreakTime = 110 * time.Microsecond

	// DefaultMABTime is the mark-after-break duration.
	DefaultMABTime = 16 * time.Microsecond

	// DefaultBranchSettle is the wait between a branch probe and its read.
	DefaultBranchSettle = 1400 * time.Microsecond

	// DefaultUnicastSettle is the wait between a unicast request and its
	// read, sized for a full-length reply.
	DefaultUnicastSettle = 31 * time.Millisecond

	// DefaultRDMGate is the age of the last DMX frame beyond which the
	// engine sends a data frame before serving more RDM.
	DefaultRDMGate = 500 * time.Millisecond

	// DefaultGranularityLimit is the longest acceptable 1 ms sleep.
	DefaultGranularityLimit = 3 * time.Millisecond
)

// DefaultControllerUID is the UID the engine uses as the source of its
// own requests when none is configured.
var DefaultControllerUID = rdm.NewUID(0x7a70, 0x12345678)

// Config holds engine settings.
//
// Zero durations and a zero frequency are replaced by their defaults in New.
type Config struct {
	// Frequency is the refresh rate in frames per second.
	Frequency int

	// ControllerUID is the source UID for requests built by the engine and
	// for caller requests that leave Source unset.
	ControllerUID rdm.UID

	BreakTime        time.Duration
	MABTime          time.Duration
	BranchSettle     time.Duration
	UnicastSettle    time.Duration
	RDMGate          time.Duration
	GranularityLimit time.Duration

	// SurfaceUnresolvedDiscovery delivers OutcomeUnresolved to the branch
	// slot when a probe draws no reply or a collision.
	SurfaceUnresolvedDiscovery bool

	// Logger is optional.
	Logger Logger
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Frequency:        DefaultFrequency,
		ControllerUID:    DefaultControllerUID,
		BreakTime:        DefaultBreakTime,
		MABTime:          DefaultMABTime,
		BranchSettle:     DefaultBranchSettle,
		UnicastSettle:    DefaultUnicastSettle,
		RDMGate:          DefaultRDMGate,
		GranularityLimit: DefaultGranularityLimit,
	}
}

// FramePeriod returns the frame period rounded to the nearest millisecond.
func (c Config) FramePeriod() time.Duration {
	freq := c.Frequency
	if freq <= 0 {
		freq = DefaultFrequency
	}
	ms := math.Floor(1000/float64(freq) + 0.5)
	return time.Duration(ms) * time.Millisecond
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Frequency <= 0 {
		c.Frequency = d.Frequency
	}
	if c.ControllerUID == (rdm.UID{}) {
		c.ControllerUID = d.ControllerUID
	}
	if c.BreakTime <= 0 {
		c.BreakTime = d.BreakTime
	}
	if c.MABTime <= 0 {
		c.MABTime = d.MABTime
	}
	if c.BranchSettle <= 0 {
		c.BranchSettle = d.BranchSettle
	}
	if c.UnicastSettle <= 0 {
		c.UnicastSettle = d.UnicastSettle
	}
	if c.RDMGate <= 0 {
		c.RDMGate = d.RDMGate
	}
	if c.GranularityLimit <= 0 {
		c.GranularityLimit = d.GranularityLimit
	}
	return c
}
