package engine

import (
	"sync/atomic"
	"time"
)

// probeInterval is the sleep used to measure timer granularity.
const probeInterval = time.Millisecond

// TimingMode describes how precisely the platform can sleep.
type TimingMode int32

// Timing modes.
const (
	TimingUnknown TimingMode = iota
	TimingGood
	TimingBad
)

// String returns the mode name.
func (m TimingMode) String() string {
	switch m {
	case TimingGood:
		return "good"
	case TimingBad:
		return "bad"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m TimingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// clock abstracts the time source so pacing can be tested.
type clock struct {
	now   func() time.Time
	sleep func(time.Duration)
}

func systemClock() clock {
	return clock{now: time.Now, sleep: time.Sleep}
}

func (c clock) since(t time.Time) time.Duration {
	return c.now().Sub(t)
}

// calibrator owns the timing mode of one engine.
type calibrator struct {
	clk   clock
	limit time.Duration
	mode  atomic.Int32
}

func newCalibrator(clk clock, limit time.Duration) *calibrator {
	return &calibrator{clk: clk, limit: limit}
}

// calibrate times one probe sleep and sets the mode. It returns the mode and
// the measured sleep. The measurement is compared in whole milliseconds, so a
// 3.9 ms probe still passes a 3 ms limit.
func (c *calibrator) calibrate() (TimingMode, time.Duration) {
	elapsed := c.probe()
	mode := TimingGood
	if elapsed.Truncate(time.Millisecond) > c.limit {
		mode = TimingBad
	}
	c.mode.Store(int32(mode))
	return mode, elapsed
}

// probe sleeps once for probeInterval and returns how long it really took.
func (c *calibrator) probe() time.Duration {
	start := c.clk.now()
	c.clk.sleep(probeInterval)
	return c.clk.since(start)
}

// observe promotes Bad to Good when a probe came in under the limit.
// It reports whether the mode changed.
func (c *calibrator) observe(elapsed time.Duration) bool {
	if elapsed >= c.limit {
		return false
	}
	return c.mode.CompareAndSwap(int32(TimingBad), int32(TimingGood))
}

func (c *calibrator) Mode() TimingMode {
	return TimingMode(c.mode.Load())
}
