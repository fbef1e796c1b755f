package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this service.
const (
	MeasurementOutput    = "dmx_output"
	MeasurementDiscovery = "rdm_discovery"
)

// OutputSample is one telemetry snapshot of a universe's output engine.
// Counters are cumulative since the engine started.
type OutputSample struct {
	Universe      int
	TimingMode    string
	Running       bool
	FramesSent    uint64
	FrameErrors   uint64
	RDMSent       uint64
	SendFailures  uint64
	Timeouts      uint64
	Responses     uint64
	Broadcasts    uint64
	BranchHits    uint64
	Collisions    uint64
	CallbackPanic uint64
	QueueLength   int
	FramePeriodMS float64
	Timestamp     time.Time
}

// WriteOutputSample records an engine snapshot in the dmx_output measurement.
// The write is non-blocking; nothing is written while disconnected.
func (c *Client) WriteOutputSample(s OutputSample) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(outputPoint(s))
}

func outputPoint(s OutputSample) *write.Point {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementOutput,
		map[string]string{
			"universe":    strconv.Itoa(s.Universe),
			"timing_mode": s.TimingMode,
		},
		map[string]interface{}{
			"running":         s.Running,
			"frames_sent":     s.FramesSent,
			"frame_errors":    s.FrameErrors,
			"rdm_sent":        s.RDMSent,
			"send_failures":   s.SendFailures,
			"timeouts":        s.Timeouts,
			"responses":       s.Responses,
			"broadcasts":      s.Broadcasts,
			"branch_hits":     s.BranchHits,
			"collisions":      s.Collisions,
			"callback_panics": s.CallbackPanic,
			"queue_length":    s.QueueLength,
			"frame_period_ms": s.FramePeriodMS,
		},
		ts,
	)
}

// WriteDiscoveryEvent records one discovery result, e.g. a responder found
// by a branch probe ("found") or confirmed muted ("muted").
func (c *Client) WriteDiscoveryEvent(universe int, uid, event string) {
	if !c.IsConnected() {
		return
	}

	c.writer.WritePoint(write.NewPoint(
		MeasurementDiscovery,
		map[string]string{
			"universe": strconv.Itoa(universe),
			"event":    event,
		},
		map[string]interface{}{
			"uid": uid,
		},
		time.Now(),
	))
}
