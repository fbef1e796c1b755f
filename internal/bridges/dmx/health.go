package dmx

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dmx/internal/engine"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/mqtt"
)

// defaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const defaultHealthInterval = 30 * time.Second

// HealthReporter manages periodic health status reporting.
// Each tick publishes a retained health message and, when telemetry is
// configured, writes an engine sample.
type HealthReporter struct {
	version   string
	universe  int
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	engine    StatsSource
	telemetry Telemetry
	topics    mqtt.Topics

	// lastFrameErrors is the frame error count at the previous tick.
	lastFrameErrors uint64
	statusMu        sync.Mutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// StatsSource provides engine statistics.
type StatsSource interface {
	Stats() engine.Stats
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Version is the bridge software version.
	Version string

	// Universe is reported in health messages and telemetry tags.
	Universe int

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Engine provides the statistics carried by each message.
	Engine StatsSource

	// Telemetry is optional.
	Telemetry Telemetry
}

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		version:   cfg.Version,
		universe:  cfg.Universe,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		engine:    cfg.Engine,
		telemetry: cfg.Telemetry,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
// Call Stop to shut down.
//
// Parameters:
//   - ctx: Context for cancellation (will stop reporting when cancelled)
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown, nothing we can do if it fails
		h.publishStatus(HealthStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

// tick publishes health and writes one telemetry sample.
func (h *HealthReporter) tick() {
	status, reason := h.determineStatus()

	h.statusMu.Lock()
	if h.engine != nil {
		h.lastFrameErrors = h.engine.Stats().FrameErrors
	}
	h.statusMu.Unlock()

	if err := h.publishStatus(status, reason); err != nil {
		h.logError("failed to publish health", err)
	}
	h.writeSample()
}

// determineStatus evaluates the current bridge status. Frame errors since
// the previous tick degrade it; a stopped engine makes it unhealthy.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.engine == nil {
		return HealthUnhealthy, "no engine"
	}
	stats := h.engine.Stats()
	if !stats.Running {
		return HealthUnhealthy, "engine not running"
	}

	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	h.statusMu.Lock()
	last := h.lastFrameErrors
	h.statusMu.Unlock()
	if stats.FrameErrors > last {
		return HealthDegraded, "output frame errors"
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	var stats engine.Stats
	if h.engine != nil {
		stats = h.engine.Stats()
	}

	msg := NewHealthMessage(h.version, h.universe, status, stats, h.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.topics.Health(), payload, 1, true)
}

// writeSample records the engine snapshot in telemetry.
func (h *HealthReporter) writeSample() {
	if h.telemetry == nil || h.engine == nil {
		return
	}
	h.telemetry.WriteOutputSample(NewOutputSample(h.universe, h.engine.Stats()))
}

// NewOutputSample converts engine statistics to a telemetry sample.
func NewOutputSample(universe int, s engine.Stats) influxdb.OutputSample {
	return influxdb.OutputSample{
		Universe:      universe,
		TimingMode:    s.TimingMode.String(),
		Running:       s.Running,
		FramesSent:    s.FramesSent,
		FrameErrors:   s.FrameErrors,
		RDMSent:       s.RDMSent,
		SendFailures:  s.SendFailures,
		Timeouts:      s.Timeouts,
		Responses:     s.ResponsesReceived,
		Broadcasts:    s.BroadcastsSent,
		BranchHits:    s.BranchHits,
		Collisions:    s.Collisions,
		CallbackPanic: s.CallbackPanics,
		QueueLength:   s.QueueLength,
		FramePeriodMS: float64(s.FramePeriod) / float64(time.Millisecond),
		Timestamp:     time.Now().UTC(),
	}
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
