package dmx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	dmxbuf "github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/engine"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
	"github.com/nerrad567/gray-logic-dmx/internal/responder"
)

// BridgeID identifies this bridge in health messages.
const BridgeID = "dmx"

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// defaultRequestTimeout bounds how long SendRDM and Discover wait for
	// the engine.
	defaultRequestTimeout = 2 * time.Second

	// storeTimeout bounds each responder store write.
	storeTimeout = 5 * time.Second

	// recordQueueSize is the backlog of results waiting to be persisted.
	recordQueueSize = 64
)

// Bridge connects MQTT (and the HTTP API) to one universe's output engine.
// It handles:
//   - Merging level commands into the universe and handing frames to the engine
//   - Translating RDM requests and publishing their results
//   - Running discovery operations and persisting what they find
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	universe       int
	mqtt           MQTTClient
	engine         Engine
	store          ResponderStore
	telemetry      Telemetry
	health         *HealthReporter
	topics         mqtt.Topics
	requestTimeout time.Duration

	// levels is the bridge's copy of the universe. Commands are merged into
	// it and the whole buffer is handed to the engine.
	levels   dmxbuf.Buffer
	levelsMu sync.Mutex

	// records carries engine results to recordLoop so the engine's worker
	// never waits on the database.
	records chan record

	// Shutdown coordination. stopMu orders handler goroutine starts
	// before Stop's wait.
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopMu    sync.RWMutex
	stopped   bool
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Engine is the subset of *engine.Engine the bridge drives.
type Engine interface {
	WriteDMX(buf dmxbuf.Buffer)
	SendRDMRequest(req *rdm.Request, cb engine.Callback)
	MuteDevice(target rdm.UID, cb engine.Callback) bool
	UnMuteAll(cb engine.Callback) bool
	Branch(lower, upper rdm.UID, cb engine.Callback) bool
	Stats() engine.Stats
	UID() rdm.UID
}

// ResponderStore persists responders seen on the line.
// *responder.SQLiteRepository satisfies it. Optional.
type ResponderStore interface {
	Upsert(ctx context.Context, uid rdm.UID, universe int, source responder.Source, seen time.Time) error
	SetMuted(ctx context.Context, uid rdm.UID, muted bool) error
	ClearMuted(ctx context.Context, universe int) (int64, error)
}

// Telemetry receives engine samples and discovery events.
// *influxdb.Client satisfies it. Optional.
type Telemetry interface {
	WriteOutputSample(s influxdb.OutputSample)
	WriteDiscoveryEvent(universe int, uid, event string)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Compile-time interface checks.
var (
	_ Engine         = (*engine.Engine)(nil)
	_ MQTTClient     = (*mqtt.Client)(nil)
	_ ResponderStore = (*responder.SQLiteRepository)(nil)
	_ Telemetry      = (*influxdb.Client)(nil)
)

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Universe is the universe number this bridge drives (1-based).
	Universe int

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Engine is the output engine for Universe.
	Engine Engine

	// Store is optional. If nil, discovery results are not persisted.
	Store ResponderStore

	// Telemetry is optional. If nil, no samples are written.
	Telemetry Telemetry

	// Version is reported in health messages.
	Version string

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	// RequestTimeout bounds waits for RDM and discovery results.
	// Default: 2 seconds.
	RequestTimeout time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.Universe < 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownUniverse, opts.Universe)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		universe:       opts.Universe,
		mqtt:           opts.MQTTClient,
		engine:         opts.Engine,
		store:          opts.Store,     // May be nil (optional)
		telemetry:      opts.Telemetry, // May be nil (optional)
		requestTimeout: timeout,
		records:        make(chan record, recordQueueSize),
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
		logger:         opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Universe:  opts.Universe,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Engine:    opts.Engine,
		Telemetry: opts.Telemetry,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command, request and discovery topics and starts
// health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.wg.Add(1)
	go b.recordLoop()

	subscriptions := []struct {
		name  string
		topic string
	}{
		{"commands", b.topics.AllCommands()},
		{"requests", b.topics.AllRequests()},
		{"discovery", b.topics.DiscoveryCommand()},
	}
	for _, sub := range subscriptions {
		if err := b.mqtt.Subscribe(sub.topic, 1, b.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribe to %s: %w", sub.name, err)
		}
		b.logInfo("subscribed to "+sub.name, "topic", sub.topic)
	}

	b.health.Start(ctx)

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"universe", b.universe,
		"controller_uid", b.engine.UID().String())

	return nil
}

// Stop gracefully shuts down the bridge. Requests still waiting on the
// engine return ErrStopped.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopMu.Lock()
		b.stopped = true
		close(b.done)
		b.stopMu.Unlock()

		// Cancel bridge context to release waiting requests
		b.ctxCancel()

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// Universe returns the universe number this bridge drives.
func (b *Bridge) Universe() int {
	return b.universe
}

// Stats returns the engine's current statistics.
func (b *Bridge) Stats() engine.Stats {
	return b.engine.Stats()
}

// Health returns the status the next health message would report.
func (b *Bridge) Health() (HealthStatus, string) {
	return b.health.determineStatus()
}

// Levels returns a copy of the universe as last handed to the engine.
func (b *Bridge) Levels() dmxbuf.Buffer {
	b.levelsMu.Lock()
	defer b.levelsMu.Unlock()
	return b.levels
}

// SetLevels merges msg into the universe and hands the result to the
// engine. Nothing changes if msg is invalid.
func (b *Bridge) SetLevels(msg LevelsMessage) error {
	b.levelsMu.Lock()
	if err := msg.Apply(&b.levels); err != nil {
		b.levelsMu.Unlock()
		return err
	}
	frame := b.levels
	b.levelsMu.Unlock()

	b.engine.WriteDMX(frame)
	return nil
}

// SendRDM sends one request and waits for its result, ctx cancellation,
// the request timeout or Stop, whichever comes first.
func (b *Bridge) SendRDM(ctx context.Context, msg RDMRequestMessage) RDMResponseMessage {
	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}

	req, err := msg.Request(b.engine.UID())
	if err != nil {
		return NewRDMErrorResponse(msg.RequestID, ErrCodeInvalidParameters, err)
	}

	results := make(chan engine.Result, 1)
	b.engine.SendRDMRequest(req, func(res engine.Result) {
		if res.OK() && res.Reply != nil {
			b.enqueueRecord(record{op: opResponse, target: res.Reply.Source, res: res})
		}
		results <- res
	})

	res, err := b.await(ctx, results)
	if err != nil {
		code := ErrCodeTimeout
		if errors.Is(err, ErrStopped) {
			code = ErrCodeBridgeError
		}
		return NewRDMErrorResponse(msg.RequestID, code, err)
	}
	return NewRDMResponse(msg.RequestID, res)
}

// Discover runs one discovery operation and waits for its result.
// A busy slot yields DiscoveryRejected without waiting.
func (b *Bridge) Discover(ctx context.Context, cmd DiscoveryCommand) DiscoveryResult {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	out := DiscoveryResult{ID: cmd.ID, Op: cmd.Op}

	results := make(chan engine.Result, 1)
	var target rdm.UID
	var admitted bool

	switch cmd.Op {
	case OpMute:
		if cmd.Target == nil || cmd.Target.IsBroadcast() {
			return failedDiscovery(out, fmt.Errorf("%w: mute needs a unicast target", ErrInvalidMessage))
		}
		target = *cmd.Target
		out.UID = &target
		admitted = b.engine.MuteDevice(target, b.discoveryCallback(OpMute, target, results))
	case OpUnMute:
		target = rdm.AllDevices()
		admitted = b.engine.UnMuteAll(b.discoveryCallback(OpUnMute, target, results))
	case OpBranch:
		lower, upper, err := cmd.branchRange()
		if err != nil {
			return failedDiscovery(out, err)
		}
		admitted = b.engine.Branch(lower, upper, b.discoveryCallback(OpBranch, target, results))
	default:
		return failedDiscovery(out, fmt.Errorf("%w: %q", ErrUnknownOperation, cmd.Op))
	}

	if !admitted {
		out.Timestamp = time.Now().UTC()
		out.Status = DiscoveryRejected
		out.Error = &ResponseError{Code: ErrCodeRejected, Message: cmd.Op + " already outstanding"}
		return out
	}

	res, err := b.await(ctx, results)
	out.Timestamp = time.Now().UTC()
	if err != nil {
		out.Status = DiscoveryTimeout
		out.Error = &ResponseError{Code: ErrCodeTimeout, Message: err.Error()}
		return out
	}

	out.Status = DiscoveryCompleted
	out.Outcome = res.Outcome.String()
	out.Success = res.OK()
	out.Confirmed = res.Confirmed
	if res.Outcome == engine.OutcomeBranchHit {
		if uid, derr := rdm.DecodeDUBResponse(res.Data); derr == nil {
			out.UID = &uid
		}
	}
	if !out.Success {
		out.Error = resultError(res)
	}
	return out
}

func failedDiscovery(out DiscoveryResult, err error) DiscoveryResult {
	out.Timestamp = time.Now().UTC()
	out.Status = DiscoveryFailed
	out.Error = &ResponseError{Code: ErrCodeInvalidParameters, Message: err.Error()}
	return out
}

// discoveryCallback records the result for persistence and hands it to
// the waiting caller. It runs on the engine's worker and never blocks.
func (b *Bridge) discoveryCallback(op string, target rdm.UID, results chan<- engine.Result) engine.Callback {
	return func(res engine.Result) {
		b.enqueueRecord(record{op: op, target: target, res: res})
		results <- res
	}
}

// await waits for a single engine result.
func (b *Bridge) await(ctx context.Context, results <-chan engine.Result) (engine.Result, error) {
	timer := time.NewTimer(b.requestTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res, nil
	case <-timer.C:
		return engine.Result{}, fmt.Errorf("no result after %s", b.requestTimeout)
	case <-ctx.Done():
		return engine.Result{}, ctx.Err()
	case <-b.done:
		return engine.Result{}, ErrStopped
	}
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
// Requests and discovery commands wait on the engine, so they run on
// their own goroutine to keep the MQTT client's router free.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return fmt.Errorf("%w: topic %s", ErrInvalidMessage, topic)
	}

	switch parts[1] {
	case "command":
		return b.handleCommand(mqtt.LastSegment(topic), payload)
	case "request":
		var req RDMRequestMessage
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		if req.RequestID == "" {
			req.RequestID = mqtt.LastSegment(topic)
		}
		b.goHandle(func() { b.handleRequest(req) })
		return nil
	case "discovery":
		var cmd DiscoveryCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		b.goHandle(func() { b.handleDiscovery(cmd) })
		return nil
	default:
		return fmt.Errorf("%w: message type %s", ErrInvalidMessage, parts[1])
	}
}

// goHandle runs fn on a tracked goroutine unless the bridge is stopping.
func (b *Bridge) goHandle(fn func()) {
	b.stopMu.RLock()
	defer b.stopMu.RUnlock()
	if b.stopped {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// handleCommand applies a level command addressed to this universe.
func (b *Bridge) handleCommand(universe string, payload []byte) error {
	n, err := strconv.Atoi(universe)
	if err != nil || n != b.universe {
		return fmt.Errorf("%w: %s", ErrUnknownUniverse, universe)
	}

	var msg LevelsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	if err := b.SetLevels(msg); err != nil {
		return err
	}

	b.logDebug("levels applied",
		"id", msg.ID,
		"values", len(msg.Values),
		"channels", len(msg.Channels),
		"blackout", msg.Blackout)
	return nil
}

// handleRequest sends an RDM request and publishes the response.
func (b *Bridge) handleRequest(req RDMRequestMessage) {
	b.logInfo("received rdm request",
		"request_id", req.RequestID,
		"destination", req.Destination.String(),
		"command_class", req.CommandClass,
		"pid", req.PID)

	resp := b.SendRDM(b.ctx, req)
	b.publishJSON(b.topics.Response(resp.RequestID), resp)
}

// handleDiscovery runs a discovery command and publishes the result.
func (b *Bridge) handleDiscovery(cmd DiscoveryCommand) {
	b.logInfo("received discovery command", "id", cmd.ID, "op", cmd.Op)

	result := b.Discover(b.ctx, cmd)
	b.publishJSON(b.topics.DiscoveryResult(), result)
}

func (b *Bridge) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish message", err)
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
