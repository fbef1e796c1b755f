package engine

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Engine transmits one DMX universe and runs RDM transactions between frames.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Widget calls and callbacks happen on the worker goroutine only.
type Engine struct {
	cfg    Config
	widget Widget
	period time.Duration
	clk    clock
	timing *calibrator
	queue  *transactionQueue

	// Output buffer
	bufMu  sync.Mutex
	buffer dmx.Buffer

	// Stop flag, checked once per cycle
	stopMu   sync.Mutex
	stopping bool

	// Worker lifecycle
	runMu      sync.Mutex
	started    bool
	running    atomic.Bool
	done       chan struct{}
	inCallback atomic.Bool // set while route runs a callback

	lastFrame atomic.Int64 // UnixNano of the last successful DMX write
	counters  counters

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an engine for widget. Call Start to begin output.
func New(widget Widget, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	clk := systemClock()

	return &Engine{
		cfg:    cfg,
		widget: widget,
		period: cfg.FramePeriod(),
		clk:    clk,
		timing: newCalibrator(clk, cfg.GranularityLimit),
		queue:  newTransactionQueue(),
		buffer: dmx.NewBuffer(dmx.UniverseSize),
		done:   make(chan struct{}),
		logger: cfg.Logger,
	}
}

// Start prepares the widget, measures timer granularity and launches the
// worker goroutine.
//
// Cancelling ctx stops the worker the same way Stop does.
//
// Returns:
//   - error: ErrNoWidget, ErrAlreadyStarted, ErrStopped or ErrSetupFailed
func (e *Engine) Start(ctx context.Context) error {
	if e.widget == nil {
		return ErrNoWidget
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.isStopping() {
		return ErrStopped
	}
	if e.started {
		return ErrAlreadyStarted
	}

	if !e.widget.IsOpen() {
		if err := e.widget.SetupOutput(); err != nil {
			return fmt.Errorf("%w: %w", ErrSetupFailed, err)
		}
	}

	mode, measured := e.timing.calibrate()
	if mode == TimingBad {
		e.logWarn("timer granularity too coarse, busy-waiting frame tails",
			"measured", measured, "limit", e.cfg.GranularityLimit)
	} else {
		e.logInfo("timer granularity ok", "measured", measured)
	}

	e.started = true
	e.running.Store(true)
	go e.run(ctx)

	e.logInfo("dmx output started",
		"frequency", e.cfg.Frequency,
		"frame_period", e.period,
		"controller_uid", e.cfg.ControllerUID.String(),
		"timing_mode", mode.String())

	return nil
}

// Stop signals the worker and waits for it to exit. Every request still
// queued is resolved as OutcomeSendFailure in admission order. If the engine
// was never started the queue is drained on the calling goroutine.
//
// Called from an RDM callback, Stop only signals: the worker sees the flag
// at its next cycle and drains once the callback returns.
//
// Safe to call multiple times.
func (e *Engine) Stop() error {
	e.stopMu.Lock()
	first := !e.stopping
	e.stopping = true
	e.stopMu.Unlock()

	e.runMu.Lock()
	started := e.started
	e.runMu.Unlock()

	if first && !started {
		e.drain()
		close(e.done)
	}

	if e.inCallback.Load() {
		return nil
	}
	<-e.done

	if first {
		e.logInfo("dmx output stopped", "frames_sent", e.counters.framesSent.Load())
	}
	return nil
}

// WriteDMX replaces the output buffer. The next DMX cycle transmits it.
func (e *Engine) WriteDMX(buf dmx.Buffer) {
	e.bufMu.Lock()
	e.buffer = buf
	e.bufMu.Unlock()
}

// Output returns a copy of the current output buffer.
func (e *Engine) Output() dmx.Buffer {
	return e.snapshot()
}

// SendRDMRequest queues req and arranges for cb to receive its result.
//
// The engine transmits a copy of req. A zero Source is replaced by the
// controller UID and the transaction number is assigned here. cb may be nil.
// After Stop, cb is called straight away with OutcomeSendFailure.
func (e *Engine) SendRDMRequest(req *rdm.Request, cb Callback) {
	cont := newContinuation(cb)

	if req == nil {
		e.counters.sendFailures.Add(1)
		e.invoke(cont, Result{Outcome: OutcomeSendFailure, Err: ErrNilRequest})
		return
	}

	r := *req
	r.Data = bytes.Clone(req.Data)
	if r.Source == (rdm.UID{}) {
		r.Source = e.cfg.ControllerUID
	}
	if r.PortID == 0 {
		r.PortID = rdm.DefaultPortID
	}

	if !e.queue.push(&r, cont) {
		e.counters.sendFailures.Add(1)
		e.invoke(cont, Result{Outcome: OutcomeSendFailure, Request: &r, Err: ErrShutdown})
	}
}

// UID returns the controller UID used as the source of engine requests.
func (e *Engine) UID() rdm.UID {
	return e.cfg.ControllerUID
}

// TimingMode returns the current timing mode.
func (e *Engine) TimingMode() TimingMode {
	return e.timing.Mode()
}

// FramePeriod returns the configured frame period.
func (e *Engine) FramePeriod() time.Duration {
	return e.period
}

// QueueLen returns the number of requests waiting for dispatch.
func (e *Engine) QueueLen() int {
	return e.queue.length()
}

// IsRunning reports whether the worker goroutine is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// SetLogger sets the logger for this engine.
func (e *Engine) SetLogger(logger Logger) {
	e.loggerMu.Lock()
	e.logger = logger
	e.loggerMu.Unlock()
}

// run is the worker loop.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer e.running.Store(false)

	for {
		cycleStart := e.clk.now()

		if e.shouldStop(ctx) {
			e.drain()
			return
		}

		frame := e.snapshot()
		head := e.queue.peek()

		e.cycle(frame, head, e.isRDMCycle(head, cycleStart))
		e.frameSleep(cycleStart)
	}
}

// isRDMCycle reports whether this cycle serves the queue. RDM runs only
// while the last DMX frame is younger than the gate.
func (e *Engine) isRDMCycle(head *pending, now time.Time) bool {
	return head != nil && now.Sub(e.lastDataFrame()) < e.cfg.RDMGate
}

// cycle runs break, mark-after-break and the payload of one frame.
// A failed break or MAB skips the payload; the queued request stays put.
func (e *Engine) cycle(frame dmx.Buffer, head *pending, rdmCycle bool) {
	good := e.timing.Mode() == TimingGood

	if err := e.widget.SetBreak(true); err != nil {
		e.frameStall("break", err)
		return
	}
	if good {
		e.clk.sleep(e.cfg.BreakTime)
	}

	if err := e.widget.SetBreak(false); err != nil {
		e.frameStall("mark after break", err)
		return
	}
	if good {
		e.clk.sleep(e.cfg.MABTime)
	}

	if rdmCycle {
		res := e.dispatch(head)
		e.queue.pop()
		e.route(head, res)
		return
	}

	if err := e.widget.WriteFrame(frame); err != nil {
		e.frameStall("frame write", err)
		return
	}
	e.lastFrame.Store(e.clk.now().UnixNano())
	e.counters.framesSent.Add(1)
}

// frameSleep waits out the remainder of the frame that began at start.
func (e *Engine) frameSleep(start time.Time) {
	if e.timing.Mode() == TimingGood {
		for e.clk.since(start) < e.period {
			e.clk.sleep(probeInterval)
		}
		return
	}

	if e.timing.observe(e.timing.probe()) {
		e.logInfo("timer granularity improved, switching to good timing mode")
	}
	for e.clk.since(start) < e.period {
		runtime.Gosched()
	}
}

func (e *Engine) frameStall(phase string, err error) {
	e.counters.frameErrors.Add(1)
	e.logDebug("frame skipped", "phase", phase, "error", err)
}

func (e *Engine) snapshot() dmx.Buffer {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()
	return e.buffer
}

func (e *Engine) shouldStop(ctx context.Context) bool {
	if e.isStopping() {
		return true
	}
	return ctx.Err() != nil
}

func (e *Engine) isStopping() bool {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	return e.stopping
}

func (e *Engine) lastDataFrame() time.Time {
	ns := e.lastFrame.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// drain closes the queue and fails everything left in it, oldest first.
func (e *Engine) drain() {
	items := e.queue.close()
	for _, p := range items {
		e.counters.drained.Add(1)
		e.route(p, Result{Outcome: OutcomeSendFailure, Request: p.req, Err: ErrShutdown})
	}
	if len(items) > 0 {
		e.logInfo("drained rdm queue on shutdown", "count", len(items))
	}
}

// invoke runs a continuation at most once, recovering callback panics.
func (e *Engine) invoke(cont *continuation, res Result) {
	fn := cont.take()
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.counters.callbackPanics.Add(1)
			e.logError("rdm callback panic", fmt.Errorf("%v", r))
		}
	}()
	fn(res)
}

// logDebug logs a debug message if logger is set.
func (e *Engine) logDebug(msg string, keysAndValues ...any) {
	e.loggerMu.RLock()
	logger := e.logger
	e.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if logger is set.
func (e *Engine) logInfo(msg string, keysAndValues ...any) {
	e.loggerMu.RLock()
	logger := e.logger
	e.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (e *Engine) logWarn(msg string, keysAndValues ...any) {
	e.loggerMu.RLock()
	logger := e.logger
	e.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (e *Engine) logError(msg string, err error) {
	e.loggerMu.RLock()
	logger := e.logger
	e.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
