package engine

import (
	"bytes"
	"fmt"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// readBufferSize bounds a single read after a request. It is large enough
// to tell a lone branch reply from a collision and to hold any framed reply.
const readBufferSize = 258

// dispatch packs, writes and, where a reply is expected, reads back one
// request. It never touches the queue or the discovery slots.
func (e *Engine) dispatch(p *pending) Result {
	req := p.req
	res := Result{Request: req}

	data, err := rdm.Pack(req)
	if err != nil {
		e.logError("rdm request dropped", err)
		res.Outcome = OutcomeSendFailure
		res.Err = fmt.Errorf("%w: %w", ErrSerializeFailed, err)
		return res
	}

	if err := e.widget.Write(data); err != nil {
		res.Outcome = OutcomeSendFailure
		res.Err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		return res
	}
	e.counters.rdmSent.Add(1)

	// DUB probes are addressed to all devices but are the one broadcast
	// that expects a reply.
	switch {
	case req.IsDUB():
		return e.readBranchReply(res)
	case req.IsBroadcast():
		res.Outcome = OutcomeBroadcastSent
		return res
	default:
		return e.readUnicastReply(res)
	}
}

// readBranchReply classifies what came back after a branch probe.
func (e *Engine) readBranchReply(res Result) Result {
	e.clk.sleep(e.cfg.BranchSettle)

	buf := make([]byte, readBufferSize)
	n, err := e.widget.Read(buf)

	switch {
	case err != nil || n <= 0:
		res.Outcome = OutcomeUnresolved
		res.Err = withCause(ErrNoBranchReply, err)
	case n > rdm.DUBResponseLength:
		e.counters.collisions.Add(1)
		e.logDebug("branch probe collision", "bytes", n, "request", res.Request.String())
		res.Outcome = OutcomeUnresolved
		res.Data = bytes.Clone(buf[:n])
		res.Err = ErrCollision
	default:
		res.Outcome = OutcomeBranchHit
		res.Data = bytes.Clone(buf[:n])
	}
	return res
}

// readUnicastReply waits for and decodes the reply to a unicast request.
// Bytes that do not decode still count as a response; the decode error is
// carried in Result.Err.
func (e *Engine) readUnicastReply(res Result) Result {
	e.clk.sleep(e.cfg.UnicastSettle)

	buf := make([]byte, readBufferSize)
	n, err := e.widget.Read(buf)
	if err != nil || n <= 0 {
		res.Outcome = OutcomeTimeout
		res.Err = withCause(ErrNoResponse, err)
		return res
	}

	res.Outcome = OutcomeResponseReceived
	res.Data = bytes.Clone(buf[:n])

	reply, err := rdm.ParseResponse(res.Data)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		return res
	}

	res.Reply = reply
	res.Confirmed = reply.Source == res.Request.Destination
	if err := reply.Matches(res.Request); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return res
}

// route hands a result to its single recipient: the request's own callback,
// or the discovery slot it was admitted under. The slot is always cleared.
func (e *Engine) route(p *pending, res Result) {
	e.counters.countOutcome(res.Outcome)

	e.inCallback.Store(true)
	defer e.inCallback.Store(false)

	if p.cb != nil {
		e.invoke(p.cb, res)
		return
	}
	if p.slot == slotNone {
		return
	}

	cont := e.queue.takeSlot(p.slot)
	if res.Outcome == OutcomeUnresolved && !e.cfg.SurfaceUnresolvedDiscovery {
		e.logDebug("discovery slot released without result", "slot", p.slot.String(), "reason", res.Err)
		return
	}
	e.invoke(cont, res)
}

func withCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
