package engine

import (
	"sync/atomic"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Outcome classifies how an RDM transaction ended.
type Outcome int

// Transaction outcomes.
const (
	// OutcomeSendFailure means the request never reached the line:
	// packing failed, the widget write failed, or the engine shut down.
	OutcomeSendFailure Outcome = iota + 1

	// OutcomeTimeout means nothing was read inside the unicast settle window.
	OutcomeTimeout

	// OutcomeBroadcastSent means a broadcast request was written. No reply
	// is expected.
	OutcomeBroadcastSent

	// OutcomeResponseReceived means bytes came back after a unicast request.
	// Result.Reply is set when they decoded as a reply to the request.
	OutcomeResponseReceived

	// OutcomeBranchHit means exactly one device answered a branch probe.
	// Result.Data holds the encoded reply.
	OutcomeBranchHit

	// OutcomeUnresolved means a branch probe drew no reply or a collision.
	OutcomeUnresolved
)

// String returns the snake_case outcome name used in logs and messages.
func (o Outcome) String() string {
	switch o {
	case OutcomeSendFailure:
		return "send_failure"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeBroadcastSent:
		return "broadcast_sent"
	case OutcomeResponseReceived:
		return "response_received"
	case OutcomeBranchHit:
		return "branch_hit"
	case OutcomeUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is delivered to a Callback once per transaction.
type Result struct {
	Outcome Outcome

	// Request is the request as transmitted, with its transaction number.
	Request *rdm.Request

	// Reply is the decoded response for OutcomeResponseReceived.
	Reply *rdm.Response

	// Data holds the raw bytes read back, if any.
	Data []byte

	// Confirmed is true when Reply came from the request's destination.
	Confirmed bool

	// Err explains failures and decode problems.
	Err error
}

// OK reports whether the transaction did what was asked of it.
func (r Result) OK() bool {
	switch r.Outcome {
	case OutcomeBroadcastSent, OutcomeBranchHit:
		return true
	case OutcomeResponseReceived:
		return r.Err == nil && r.Confirmed
	default:
		return false
	}
}

// Callback receives the result of one transaction.
type Callback func(Result)

// continuation is a callback that can be taken at most once.
type continuation struct {
	fn    Callback
	taken atomic.Bool
}

func newContinuation(fn Callback) *continuation {
	if fn == nil {
		return nil
	}
	return &continuation{fn: fn}
}

// take returns the callback on the first call and nil on every later one.
func (c *continuation) take() Callback {
	if c == nil || !c.taken.CompareAndSwap(false, true) {
		return nil
	}
	return c.fn
}
