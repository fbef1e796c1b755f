package engine

import (
	"sync/atomic"
	"time"
)

// Stats holds operational statistics.
type Stats struct {
	FramesSent  uint64
	FrameErrors uint64 // Break, MAB or frame write failures
	RDMSent     uint64 // Requests written to the line

	SendFailures      uint64
	Timeouts          uint64
	BroadcastsSent    uint64
	ResponsesReceived uint64
	BranchHits        uint64

	Collisions          uint64 // Branch probes answered by several devices
	UnresolvedDiscovery uint64 // Branch probes with no reply or a collision
	Drained             uint64 // Requests resolved during shutdown
	CallbackPanics      uint64

	QueueLength       int
	MuteOutstanding   bool
	UnMuteOutstanding bool
	BranchOutstanding bool

	TimingMode    TimingMode
	FramePeriod   time.Duration
	LastDataFrame time.Time
	Running       bool
}

// counters are the live atomics behind Stats.
type counters struct {
	framesSent        atomic.Uint64
	frameErrors       atomic.Uint64
	rdmSent           atomic.Uint64
	sendFailures      atomic.Uint64
	timeouts          atomic.Uint64
	broadcastsSent    atomic.Uint64
	responsesReceived atomic.Uint64
	branchHits        atomic.Uint64
	collisions        atomic.Uint64
	unresolved        atomic.Uint64
	drained           atomic.Uint64
	callbackPanics    atomic.Uint64
}

func (c *counters) countOutcome(o Outcome) {
	switch o {
	case OutcomeSendFailure:
		c.sendFailures.Add(1)
	case OutcomeTimeout:
		c.timeouts.Add(1)
	case OutcomeBroadcastSent:
		c.broadcastsSent.Add(1)
	case OutcomeResponseReceived:
		c.responsesReceived.Add(1)
	case OutcomeBranchHit:
		c.branchHits.Add(1)
	case OutcomeUnresolved:
		c.unresolved.Add(1)
	}
}

// Stats returns current operational statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		FramesSent:          e.counters.framesSent.Load(),
		FrameErrors:         e.counters.frameErrors.Load(),
		RDMSent:             e.counters.rdmSent.Load(),
		SendFailures:        e.counters.sendFailures.Load(),
		Timeouts:            e.counters.timeouts.Load(),
		BroadcastsSent:      e.counters.broadcastsSent.Load(),
		ResponsesReceived:   e.counters.responsesReceived.Load(),
		BranchHits:          e.counters.branchHits.Load(),
		Collisions:          e.counters.collisions.Load(),
		UnresolvedDiscovery: e.counters.unresolved.Load(),
		Drained:             e.counters.drained.Load(),
		CallbackPanics:      e.counters.callbackPanics.Load(),
		QueueLength:         e.queue.length(),
		MuteOutstanding:     e.queue.slotOccupied(slotMute),
		UnMuteOutstanding:   e.queue.slotOccupied(slotUnMute),
		BranchOutstanding:   e.queue.slotOccupied(slotBranch),
		TimingMode:          e.timing.Mode(),
		FramePeriod:         e.period,
		LastDataFrame:       e.lastDataFrame(),
		Running:             e.IsRunning(),
	}
}
