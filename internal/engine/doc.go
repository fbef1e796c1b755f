// Package engine drives a DMX512 line and interleaves RDM transactions on it.
//
// A single worker goroutine owns the hardware. Each cycle it checks for
// shutdown, snapshots the output buffer and then either transmits the
// snapshot as a DMX frame or dispatches the request at the head of the
// RDM queue. It finally sleeps out the rest of the frame period.
//
// # Frame Cycle
//
//	TermCheck -> Snapshot -> QueuePeek -> Break -> MAB -> Payload -> FrameSleep
//
// A failed break or mark-after-break skips the payload of that cycle only.
// An RDM cycle is chosen when the queue is non-empty and the last DMX frame
// went out less than Config.RDMGate ago, so the line never goes longer than
// the gate without a data frame.
//
// # Timing
//
// On Start the engine measures how long a 1 ms sleep really takes. If the
// platform overshoots by more than Config.GranularityLimit it runs in
// TimingBad mode and busy-waits the tail of every frame. A later probe that
// comes in under the limit promotes it to TimingGood. There is no downgrade.
//
// # RDM Transactions
//
// Every request admitted to the queue is resolved exactly once: through its
// own Callback, or through the discovery slot it was admitted under. Stop
// resolves everything still queued as OutcomeSendFailure, in order.
//
// Discovery admission (MuteDevice, UnMuteAll, Branch) is refused while an
// operation of the same kind is outstanding. A branch probe that draws no
// reply or a collision is not delivered unless
// Config.SurfaceUnresolvedDiscovery is set; the slot is released either way.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Callbacks run on the
// worker goroutine and delay the next frame while they execute, so they
// should hand work off rather than block.
package engine
