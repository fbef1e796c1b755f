package engine

import "github.com/nerrad567/gray-logic-dmx/internal/rdm"

// slotKind names the discovery slot a queued request is bound to.
type slotKind uint8

const (
	slotNone slotKind = iota
	slotMute
	slotUnMute
	slotBranch
)

func (k slotKind) String() string {
	switch k {
	case slotMute:
		return "mute"
	case slotUnMute:
		return "unmute"
	case slotBranch:
		return "branch"
	default:
		return "none"
	}
}

// discoverySlots holds at most one outstanding operation per kind.
// It is guarded by the owning queue's mutex.
type discoverySlots struct {
	mute   *continuation
	unmute *continuation
	branch *continuation
}

func (s *discoverySlots) get(kind slotKind) **continuation {
	switch kind {
	case slotMute:
		return &s.mute
	case slotUnMute:
		return &s.unmute
	case slotBranch:
		return &s.branch
	default:
		return nil
	}
}

// occupied reports whether the slot holds an operation.
func (s *discoverySlots) occupied(kind slotKind) bool {
	p := s.get(kind)
	return p != nil && *p != nil
}

// fill stores cont in an empty slot. It reports false if the slot is busy.
func (s *discoverySlots) fill(kind slotKind, cont *continuation) bool {
	p := s.get(kind)
	if p == nil || *p != nil {
		return false
	}
	*p = cont
	return true
}

// clear empties the slot and returns what it held.
func (s *discoverySlots) clear(kind slotKind) *continuation {
	p := s.get(kind)
	if p == nil {
		return nil
	}
	cont := *p
	*p = nil
	return cont
}

// MuteDevice queues a DISC_MUTE to target and binds cb to the mute slot.
//
// It returns false, and neither queues nor calls cb, while an earlier mute
// is outstanding or after Stop. cb receives OutcomeResponseReceived with
// Confirmed set when target answered.
func (e *Engine) MuteDevice(target rdm.UID, cb Callback) bool {
	return e.admitDiscovery(slotMute, rdm.NewMuteRequest(e.cfg.ControllerUID, target), cb)
}

// UnMuteAll broadcasts a DISC_UN_MUTE and binds cb to the unmute slot.
// cb receives OutcomeBroadcastSent once the request is on the wire.
func (e *Engine) UnMuteAll(cb Callback) bool {
	return e.admitDiscovery(slotUnMute, rdm.NewUnMuteRequest(e.cfg.ControllerUID, rdm.AllDevices()), cb)
}

// Branch queues a DISC_UNIQUE_BRANCH over [lower, upper] and binds cb to the
// branch slot. cb receives OutcomeBranchHit with the encoded reply when one
// device answers. No reply and collisions release the slot silently unless
// Config.SurfaceUnresolvedDiscovery is set.
func (e *Engine) Branch(lower, upper rdm.UID, cb Callback) bool {
	return e.admitDiscovery(slotBranch, rdm.NewDiscoveryUniqueBranchRequest(e.cfg.ControllerUID, lower, upper), cb)
}

func (e *Engine) admitDiscovery(kind slotKind, req *rdm.Request, cb Callback) bool {
	// The slot holds a continuation even for a nil cb so it still counts
	// as occupied until the request resolves.
	if !e.queue.admit(kind, req, &continuation{fn: cb}) {
		e.logDebug("discovery admission refused", "slot", kind.String())
		return false
	}
	return true
}
