package dmx

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-dmx/internal/engine"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
	"github.com/nerrad567/gray-logic-dmx/internal/responder"
)

// opResponse marks a confirmed unicast reply.
const opResponse = "response"

// Discovery event names written to telemetry.
const (
	eventFound      = "found"
	eventMuted      = "muted"
	eventUnMuted    = "unmuted"
	eventUnresolved = "unresolved"
)

// record is an engine result waiting to be persisted.
type record struct {
	op     string
	target rdm.UID
	res    engine.Result
	at     time.Time
}

// enqueueRecord hands a result to recordLoop. Called from the engine
// worker, so a full backlog drops the record instead of waiting.
func (b *Bridge) enqueueRecord(r record) {
	if b.store == nil && b.telemetry == nil {
		return
	}
	r.at = time.Now().UTC()

	select {
	case b.records <- r:
	default:
		b.logWarn("responder backlog full, dropping result", "op", r.op, "outcome", r.res.Outcome.String())
	}
}

// recordLoop persists results until Stop, then drains what is queued.
func (b *Bridge) recordLoop() {
	defer b.wg.Done()

	for {
		select {
		case r := <-b.records:
			b.persist(r)
		case <-b.done:
			for {
				select {
				case r := <-b.records:
					b.persist(r)
				default:
					return
				}
			}
		}
	}
}

// persist applies one result to the responder store and telemetry.
func (b *Bridge) persist(r record) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch r.op {
	case OpBranch:
		if r.res.Outcome != engine.OutcomeBranchHit {
			b.writeEvent(rdm.UID{}, eventUnresolved)
			return
		}
		uid, err := rdm.DecodeDUBResponse(r.res.Data)
		if err != nil {
			b.logError("failed to decode branch reply", err)
			return
		}
		b.upsert(ctx, uid, responder.SourceDiscovery, r.at)
		b.writeEvent(uid, eventFound)
		b.logInfo("responder found", "uid", uid.String(), "universe", b.universe)

	case OpMute:
		if !r.res.OK() {
			return
		}
		b.upsert(ctx, r.target, responder.SourceDiscovery, r.at)
		if b.store != nil {
			if err := b.store.SetMuted(ctx, r.target, true); err != nil {
				b.logError("failed to mark responder muted", err)
			}
		}
		b.writeEvent(r.target, eventMuted)

	case OpUnMute:
		if !r.res.OK() {
			return
		}
		if b.store != nil {
			n, err := b.store.ClearMuted(ctx, b.universe)
			if err != nil {
				b.logError("failed to clear muted responders", err)
			} else {
				b.logDebug("muted flags cleared", "count", n)
			}
		}
		b.writeEvent(r.target, eventUnMuted)

	case opResponse:
		b.upsert(ctx, r.target, responder.SourceResponse, r.at)
	}
}

func (b *Bridge) upsert(ctx context.Context, uid rdm.UID, source responder.Source, seen time.Time) {
	if b.store == nil {
		return
	}
	if err := b.store.Upsert(ctx, uid, b.universe, source, seen); err != nil {
		b.logError("failed to store responder", err)
	}
}

func (b *Bridge) writeEvent(uid rdm.UID, event string) {
	if b.telemetry == nil {
		return
	}
	id := ""
	if uid != (rdm.UID{}) {
		id = uid.String()
	}
	b.telemetry.WriteDiscoveryEvent(b.universe, id, event)
}
