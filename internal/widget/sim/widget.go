package sim

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Config holds simulated widget settings.
type Config struct {
	// Responders are the virtual fixtures on the line.
	Responders []Responder

	// FailWrites makes every RDM write fail, for exercising error paths.
	FailWrites bool
}

// Stats holds simulated line counters.
type Stats struct {
	Frames   uint64
	Requests uint64
	Replies  uint64
}

// Widget is an in-memory DMX/RDM interface.
//
// Thread Safety: All methods are safe for concurrent use.
type Widget struct {
	mu         sync.Mutex
	cfg        Config
	open       bool
	responders map[rdm.UID]*Responder
	lastFrame  dmx.Buffer
	reply      []byte
	stats      Stats
}

// New creates a simulated widget. Call SetupOutput (or let the engine do it)
// before use.
func New(cfg Config) *Widget {
	w := &Widget{
		cfg:        cfg,
		responders: make(map[rdm.UID]*Responder, len(cfg.Responders)),
	}
	for i := range cfg.Responders {
		r := cfg.Responders[i]
		w.responders[r.UID] = &r
	}
	return w
}

// IsOpen reports whether SetupOutput has been called.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// SetupOutput opens the widget.
func (w *Widget) SetupOutput() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = true
	return nil
}

// Close closes the widget.
func (w *Widget) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
	w.reply = nil
	return nil
}

// SetBreak is accepted while open.
func (w *Widget) SetBreak(bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return ErrNotOpen
	}
	return nil
}

// WriteFrame records the frame.
func (w *Widget) WriteFrame(frame dmx.Buffer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return ErrNotOpen
	}
	w.lastFrame = frame
	w.stats.Frames++
	return nil
}

// Write delivers a packed request to the virtual responders and stages
// whatever they answer for the next Read.
func (w *Widget) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return ErrNotOpen
	}
	if w.cfg.FailWrites {
		return ErrInjected
	}

	w.stats.Requests++
	w.reply = nil

	req, err := rdm.ParseRequest(data)
	if err != nil {
		// Real fixtures ignore frames they cannot parse.
		return nil //nolint:nilerr // Garbage on the line draws no reply
	}

	if req.IsDUB() {
		w.reply = w.branchReply(req)
	} else {
		w.reply = w.deliver(req)
	}
	if len(w.reply) > 0 {
		w.stats.Replies++
	}
	return nil
}

// Read returns the staged reply once.
func (w *Widget) Read(buf []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return 0, ErrNotOpen
	}
	n := copy(buf, w.reply)
	w.reply = nil
	return n, nil
}

// AddResponder puts another fixture on the line.
func (w *Widget) AddResponder(r Responder) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.responders[r.UID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResponder, r.UID)
	}
	w.responders[r.UID] = &r
	return nil
}

// Responders returns a copy of every fixture, ordered by UID.
func (w *Widget) Responders() []Responder {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Responder, 0, len(w.responders))
	for _, r := range w.responders {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID.Less(out[j].UID) })
	return out
}

// SetFailWrites toggles RDM write failures.
func (w *Widget) SetFailWrites(fail bool) {
	w.mu.Lock()
	w.cfg.FailWrites = fail
	w.mu.Unlock()
}

// LastFrame returns the most recent DMX frame.
func (w *Widget) LastFrame() dmx.Buffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFrame
}

// Stats returns line counters.
func (w *Widget) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// branchReply answers a DISC_UNIQUE_BRANCH. Every unmuted responder in range
// replies; more than one produces a reply too long to decode.
func (w *Widget) branchReply(req *rdm.Request) []byte {
	lower, upper, err := rdm.BranchBounds(req)
	if err != nil {
		return nil
	}

	var out []byte
	for _, r := range w.inOrder() {
		if r.Muted || !r.UID.InRange(lower, upper) {
			continue
		}
		out = append(out, rdm.EncodeDUBResponse(r.UID)...)
	}
	return out
}

// deliver applies a non-discovery-branch request and returns the packed
// reply of the addressed responder. Broadcasts are applied silently.
func (w *Widget) deliver(req *rdm.Request) []byte {
	if req.IsBroadcast() {
		for _, r := range w.responders {
			if req.Destination.Manufacturer == rdm.AllManufacturers || req.Destination.Manufacturer == r.UID.Manufacturer {
				r.handle(req)
			}
		}
		return nil
	}

	r, ok := w.responders[req.Destination]
	if !ok {
		return nil
	}
	rt, data, ok := r.handle(req)
	if !ok {
		return nil
	}

	frame, err := rdm.PackResponse(rdm.NewResponse(req, rt, data))
	if err != nil {
		return nil
	}
	return frame
}

func (w *Widget) inOrder() []*Responder {
	out := make([]*Responder, 0, len(w.responders))
	for _, r := range w.responders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID.Less(out[j].UID) })
	return out
}
