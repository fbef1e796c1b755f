package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

var (
	testController = rdm.NewUID(0x7a70, 0x12345678)
	testResponder  = rdm.NewUID(0x4c55, 0x00000010)
)

// mockWidget implements Widget for testing.
type mockWidget struct {
	mu sync.Mutex

	open      bool
	setupErr  error
	breakErr  error
	writeErr  error
	frameErr  error
	reads     [][]byte
	readErr   error
	responder func(written []byte) []byte

	setupCalls int
	readCalls  int
	written    [][]byte
	frames     []dmx.Buffer
	breakTimes []time.Time
}

func (m *mockWidget) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *mockWidget) SetupOutput() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setupCalls++
	if m.setupErr != nil {
		return m.setupErr
	}
	m.open = true
	return nil
}

func (m *mockWidget) SetBreak(asserted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakErr != nil {
		return m.breakErr
	}
	if asserted {
		m.breakTimes = append(m.breakTimes, time.Now())
	}
	return nil
}

func (m *mockWidget) WriteFrame(frame dmx.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frameErr != nil {
		return m.frameErr
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockWidget) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, append([]byte(nil), data...))
	return nil
}

func (m *mockWidget) Read(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.readErr != nil {
		return 0, m.readErr
	}

	var data []byte
	switch {
	case m.responder != nil && len(m.written) > 0:
		data = m.responder(m.written[len(m.written)-1])
	case len(m.reads) > 0:
		data = m.reads[0]
		m.reads = m.reads[1:]
	}
	return copy(buf, data), nil
}

func (m *mockWidget) ReadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls
}

func (m *mockWidget) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

func (m *mockWidget) BreakTimes() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.breakTimes...)
}

func (m *mockWidget) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// echoResponder answers every request with an ACK carrying its data.
func echoResponder(written []byte) []byte {
	req, err := rdm.ParseRequest(written)
	if err != nil {
		return nil
	}
	frame, err := rdm.PackResponse(rdm.NewResponse(req, rdm.ResponseTypeAck, req.Data))
	if err != nil {
		return nil
	}
	return frame
}

// recorder collects callback results.
type recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorder) callback() Callback {
	return func(res Result) {
		r.mu.Lock()
		r.results = append(r.results, res)
		r.mu.Unlock()
	}
}

func (r *recorder) snapshot() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func (r *recorder) waitFor(t *testing.T, n int) []Result {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if res := r.snapshot(); len(res) >= n {
			return res
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d results, have %d", n, len(r.snapshot()))
	return nil
}

// testConfig returns a config with short settle times.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Frequency = MaxFrequency
	cfg.BranchSettle = 50 * time.Microsecond
	cfg.UnicastSettle = time.Millisecond
	return cfg
}

// fakeClock advances a little on every reading so busy loops terminate.
type fakeClock struct {
	mu         sync.Mutex
	t          time.Time
	sleepExtra time.Duration
	sleeps     int
}

const fakeTick = 10 * time.Microsecond

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) clock() clock {
	return clock{now: f.now, sleep: f.sleep}
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(fakeTick)
	return f.t
}

func (f *fakeClock) sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps++
	f.t = f.t.Add(d + f.sleepExtra)
}

func (f *fakeClock) setExtra(d time.Duration) {
	f.mu.Lock()
	f.sleepExtra = d
	f.mu.Unlock()
}
