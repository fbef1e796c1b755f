package dmx

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	dmxbuf "github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/engine"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
	"github.com/nerrad567/gray-logic-dmx/internal/responder"
)

var (
	controllerUID = rdm.NewUID(0x7a70, 0x12345678)
	fixtureUID    = rdm.NewUID(0x4c55, 0x00000042)
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []string
	connected     bool
	handlers      map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) setConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// findPublished returns the last message published on topic.
func (m *MockMQTTClient) findPublished(topic string) (mockPublish, bool) {
	msgs := m.GetPublished()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Topic == topic {
			return msgs[i], true
		}
	}
	return mockPublish{}, false
}

// SimulateMessage delivers payload to the handler subscribed with pattern.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		return errors.New("no handler for " + pattern)
	}
	return handler(topic, payload)
}

// MockEngine implements Engine. reply decides what each request resolves
// to; a nil reply leaves the callback pending.
type MockEngine struct {
	mu       sync.Mutex
	frames   []dmxbuf.Buffer
	requests []*rdm.Request
	busy     bool
	reply    func(req *rdm.Request) *engine.Result
	stats    engine.Stats
}

func newMockEngine() *MockEngine {
	return &MockEngine{stats: engine.Stats{Running: true}}
}

func (e *MockEngine) WriteDMX(buf dmxbuf.Buffer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, buf)
}

func (e *MockEngine) SendRDMRequest(req *rdm.Request, cb engine.Callback) {
	e.resolve(req, cb)
}

func (e *MockEngine) MuteDevice(target rdm.UID, cb engine.Callback) bool {
	return e.admit(rdm.NewMuteRequest(controllerUID, target), cb)
}

func (e *MockEngine) UnMuteAll(cb engine.Callback) bool {
	return e.admit(rdm.NewUnMuteRequest(controllerUID, rdm.AllDevices()), cb)
}

func (e *MockEngine) Branch(lower, upper rdm.UID, cb engine.Callback) bool {
	return e.admit(rdm.NewDiscoveryUniqueBranchRequest(controllerUID, lower, upper), cb)
}

func (e *MockEngine) admit(req *rdm.Request, cb engine.Callback) bool {
	e.mu.Lock()
	busy := e.busy
	e.mu.Unlock()
	if busy {
		return false
	}
	e.resolve(req, cb)
	return true
}

func (e *MockEngine) resolve(req *rdm.Request, cb engine.Callback) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	reply := e.reply
	e.mu.Unlock()

	if reply == nil {
		return
	}
	if res := reply(req); res != nil {
		cb(*res)
	}
}

func (e *MockEngine) Stats() engine.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *MockEngine) UID() rdm.UID {
	return controllerUID
}

func (e *MockEngine) lastFrame() dmxbuf.Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frames) == 0 {
		return dmxbuf.Buffer{}
	}
	return e.frames[len(e.frames)-1]
}

func (e *MockEngine) requestCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

// ackReply answers every request with an ACK from its destination.
func ackReply(data []byte) func(req *rdm.Request) *engine.Result {
	return func(req *rdm.Request) *engine.Result {
		if req.IsBroadcast() && !req.IsDUB() {
			return &engine.Result{Outcome: engine.OutcomeBroadcastSent, Request: req}
		}
		return &engine.Result{
			Outcome:   engine.OutcomeResponseReceived,
			Request:   req,
			Reply:     rdm.NewResponse(req, rdm.ResponseTypeAck, data),
			Confirmed: true,
		}
	}
}

// MockStore implements ResponderStore.
type MockStore struct {
	mu      sync.Mutex
	upserts map[rdm.UID]responder.Source
	muted   map[rdm.UID]bool
	cleared []int
}

func newMockStore() *MockStore {
	return &MockStore{
		upserts: make(map[rdm.UID]responder.Source),
		muted:   make(map[rdm.UID]bool),
	}
}

func (s *MockStore) Upsert(_ context.Context, uid rdm.UID, _ int, source responder.Source, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts[uid] = source
	return nil
}

func (s *MockStore) SetMuted(_ context.Context, uid rdm.UID, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted[uid] = muted
	return nil
}

func (s *MockStore) ClearMuted(_ context.Context, universe int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, universe)
	n := int64(len(s.muted))
	s.muted = make(map[rdm.UID]bool)
	return n, nil
}

// MockTelemetry implements Telemetry.
type MockTelemetry struct {
	mu      sync.Mutex
	samples []influxdb.OutputSample
	events  []string
}

func (m *MockTelemetry) WriteOutputSample(s influxdb.OutputSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
}

func (m *MockTelemetry) WriteDiscoveryEvent(_ int, uid, event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event+":"+uid)
}

func (m *MockTelemetry) getEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

type testBridge struct {
	*Bridge
	mqtt      *MockMQTTClient
	engine    *MockEngine
	store     *MockStore
	telemetry *MockTelemetry
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	tb := &testBridge{
		mqtt:      NewMockMQTTClient(),
		engine:    newMockEngine(),
		store:     newMockStore(),
		telemetry: &MockTelemetry{},
	}
	b, err := NewBridge(BridgeOptions{
		Universe:       1,
		MQTTClient:     tb.mqtt,
		Engine:         tb.engine,
		Store:          tb.store,
		Telemetry:      tb.telemetry,
		Version:        "test",
		RequestTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	tb.Bridge = b

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return tb
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewBridge_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"missing mqtt", BridgeOptions{Universe: 1, Engine: newMockEngine()}},
		{"missing engine", BridgeOptions{Universe: 1, MQTTClient: NewMockMQTTClient()}},
		{"bad universe", BridgeOptions{Universe: 0, MQTTClient: NewMockMQTTClient(), Engine: newMockEngine()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() should fail")
			}
		})
	}
}

func TestBridge_StartSubscribesAndPublishesHealth(t *testing.T) {
	tb := newTestBridge(t)
	topics := mqtt.Topics{}

	want := []string{topics.AllCommands(), topics.AllRequests(), topics.DiscoveryCommand()}
	tb.mqtt.mu.Lock()
	got := append([]string(nil), tb.mqtt.subscriptions...)
	tb.mqtt.mu.Unlock()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("subscriptions = %v, want %v", got, want)
	}

	msg, ok := tb.mqtt.findPublished(topics.Health())
	if !ok {
		t.Fatal("no health message published")
	}
	if !msg.Retained {
		t.Error("health message should be retained")
	}

	var health HealthMessage
	if err := json.Unmarshal(msg.Payload, &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != HealthHealthy {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if health.Bridge != BridgeID || health.Universe != 1 {
		t.Errorf("bridge/universe = %q/%d", health.Bridge, health.Universe)
	}
}

func TestBridge_StopPublishesStopping(t *testing.T) {
	tb := newTestBridge(t)
	tb.Stop()
	tb.Stop() // idempotent

	msg, ok := tb.mqtt.findPublished(mqtt.Topics{}.Health())
	if !ok {
		t.Fatal("no health message published")
	}
	var health HealthMessage
	if err := json.Unmarshal(msg.Payload, &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != HealthStopping {
		t.Errorf("status = %q, want stopping", health.Status)
	}
}

func TestBridge_LevelCommandsMerge(t *testing.T) {
	tb := newTestBridge(t)
	pattern := mqtt.Topics{}.AllCommands()
	topic := mqtt.Topics{}.Command(1)

	if err := tb.mqtt.SimulateMessage(pattern, topic, []byte(`{"values":[10,20,30]}`)); err != nil {
		t.Fatalf("first command: %v", err)
	}
	if err := tb.mqtt.SimulateMessage(pattern, topic, []byte(`{"channels":{"2":99,"10":1}}`)); err != nil {
		t.Fatalf("second command: %v", err)
	}

	frame := tb.engine.lastFrame()
	want := map[int]byte{0: 10, 1: 99, 2: 30, 9: 1}
	for ch, v := range want {
		if got := frame.Get(ch); got != v {
			t.Errorf("slot %d = %d, want %d", ch, got, v)
		}
	}
	if frame.Size() != 10 {
		t.Errorf("frame size = %d, want 10", frame.Size())
	}
	if !tb.Levels().Equal(frame) {
		t.Error("Levels() should match the last frame handed to the engine")
	}
}

func TestBridge_LevelCommandErrors(t *testing.T) {
	tb := newTestBridge(t)
	pattern := mqtt.Topics{}.AllCommands()

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"other universe", mqtt.Topics{}.Command(2), `{"values":[1]}`, ErrUnknownUniverse},
		{"bad json", mqtt.Topics{}.Command(1), `{`, ErrInvalidMessage},
		{"level too high", mqtt.Topics{}.Command(1), `{"values":[256]}`, ErrInvalidLevel},
		{"channel zero", mqtt.Topics{}.Command(1), `{"channels":{"0":1}}`, dmxbuf.ErrChannelOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tb.mqtt.SimulateMessage(pattern, tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	tb.engine.mu.Lock()
	frames := len(tb.engine.frames)
	tb.engine.mu.Unlock()
	if frames != 0 {
		t.Errorf("engine received %d frames, want 0", frames)
	}
}

func TestBridge_SendRDM(t *testing.T) {
	tb := newTestBridge(t)
	tb.engine.reply = ackReply([]byte{0x01, 0x02})

	resp := tb.SendRDM(context.Background(), RDMRequestMessage{
		RequestID:    "r-1",
		Destination:  fixtureUID,
		CommandClass: "get",
		PID:          rdm.PIDDeviceInfo,
	})

	if !resp.Success || !resp.Confirmed {
		t.Fatalf("response = %+v, want confirmed success", resp)
	}
	if resp.Outcome != "response_received" {
		t.Errorf("outcome = %q", resp.Outcome)
	}
	if resp.Data != "0102" {
		t.Errorf("data = %q, want 0102", resp.Data)
	}
	if resp.ResponseType != "ACK" {
		t.Errorf("response type = %q, want ACK", resp.ResponseType)
	}

	tb.Stop()
	tb.store.mu.Lock()
	source := tb.store.upserts[fixtureUID]
	tb.store.mu.Unlock()
	if source != responder.SourceResponse {
		t.Errorf("stored source = %q, want %q", source, responder.SourceResponse)
	}
}

func TestBridge_SendRDMFailures(t *testing.T) {
	tests := []struct {
		name     string
		msg      RDMRequestMessage
		reply    func(req *rdm.Request) *engine.Result
		wantCode string
		wantSent bool
	}{
		{
			name:     "invalid command class",
			msg:      RDMRequestMessage{Destination: fixtureUID, CommandClass: "discover", PID: 1},
			wantCode: ErrCodeInvalidParameters,
		},
		{
			name:     "bad hex",
			msg:      RDMRequestMessage{Destination: fixtureUID, CommandClass: "set", PID: 1, Data: "zz"},
			wantCode: ErrCodeInvalidParameters,
		},
		{
			name: "engine timeout outcome",
			msg:  RDMRequestMessage{Destination: fixtureUID, CommandClass: "get", PID: 1},
			reply: func(req *rdm.Request) *engine.Result {
				return &engine.Result{Outcome: engine.OutcomeTimeout, Request: req, Err: engine.ErrNoResponse}
			},
			wantCode: ErrCodeNoResponse,
			wantSent: true,
		},
		{
			name: "send failure",
			msg:  RDMRequestMessage{Destination: fixtureUID, CommandClass: "get", PID: 1},
			reply: func(req *rdm.Request) *engine.Result {
				return &engine.Result{Outcome: engine.OutcomeSendFailure, Request: req, Err: engine.ErrWriteFailed}
			},
			wantCode: ErrCodeSendFailure,
			wantSent: true,
		},
		{
			name:     "no result in time",
			msg:      RDMRequestMessage{Destination: fixtureUID, CommandClass: "get", PID: 1},
			reply:    func(*rdm.Request) *engine.Result { return nil },
			wantCode: ErrCodeTimeout,
			wantSent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t)
			tb.engine.reply = tt.reply

			resp := tb.SendRDM(context.Background(), tt.msg)
			if resp.Success {
				t.Fatal("expected failure")
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
			if resp.RequestID == "" {
				t.Error("request id should be generated")
			}
			if sent := tb.engine.requestCount() > 0; sent != tt.wantSent {
				t.Errorf("sent = %v, want %v", sent, tt.wantSent)
			}
		})
	}
}

func TestBridge_RequestOverMQTT(t *testing.T) {
	tb := newTestBridge(t)
	tb.engine.reply = ackReply(nil)
	topics := mqtt.Topics{}

	payload := []byte(`{"destination":"4c55:00000042","command_class":"set","pid":4096,"data":"01"}`)
	if err := tb.mqtt.SimulateMessage(topics.AllRequests(), topics.Request("abc"), payload); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	var msg mockPublish
	waitFor(t, "rdm response", func() bool {
		var ok bool
		msg, ok = tb.mqtt.findPublished(topics.Response("abc"))
		return ok
	})

	var resp RDMResponseMessage
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.RequestID != "abc" || !resp.Success {
		t.Errorf("response = %+v", resp)
	}
	if msg.Retained {
		t.Error("responses should not be retained")
	}
}

func TestBridge_DiscoverBranchHit(t *testing.T) {
	tb := newTestBridge(t)
	tb.engine.reply = func(req *rdm.Request) *engine.Result {
		return &engine.Result{Outcome: engine.OutcomeBranchHit, Request: req, Data: rdm.EncodeDUBResponse(fixtureUID)}
	}

	res := tb.Discover(context.Background(), DiscoveryCommand{Op: OpBranch})
	if res.Status != DiscoveryCompleted || !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.UID == nil || *res.UID != fixtureUID {
		t.Errorf("uid = %v, want %s", res.UID, fixtureUID)
	}

	tb.engine.mu.Lock()
	lower, upper, err := rdm.BranchBounds(tb.engine.requests[0])
	tb.engine.mu.Unlock()
	if err != nil {
		t.Fatalf("BranchBounds() error = %v", err)
	}
	if lower != (rdm.UID{}) || upper != maxUnicastUID {
		t.Errorf("default range = %s..%s", lower, upper)
	}

	tb.Stop()
	tb.store.mu.Lock()
	source := tb.store.upserts[fixtureUID]
	tb.store.mu.Unlock()
	if source != responder.SourceDiscovery {
		t.Errorf("stored source = %q, want %q", source, responder.SourceDiscovery)
	}
	if events := tb.telemetry.getEvents(); len(events) != 1 || events[0] != "found:"+fixtureUID.String() {
		t.Errorf("events = %v", events)
	}
}

func TestBridge_DiscoverMuteAndUnMute(t *testing.T) {
	tb := newTestBridge(t)
	tb.engine.reply = ackReply(nil)

	target := fixtureUID
	mute := tb.Discover(context.Background(), DiscoveryCommand{Op: OpMute, Target: &target})
	if mute.Status != DiscoveryCompleted || !mute.Confirmed {
		t.Fatalf("mute = %+v", mute)
	}

	unmute := tb.Discover(context.Background(), DiscoveryCommand{Op: OpUnMute})
	if unmute.Status != DiscoveryCompleted || unmute.Outcome != "broadcast_sent" {
		t.Fatalf("unmute = %+v", unmute)
	}

	tb.Stop()
	tb.store.mu.Lock()
	defer tb.store.mu.Unlock()
	if len(tb.store.cleared) != 1 || tb.store.cleared[0] != 1 {
		t.Errorf("cleared = %v, want [1]", tb.store.cleared)
	}
	if _, ok := tb.store.upserts[fixtureUID]; !ok {
		t.Error("muted responder should be stored")
	}
}

func TestBridge_DiscoverRejectedAndInvalid(t *testing.T) {
	tb := newTestBridge(t)
	tb.engine.busy = true
	broadcast := rdm.AllDevices()
	lower, upper := rdm.NewUID(2, 0), rdm.NewUID(1, 0)

	tests := []struct {
		name       string
		cmd        DiscoveryCommand
		wantStatus DiscoveryStatus
		wantCode   string
	}{
		{"slot busy", DiscoveryCommand{Op: OpBranch}, DiscoveryRejected, ErrCodeRejected},
		{"unknown op", DiscoveryCommand{Op: "identify"}, DiscoveryFailed, ErrCodeInvalidParameters},
		{"mute without target", DiscoveryCommand{Op: OpMute}, DiscoveryFailed, ErrCodeInvalidParameters},
		{"mute broadcast", DiscoveryCommand{Op: OpMute, Target: &broadcast}, DiscoveryFailed, ErrCodeInvalidParameters},
		{"inverted range", DiscoveryCommand{Op: OpBranch, Lower: &lower, Upper: &upper}, DiscoveryFailed, ErrCodeInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tb.Discover(context.Background(), tt.cmd)
			if res.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", res.Status, tt.wantStatus)
			}
			if res.Error == nil || res.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", res.Error, tt.wantCode)
			}
		})
	}
}

func TestBridge_DiscoverSilentBranchTimesOut(t *testing.T) {
	tb := newTestBridge(t)
	tb.engine.reply = func(*rdm.Request) *engine.Result { return nil }

	res := tb.Discover(context.Background(), DiscoveryCommand{Op: OpBranch})
	if res.Status != DiscoveryTimeout {
		t.Errorf("status = %q, want timeout", res.Status)
	}
}

func TestBridge_DiscoveryOverMQTT(t *testing.T) {
	tb := newTestBridge(t)
	tb.engine.busy = true
	topics := mqtt.Topics{}

	if err := tb.mqtt.SimulateMessage(topics.DiscoveryCommand(), topics.DiscoveryCommand(), []byte(`{"id":"d1","op":"unmute"}`)); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	var msg mockPublish
	waitFor(t, "discovery result", func() bool {
		var ok bool
		msg, ok = tb.mqtt.findPublished(topics.DiscoveryResult())
		return ok
	})

	var res DiscoveryResult
	if err := json.Unmarshal(msg.Payload, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.ID != "d1" || res.Status != DiscoveryRejected {
		t.Errorf("result = %+v", res)
	}
}

func TestBridge_StopReleasesWaiters(t *testing.T) {
	mq := NewMockMQTTClient()
	eng := newMockEngine()
	eng.reply = func(*rdm.Request) *engine.Result { return nil }

	b, err := NewBridge(BridgeOptions{Universe: 1, MQTTClient: mq, Engine: eng, RequestTimeout: time.Minute})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan RDMResponseMessage, 1)
	go func() {
		done <- b.SendRDM(context.Background(), RDMRequestMessage{Destination: fixtureUID, CommandClass: "get", PID: 1})
	}()

	waitFor(t, "request sent", func() bool { return eng.requestCount() == 1 })
	b.Stop()

	select {
	case resp := <-done:
		if resp.Error == nil || !strings.Contains(resp.Error.Message, "stopped") {
			t.Errorf("error = %+v, want stopped", resp.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendRDM did not return after Stop")
	}
}
