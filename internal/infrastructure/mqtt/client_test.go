package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration for tests. Unit tests never dial
// it; integration tests expect a broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-dmx-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) record(level, msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, level+": "+msg)
	l.mu.Unlock()
}

func (l *mockLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *mockLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Command", topics.Command(3), "graylogic/command/dmx/3"},
		{"Request", topics.Request("abc"), "graylogic/request/dmx/abc"},
		{"Response", topics.Response("abc"), "graylogic/response/dmx/abc"},
		{"DiscoveryCommand", topics.DiscoveryCommand(), "graylogic/discovery/dmx/command"},
		{"DiscoveryResult", topics.DiscoveryResult(), "graylogic/discovery/dmx/result"},
		{"Health", topics.Health(), "graylogic/health/dmx"},
		{"AllCommands", topics.AllCommands(), "graylogic/command/dmx/+"},
		{"AllRequests", topics.AllRequests(), "graylogic/request/dmx/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"graylogic/command/dmx/7", "7"},
		{"graylogic/request/dmx/r-1", "r-1"},
		{"no-slash", "no-slash"},
		{"graylogic/request/dmx/", ""},
	}
	for _, tt := range tests {
		if got := LastSegment(tt.topic); got != tt.want {
			t.Errorf("LastSegment(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "dmx"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graylogic-dmx-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "dmx" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.Order {
		t.Error("expected auto-reconnect and ordered delivery")
	}

	if !opts.WillEnabled || opts.WillTopic != "graylogic/health/dmx" || !opts.WillRetained {
		t.Errorf("will = enabled %v topic %q retained %v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	var will statusPayload
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if will.Status != statusOffline || will.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", will)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var p statusPayload
	if err := json.Unmarshal(buildStatusPayload(statusOnline, "id-1", ""), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Status != statusOnline || p.ClientID != "id-1" || p.Timestamp == "" {
		t.Errorf("payload = %+v", p)
	}
	if p.Reason != "" {
		t.Errorf("Reason = %q, want omitted", p.Reason)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"bad qos", "t", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "t", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v", err)
	}
	if err := c.Subscribe("t", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: %v", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v", err)
	}
	if err := c.Subscribe("t", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: %v", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscription must not be tracked")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("unsubscribe empty topic: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := newClient(testConfig())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

func TestCloseNeverConnected(t *testing.T) {
	c := newClient(testConfig())
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)

	if !logger.contains("panic recovered") {
		t.Errorf("logged %v, want panic entry", logger.messages)
	}
}

func TestDispatchLogsHandlerErrors(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)

	if !logger.contains("warn: mqtt handler returned error") {
		t.Errorf("logged %v, want handler error", logger.messages)
	}
}

func TestDispatchWithoutLogger(t *testing.T) {
	c := newClient(testConfig())
	// Must not panic with no logger installed.
	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
}

func TestConnectionCallbacks(t *testing.T) {
	c := newClient(testConfig())

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })

	c.setConnected(true)
	c.handleDisconnect(errors.New("broker gone"))

	if lost == nil || lost.Error() != "broker gone" {
		t.Errorf("disconnect callback got %v", lost)
	}
	c.connMu.RLock()
	connected := c.connected
	c.connMu.RUnlock()
	if connected {
		t.Error("connected flag still set after disconnect")
	}
}
