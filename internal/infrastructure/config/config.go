package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Widget types accepted in output.widget.type.
const (
	WidgetSim    = "sim"
	WidgetUART   = "uart"
	WidgetEnttec = "enttec"
)

// Output frequency bounds in frames per second.
const (
	minFrequency = 1
	maxFrequency = 44
)

// Config is the root configuration structure for the DMX output service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Output    OutputConfig    `yaml:"output"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	TLS        TLSConfig        `yaml:"tls"`
	Timeouts   APITimeoutConfig `yaml:"timeouts"`
	CORS       CORSConfig       `yaml:"cors"`
	RDMTimeout int              `yaml:"rdm_timeout"` // milliseconds a POST /rdm waits for its result
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	StatsInterval  int    `yaml:"stats_interval"` // milliseconds between stats pushes
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OutputConfig describes the DMX universe driven by this process and the
// interface widget that carries it.
type OutputConfig struct {
	// Universe is the logical universe number used in MQTT topics and telemetry.
	Universe int `yaml:"universe"`

	// Frequency is the DMX refresh rate in frames per second (1-44).
	Frequency int `yaml:"frequency"`

	// ControllerUID is the RDM source UID, formatted "mmmm:dddddddd".
	ControllerUID string `yaml:"controller_uid"`

	Widget WidgetConfig `yaml:"widget"`
	Timing TimingConfig `yaml:"timing"`

	// SurfaceUnresolvedDiscovery delivers branch probes that produce no
	// usable reply to their callback instead of dropping them silently.
	SurfaceUnresolvedDiscovery bool `yaml:"surface_unresolved_discovery"`

	// HealthInterval is the health publish period in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// WidgetConfig selects and parameterises the output interface.
type WidgetConfig struct {
	// Type is one of "sim", "uart" or "enttec".
	Type string `yaml:"type"`

	// Device is the serial device path. Required for uart and enttec.
	Device string `yaml:"device"`

	// Baud is the host link speed for enttec widgets. The uart widget always
	// runs at 250 kbaud.
	Baud int `yaml:"baud"`

	ReadTimeoutMS int `yaml:"read_timeout_ms"`

	// Responders populates the simulated widget.
	Responders []SimResponderConfig `yaml:"responders"`
}

// SimResponderConfig describes one virtual fixture on the sim widget.
type SimResponderConfig struct {
	UID           string `yaml:"uid"`
	Model         uint16 `yaml:"model"`
	Footprint     uint16 `yaml:"footprint"`
	StartAddress  uint16 `yaml:"start_address"`
	SoftwareLabel string `yaml:"software_label"`
}

// TimingConfig holds the line timings used by the output engine.
type TimingConfig struct {
	BreakUS            int `yaml:"break_us"`
	MABUS              int `yaml:"mab_us"`
	BranchSettleUS     int `yaml:"branch_settle_us"`
	UnicastSettleMS    int `yaml:"unicast_settle_ms"`
	RDMGateMS          int `yaml:"rdm_gate_ms"`
	GranularityLimitMS int `yaml:"granularity_limit_ms"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_DMX_SECTION_KEY
// For example: GRAYLOGIC_DMX_DATABASE_PATH, GRAYLOGIC_DMX_WIDGET_DEVICE
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-dmx.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-dmx",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			RDMTimeout: 2000,
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			StatsInterval:  1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Output: OutputConfig{
			Universe:      1,
			Frequency:     30,
			ControllerUID: "7a70:12345678",
			Widget: WidgetConfig{
				Type:          WidgetSim,
				Baud:          57600,
				ReadTimeoutMS: 2,
			},
			Timing: TimingConfig{
				BreakUS:            110,
				MABUS:              16,
				BranchSettleUS:     1400,
				UnicastSettleMS:    31,
				RDMGateMS:          500,
				GranularityLimitMS: 3,
			},
			HealthInterval: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_DMX_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := os.Getenv("GRAYLOGIC_DMX_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_DMX_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_DMX_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_DMX_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_DMX_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_DMX_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Output
	if v := os.Getenv("GRAYLOGIC_DMX_WIDGET_TYPE"); v != "" {
		cfg.Output.Widget.Type = v
	}
	if v := os.Getenv("GRAYLOGIC_DMX_WIDGET_DEVICE"); v != "" {
		cfg.Output.Widget.Device = v
	}
	if v := os.Getenv("GRAYLOGIC_DMX_CONTROLLER_UID"); v != "" {
		cfg.Output.ControllerUID = v
	}
	if v := os.Getenv("GRAYLOGIC_DMX_FREQUENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_DMX_FREQUENCY: %w", err)
		}
		cfg.Output.Frequency = n
	}

	return nil
}

// Validate checks the configuration for errors.
//
// All problems are collected so an operator sees every mistake at once.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.Output.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (o *OutputConfig) validate() []string {
	var errs []string

	if o.Universe < 1 {
		errs = append(errs, "output.universe must be at least 1")
	}

	if o.Frequency < minFrequency || o.Frequency > maxFrequency {
		errs = append(errs, fmt.Sprintf("output.frequency must be between %d and %d", minFrequency, maxFrequency))
	}

	if uid, err := rdm.ParseUID(o.ControllerUID); err != nil {
		errs = append(errs, fmt.Sprintf("output.controller_uid: %v", err))
	} else if uid.IsBroadcast() {
		errs = append(errs, "output.controller_uid must not be a broadcast UID")
	}

	switch o.Widget.Type {
	case WidgetSim:
		for i, r := range o.Widget.Responders {
			if _, err := rdm.ParseUID(r.UID); err != nil {
				errs = append(errs, fmt.Sprintf("output.widget.responders[%d].uid: %v", i, err))
			}
		}
	case WidgetUART, WidgetEnttec:
		if o.Widget.Device == "" {
			errs = append(errs, fmt.Sprintf("output.widget.device is required for %s widgets", o.Widget.Type))
		}
	default:
		errs = append(errs, fmt.Sprintf("output.widget.type %q must be sim, uart, or enttec", o.Widget.Type))
	}

	t := o.Timing
	if t.BreakUS < 0 || t.MABUS < 0 || t.BranchSettleUS < 0 || t.UnicastSettleMS < 0 {
		errs = append(errs, "output.timing values must not be negative")
	}
	if t.RDMGateMS < 1 {
		errs = append(errs, "output.timing.rdm_gate_ms must be at least 1")
	}
	if t.GranularityLimitMS < 1 {
		errs = append(errs, "output.timing.granularity_limit_ms must be at least 1")
	}

	if o.HealthInterval < 1 {
		errs = append(errs, "output.health_interval must be at least 1 second")
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetRDMTimeout returns how long a synchronous API RDM request waits.
func (c *Config) GetRDMTimeout() time.Duration {
	return time.Duration(c.API.RDMTimeout) * time.Millisecond
}

// GetHealthInterval returns the health publish period.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Output.HealthInterval) * time.Second
}

// ParsedControllerUID returns the controller UID. Validate guarantees it parses.
func (o *OutputConfig) ParsedControllerUID() rdm.UID {
	uid, _ := rdm.ParseUID(o.ControllerUID) //nolint:errcheck // checked in Validate
	return uid
}

// ReadTimeout returns the widget read timeout.
func (w *WidgetConfig) ReadTimeout() time.Duration {
	return time.Duration(w.ReadTimeoutMS) * time.Millisecond
}

// BreakTime returns the break duration.
func (t *TimingConfig) BreakTime() time.Duration {
	return time.Duration(t.BreakUS) * time.Microsecond
}

// MABTime returns the mark-after-break duration.
func (t *TimingConfig) MABTime() time.Duration {
	return time.Duration(t.MABUS) * time.Microsecond
}

// BranchSettle returns the wait between sending a branch probe and reading.
func (t *TimingConfig) BranchSettle() time.Duration {
	return time.Duration(t.BranchSettleUS) * time.Microsecond
}

// UnicastSettle returns the wait between sending a unicast request and reading.
func (t *TimingConfig) UnicastSettle() time.Duration {
	return time.Duration(t.UnicastSettleMS) * time.Millisecond
}

// RDMGate returns the maximum age of the last data frame for an RDM cycle.
func (t *TimingConfig) RDMGate() time.Duration {
	return time.Duration(t.RDMGateMS) * time.Millisecond
}

// GranularityLimit returns the 1 ms sleep accuracy threshold.
func (t *TimingConfig) GranularityLimit() time.Duration {
	return time.Duration(t.GranularityLimitMS) * time.Millisecond
}
