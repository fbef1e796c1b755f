// Gray Logic DMX - DMX512/RDM output service
//
// This is the main entry point for the Gray Logic DMX output service.
// It drives one DMX universe through a serial widget and exposes:
//   - Level updates and RDM requests over MQTT
//   - Responder discovery (mute, unmute, branch probes)
//   - A REST and WebSocket API for commissioning tools
//
// For architecture details, see: DESIGN.md
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-dmx/internal/api"
	dmxbridge "github.com/nerrad567/gray-logic-dmx/internal/bridges/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/engine"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dmx/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
	"github.com/nerrad567/gray-logic-dmx/internal/responder"
	"github.com/nerrad567/gray-logic-dmx/internal/widget/enttec"
	"github.com/nerrad567/gray-logic-dmx/internal/widget/sim"
	"github.com/nerrad567/gray-logic-dmx/internal/widget/uart"
	"github.com/nerrad567/gray-logic-dmx/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "GRAYLOGIC_DMX_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
// Deferred cleanups unwind in reverse start order: API, bridge, engine,
// InfluxDB, MQTT, database.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic DMX",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	responders := responder.NewSQLiteRepository(db.DB)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	widget, err := newWidget(cfg.Output)
	if err != nil {
		return fmt.Errorf("creating widget: %w", err)
	}

	eng := engine.New(widget, engineConfig(cfg.Output, log))
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		log.Info("stopping output engine")
		if stopErr := eng.Stop(); stopErr != nil {
			log.Error("error stopping engine", "error", stopErr)
		}
	}()
	log.Info("output engine started",
		"widget", cfg.Output.Widget.Type,
		"frequency", cfg.Output.Frequency,
		"controller_uid", eng.UID().String(),
	)

	opts := dmxbridge.BridgeOptions{
		Universe:       cfg.Output.Universe,
		MQTTClient:     mqttClient,
		Engine:         eng,
		Store:          responders,
		Version:        version,
		HealthInterval: cfg.GetHealthInterval(),
		RequestTimeout: cfg.GetRDMTimeout(),
		Logger:         log,
	}
	// A nil *influxdb.Client must not become a non-nil interface.
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	bridge, err := dmxbridge.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating DMX bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting DMX bridge: %w", err)
	}
	defer func() {
		log.Info("stopping DMX bridge")
		bridge.Stop()
	}()
	log.Info("DMX bridge started", "universe", cfg.Output.Universe)

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Controller: bridge,
		Responders: responders,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns GRAYLOGIC_DMX_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// newWidget builds the output interface selected by output.widget.type.
func newWidget(out config.OutputConfig) (engine.Widget, error) {
	switch out.Widget.Type {
	case config.WidgetSim:
		responders := make([]sim.Responder, 0, len(out.Widget.Responders))
		for _, rc := range out.Widget.Responders {
			uid, err := rdm.ParseUID(rc.UID)
			if err != nil {
				return nil, fmt.Errorf("sim responder %q: %w", rc.UID, err)
			}
			responders = append(responders, sim.Responder{
				UID:           uid,
				Model:         rc.Model,
				Footprint:     rc.Footprint,
				StartAddress:  rc.StartAddress,
				SoftwareLabel: rc.SoftwareLabel,
			})
		}
		return sim.New(sim.Config{Responders: responders}), nil

	case config.WidgetUART:
		return uart.New(uart.Config{
			Device:      out.Widget.Device,
			ReadTimeout: out.Widget.ReadTimeout(),
		}), nil

	case config.WidgetEnttec:
		return enttec.New(enttec.Config{
			Device:      out.Widget.Device,
			Baud:        out.Widget.Baud,
			ReadTimeout: out.Widget.ReadTimeout(),
			BreakMicros: out.Timing.BreakUS,
			MABMicros:   out.Timing.MABUS,
			Rate:        out.Frequency,
		}), nil

	default:
		return nil, fmt.Errorf("unknown widget type %q", out.Widget.Type)
	}
}

// engineConfig maps the output section onto engine settings.
func engineConfig(out config.OutputConfig, log *logging.Logger) engine.Config {
	return engine.Config{
		Frequency:                  out.Frequency,
		ControllerUID:              out.ParsedControllerUID(),
		BreakTime:                  out.Timing.BreakTime(),
		MABTime:                    out.Timing.MABTime(),
		BranchSettle:               out.Timing.BranchSettle(),
		UnicastSettle:              out.Timing.UnicastSettle(),
		RDMGate:                    out.Timing.RDMGate(),
		GranularityLimit:           out.Timing.GranularityLimit(),
		SurfaceUnresolvedDiscovery: out.SurfaceUnresolvedDiscovery,
		Logger:                     log,
	}
}

// healthCheck verifies the infrastructure connections.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
