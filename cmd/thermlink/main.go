// ThermLink Core - Thermostat Command Core
//
// This is the main entry point for the ThermLink Core application.
// ThermLink drives networked thermostat estates through a TCP gateway:
//   - Register-level command encoding (individual frames + settings blocks)
//   - Weekly schedule windows normalised to the site's operating timezone
//   - Append-only command ledger with resend-on-missing-ack
//   - Master/slave relay cascade for paired units
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/thermlink/thermlink-core/migrations"

	"github.com/thermlink/thermlink-core/internal/command"
	"github.com/thermlink/thermlink-core/internal/dispatch"
	"github.com/thermlink/thermlink-core/internal/infrastructure/config"
	"github.com/thermlink/thermlink-core/internal/infrastructure/database"
	"github.com/thermlink/thermlink-core/internal/infrastructure/influxdb"
	"github.com/thermlink/thermlink-core/internal/infrastructure/logging"
	"github.com/thermlink/thermlink-core/internal/infrastructure/mqtt"
	"github.com/thermlink/thermlink-core/internal/schedule"
	"github.com/thermlink/thermlink-core/internal/thermostat"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ThermLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories and ledger
	thermostats := thermostat.NewSQLiteRepository(db.DB)
	ledger := command.NewSQLiteLedger(db.DB)
	windows := schedule.NewSQLiteRepository(db.DB)

	// Schedule normaliser for the site's operating timezone
	normalizer, err := schedule.NewNormalizer(cfg.Site.OperatingTimezone, cfg.Site.FallbackTimezone)
	if err != nil {
		return fmt.Errorf("loading timezones: %w", err)
	}
	log.Info("schedule normaliser ready",
		"operating_tz", cfg.Site.OperatingTimezone,
		"fallback_tz", cfg.Site.FallbackTimezone,
	)

	// Connect to MQTT broker
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var metrics dispatch.MetricsWriter
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Gateway and dispatcher
	gateway := dispatch.NewTCPGateway(dispatch.GatewayConfig{
		Address:        cfg.GatewayAddress(),
		ConnectTimeout: cfg.GetConnectTimeout(),
		WriteTimeout:   cfg.GetWriteTimeout(),
	})
	dispatcher := dispatch.NewDispatcher(gateway, ledger,
		dispatch.WithRecheckWait(cfg.GetRecheckWait()),
		dispatch.WithLogger(log),
	)
	defer func() {
		log.Info("stopping dispatcher")
		dispatcher.Close()
	}()
	log.Info("dispatcher started",
		"gateway", cfg.GatewayAddress(),
		"stagger_unit", cfg.GetStaggerUnit(),
		"recheck_wait", cfg.GetRecheckWait(),
	)

	// Command lifecycle events on the bus
	events := dispatch.NewEvents(mqttClient, log)

	// Acknowledgement listener flips ledger records to executed
	ackListener := dispatch.NewAckListener(mqttClient, ledger, log)
	if err := ackListener.Start(); err != nil {
		return fmt.Errorf("starting ack listener: %w", err)
	}
	log.Info("ack listener subscribed", "topic", mqtt.Topics{}.AllCommandAcks())

	// Dispatch service ties it together
	svc := dispatch.NewService(dispatch.ServiceConfig{
		Thermostats: thermostats,
		Ledger:      ledger,
		Dispatcher:  dispatcher,
		Events:      events,
		Metrics:     metrics,
		Logger:      log,
		StaggerUnit: cfg.GetStaggerUnit(),
	})

	// Bus intake: change-sets and schedule replacements from external
	// surfaces (apps, relays, the scheduling UI)
	intake := dispatch.NewIntake(mqttClient, svc, normalizer, windows, log)
	if err := intake.Start(); err != nil {
		return fmt.Errorf("starting bus intake: %w", err)
	}
	log.Info("bus intake subscribed",
		"changesets", mqtt.Topics{}.AllChangeSets(),
		"schedules", mqtt.Topics{}.AllScheduleSets(),
	)

	// Deliver schedule windows at their start minute
	operating, err := time.LoadLocation(cfg.Site.OperatingTimezone)
	if err != nil {
		return fmt.Errorf("loading operating timezone: %w", err)
	}
	go runWindowScheduler(ctx, windows, svc, operating, log)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Dispatcher
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("ThermLink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses THERMLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("THERMLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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

// windowDeliverer sends a pre-encoded schedule window frame to its unit.
type windowDeliverer interface {
	DeliverWindow(ctx context.Context, w schedule.Window) (bool, error)
}

// runWindowScheduler wakes once a minute in the operating timezone and
// delivers every stored window whose start matches the current day and
// HH:MM clock. Windows are stored pre-normalised, so no timezone
// conversion happens here.
func runWindowScheduler(ctx context.Context, windows schedule.Repository, deliverer windowDeliverer, operating *time.Location, log dispatch.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastFired string

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			local := now.In(operating)
			clock := local.Format("15:04")
			if clock == lastFired {
				continue
			}
			lastFired = clock

			deliverDueWindows(ctx, windows, deliverer, int(local.Weekday()), clock, log)
		}
	}
}

// deliverDueWindows sends all windows starting at the given day and clock.
func deliverDueWindows(ctx context.Context, windows schedule.Repository, deliverer windowDeliverer, day int, clock string, log dispatch.Logger) {
	due, err := windows.ListByDay(ctx, day)
	if err != nil {
		log.Error("listing schedule windows", "day", day, "error", err)
		return
	}

	for _, w := range due {
		if w.StartDay != day || w.StartTime != clock {
			continue
		}

		// DeliverWindow blocks on the resend check, so each window gets
		// its own goroutine.
		go func(w schedule.Window) {
			resent, err := deliverer.DeliverWindow(ctx, w)
			if err != nil {
				log.Error("delivering schedule window",
					"window_id", w.ID,
					"thermostat_id", w.ThermostatID,
					"error", err,
				)
				return
			}
			log.Info("schedule window delivered",
				"window_id", w.ID,
				"thermostat_id", w.ThermostatID,
				"command", w.Name,
				"resent", resent,
			)
		}(w)
	}
}
