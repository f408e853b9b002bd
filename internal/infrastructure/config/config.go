package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ThermLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig contains site-wide settings, including the timezone pair
// the schedule normalizer runs on.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// OperatingTimezone is the single zone all thermostats run in;
	// schedule windows are normalized into it.
	OperatingTimezone string `yaml:"operating_timezone"`

	// FallbackTimezone is used when a caller's timezone cannot be
	// resolved. Lookup failures never fail a scheduling operation.
	FallbackTimezone string `yaml:"fallback_timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// GatewayConfig contains device gateway connection and dispatch pacing
// settings.
type GatewayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ConnectTimeout and WriteTimeout are in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
	WriteTimeout   int `yaml:"write_timeout"`

	// StaggerUnit is the delay granularity between frames of one
	// change-set, in milliseconds.
	StaggerUnit int `yaml:"stagger_unit"`

	// RecheckWait is the fixed wait before a resend check, in seconds.
	RecheckWait int `yaml:"recheck_wait"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: THERMLINK_SECTION_KEY
// For example: THERMLINK_DATABASE_PATH, THERMLINK_GATEWAY_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:                "site-001",
			Name:              "ThermLink",
			OperatingTimezone: "Europe/Skopje",
			FallbackTimezone:  "Asia/Jerusalem",
		},
		Database: DatabaseConfig{
			Path:        "./data/thermlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Gateway: GatewayConfig{
			Host:           "localhost",
			Port:           9000,
			ConnectTimeout: 10,
			WriteTimeout:   5,
			StaggerUnit:    1000,
			RecheckWait:    5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "thermlink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: THERMLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("THERMLINK_SITE_OPERATING_TIMEZONE"); v != "" {
		cfg.Site.OperatingTimezone = v
	}

	// Database
	if v := os.Getenv("THERMLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Gateway
	if v := os.Getenv("THERMLINK_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}
	if v := os.Getenv("THERMLINK_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("THERMLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("THERMLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("THERMLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("THERMLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Site.OperatingTimezone == "" {
		errs = append(errs, "site.operating_timezone is required")
	}
	if c.Site.FallbackTimezone == "" {
		errs = append(errs, "site.fallback_timezone is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Gateway validation
	if c.Gateway.Host == "" {
		errs = append(errs, "gateway.host is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.StaggerUnit < 0 {
		errs = append(errs, "gateway.stagger_unit must not be negative")
	}
	if c.Gateway.RecheckWait < 1 {
		errs = append(errs, "gateway.recheck_wait must be at least 1 second")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GatewayAddress returns the gateway's host:port.
func (c *Config) GatewayAddress() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// GetConnectTimeout returns the gateway connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Gateway.ConnectTimeout) * time.Second
}

// GetWriteTimeout returns the gateway write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Gateway.WriteTimeout) * time.Second
}

// GetStaggerUnit returns the dispatch stagger granularity as a Duration.
func (c *Config) GetStaggerUnit() time.Duration {
	return time.Duration(c.Gateway.StaggerUnit) * time.Millisecond
}

// GetRecheckWait returns the resend-check wait as a Duration.
func (c *Config) GetRecheckWait() time.Duration {
	return time.Duration(c.Gateway.RecheckWait) * time.Second
}
