/*
Package config holds the service configuration.

SOURCES (later wins):
  1. Default()
  2. Optional YAML file (--config)
  3. RESPAY_* environment variables, with "." in a key replaced by "_"
     e.g. RESPAY_DATABASE_DRIVER=postgres, RESPAY_AUTH_SECRET=...

EXAMPLE FILE:

	server:
	  addr: :8080
	database:
	  driver: sqlite
	  path: respay.db
	reminders:
	  days_before: [7, 1, 0]

SEE ALSO:
  - loader.go: viper wiring and `respay config init`
*/
package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig        `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Auth      AuthConfig          `yaml:"auth" mapstructure:"auth"`
	Live      LiveConfig          `yaml:"live" mapstructure:"live"`
	Dispatch  DispatchConfig      `yaml:"dispatch" mapstructure:"dispatch"`
	Reminders ReminderConfig      `yaml:"reminders" mapstructure:"reminders"`
	// Audiences maps a broadcast audience to recipient refs. Keys are
	// lower-cased on load.
	Audiences map[string][]string `yaml:"audiences" mapstructure:"audiences"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	// Scenarios exposes the demo data endpoints. Never enable in production:
	// loading a scenario wipes the database.
	Scenarios bool `yaml:"scenarios" mapstructure:"scenarios"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path is the SQLite file, ":memory:" for a throwaway database.
	Path string `yaml:"path" mapstructure:"path"`
	// URL is the Postgres connection string.
	URL string `yaml:"url" mapstructure:"url"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret" mapstructure:"secret"`
	Issuer   string        `yaml:"issuer" mapstructure:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

type LiveConfig struct {
	Buffer    int           `yaml:"buffer" mapstructure:"buffer"`
	KeepAlive time.Duration `yaml:"keep_alive" mapstructure:"keep_alive"`
}

type DispatchConfig struct {
	DedupSize int `yaml:"dedup_size" mapstructure:"dedup_size"`
	// Node is this replica's snowflake node (0..1023).
	Node int64 `yaml:"node" mapstructure:"node"`
}

type ReminderConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
	DaysBefore []int         `yaml:"days_before" mapstructure:"days_before"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "respay.db",
		},
		Auth: AuthConfig{
			Secret:   "dev-secret-change-me",
			Issuer:   "respay",
			TokenTTL: 24 * time.Hour,
		},
		Live: LiveConfig{
			Buffer:    16,
			KeepAlive: 25 * time.Second,
		},
		Dispatch: DispatchConfig{
			DedupSize: 4096,
		},
		Reminders: ReminderConfig{
			Enabled:    true,
			Interval:   time.Hour,
			DaysBefore: []int{7, 1, 0},
		},
		Audiences: map[string][]string{},
	}
}

// Validate reports the first setting the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Dispatch.Node < 0 || c.Dispatch.Node > 1023 {
		return fmt.Errorf("dispatch.node %d out of range 0..1023", c.Dispatch.Node)
	}
	if c.Reminders.Enabled && c.Reminders.Interval <= 0 {
		return errors.New("reminders.interval must be positive")
	}
	for _, d := range c.Reminders.DaysBefore {
		if d < 0 {
			return fmt.Errorf("reminders.days_before: negative value %d", d)
		}
	}
	return nil
}
