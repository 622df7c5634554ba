// Package config loads runtime settings from defaults, an optional YAML
// file and WBS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"siteplan/internal/db"
	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
)

// Config is the resolved application configuration.
type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Status StatusConfig `mapstructure:"status"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory, sqlite, postgres
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// StatusConfig selects the status transition policy.
type StatusConfig struct {
	Policy string `mapstructure:"policy"`
}

// DefaultSQLitePath is used when the sqlite driver has no DSN.
const DefaultSQLitePath = "wbs.db"

// Defaults applied before any file or environment value.
var defaults = map[string]any{
	"store.driver":  db.DriverSQLite,
	"server.addr":   ":8080",
	"log.level":     "info",
	"log.format":    "text",
	"status.policy": string(task.PolicyPermissive),
}

// Load resolves configuration. An empty path searches ./wbs.yaml and
// $HOME/.wbs/wbs.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wbs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.wbs")
	}

	v.SetEnvPrefix("WBS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default, so Unmarshal only sees the env value once it is bound.
	_ = v.BindEnv("store.dsn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Store.DSN == "" {
		cfg.Store.DSN = DefaultDSN(cfg.Store.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDSN returns the DSN used when driver is configured without one:
// DefaultSQLitePath for sqlite, $DATABASE_URL for postgres, empty otherwise.
func DefaultDSN(driver string) string {
	switch driver {
	case db.DriverSQLite:
		return DefaultSQLitePath
	case db.DriverPostgres:
		return os.Getenv("DATABASE_URL")
	}
	return ""
}

// SetDriver switches the store driver. Switching to another driver drops
// the DSN resolved for the old one.
func (c *Config) SetDriver(driver string) {
	if driver == c.Store.Driver {
		return
	}
	c.Store.Driver = driver
	c.Store.DSN = DefaultDSN(driver)
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case db.DriverMemory, db.DriverSQLite, db.DriverPostgres:
	default:
		return wbserr.ConfigInvalid("store.driver", fmt.Sprintf("unknown driver %q", c.Store.Driver))
	}
	if c.Store.Driver != db.DriverMemory && c.Store.DSN == "" {
		return wbserr.ConfigInvalid("store.dsn", "required for "+c.Store.Driver)
	}
	if _, err := c.LogLevel(); err != nil {
		return wbserr.ConfigInvalid("log.level", err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return wbserr.ConfigInvalid("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	if _, err := task.ParsePolicy(c.Status.Policy); err != nil {
		return wbserr.ConfigInvalid("status.policy", err.Error())
	}
	return nil
}

// LogLevel parses the configured slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return level, nil
}

// Policy returns the parsed status policy. Validate has already checked it.
func (c *Config) Policy() task.Policy {
	p, _ := task.ParsePolicy(c.Status.Policy)
	return p
}
