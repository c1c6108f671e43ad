package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "RESPAY"

// Load merges defaults, the optional YAML file at path and the environment.
func Load(path string) (*Config, error) {
	v := newViper(Default())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// WriteDefault renders the default configuration to path. An existing file is
// never overwritten.
func WriteDefault(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(newViper(Default()).AllSettings()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return enc.Close()
}

func newViper(d *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default for AutomaticEnv to see it. Durations are set
	// as strings so that WriteDefault renders "15s" and not nanoseconds.
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout.String())
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout.String())
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout.String())
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.scenarios", d.Server.Scenarios)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.url", d.Database.URL)

	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL.String())

	v.SetDefault("live.buffer", d.Live.Buffer)
	v.SetDefault("live.keep_alive", d.Live.KeepAlive.String())

	v.SetDefault("dispatch.dedup_size", d.Dispatch.DedupSize)
	v.SetDefault("dispatch.node", d.Dispatch.Node)

	v.SetDefault("reminders.enabled", d.Reminders.Enabled)
	v.SetDefault("reminders.interval", d.Reminders.Interval.String())
	v.SetDefault("reminders.days_before", d.Reminders.DaysBefore)

	v.SetDefault("audiences", d.Audiences)
	return v
}
