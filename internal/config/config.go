// Package config loads predictor settings from defaults, an optional YAML
// file and PREDICTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Joserraldo/diabetes/internal/domain"
)

const EnvPrefix = "PREDICTOR"

type Config struct {
	Target TargetConfig `mapstructure:"target"`
	Client ClientConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Mock   MockConfig   `mapstructure:"mock"`
}

type TargetConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type ClientConfig struct {
	// Timeout of zero waits indefinitely.
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	File   string `mapstructure:"file"`
}

type ServerConfig struct {
	Addr      string  `mapstructure:"addr"`
	Model     string  `mapstructure:"model"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// MockConfig tunes the --demo submitter.
type MockConfig struct {
	Speed int    `mapstructure:"speed"`
	Fail  string `mapstructure:"fail"` // "", transport or invalid
}

func (c *Config) TargetValue() domain.Target {
	return domain.Target{Host: c.Target.Host, Port: c.Target.Port}
}

// Load reads configuration. path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.host", domain.DefaultHost)
	v.SetDefault("target.port", domain.DefaultPort)

	v.SetDefault("client.timeout", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("server.addr", ":5001")
	v.SetDefault("server.model", "")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)

	v.SetDefault("mock.speed", 1)
	v.SetDefault("mock.fail", "")
}

func bindEnvVars(v *viper.Viper) error {
	for _, key := range []string{
		"target.host", "target.port",
		"client.timeout",
		"log.level", "log.format", "log.file",
		"server.addr", "server.model", "server.rate_limit", "server.burst",
		"mock.speed", "mock.fail",
	} {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks settings that would otherwise fail late. Host and port are
// free text; a bad target only shows up as a transport failure.
func (c *Config) Validate() error {
	var errs []error
	if c.Client.Timeout < 0 {
		errs = append(errs, fmt.Errorf("client.timeout must not be negative, got %s", c.Client.Timeout))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %v", c.Server.RateLimit))
	}
	if c.Server.Burst < 0 {
		errs = append(errs, fmt.Errorf("server.burst must not be negative, got %d", c.Server.Burst))
	}
	if c.Mock.Speed < 1 {
		errs = append(errs, fmt.Errorf("mock.speed must be at least 1, got %d", c.Mock.Speed))
	}
	switch c.Mock.Fail {
	case "", "transport", "invalid":
	default:
		errs = append(errs, fmt.Errorf("mock.fail must be empty, transport or invalid, got %q", c.Mock.Fail))
	}
	return errors.Join(errs...)
}
