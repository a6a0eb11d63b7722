package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// Strategy names accepted by the proxy.
const (
	StrategyRoundRobin         = "round-robin"
	StrategyWeightedRoundRobin = "weighted-round-robin"
	StrategyRandom             = "random"
	StrategyLeastConn          = "least-conn"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type AdminConfig struct {
	Address string `mapstructure:"address"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

type SessionsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	TTL     string `mapstructure:"ttl"`
}

type BreakerConfig struct {
	Threshold    int    `mapstructure:"threshold"`
	ResetTimeout string `mapstructure:"reset_timeout"`
}

type BackendConfig struct {
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Admin       AdminConfig       `mapstructure:"admin"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Sessions    SessionsConfig    `mapstructure:"sessions"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Backends    []BackendConfig   `mapstructure:"backends"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// HealthCheckInterval returns the parsed probe interval.
// Validate guarantees the string parses.
func (c *Config) HealthCheckInterval() time.Duration {
	d, _ := time.ParseDuration(c.HealthCheck.Interval)
	return d
}

// SessionTTL returns the parsed sticky session TTL.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Sessions.TTL)
	return d
}

// BreakerResetTimeout returns the parsed breaker reset timeout.
func (c *Config) BreakerResetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.ResetTimeout)
	return d
}

func setDefaults() {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("admin.address", ":8081")
	viper.SetDefault("health_check.interval", "10s")
	viper.SetDefault("strategy.type", StrategyRoundRobin)
	viper.SetDefault("sessions.enabled", false)
	viper.SetDefault("sessions.ttl", "30m")
	viper.SetDefault("breaker.threshold", 5)
	viper.SetDefault("breaker.reset_timeout", "30s")
	viper.SetDefault("logging.level", "info")
}

func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.Required, validation.By(validateServer)),
		validation.Field(&c.Admin, validation.Required, validation.By(validateAdmin)),
		validation.Field(&c.HealthCheck, validation.Required, validation.By(validateHealthCheck)),
		validation.Field(&c.Strategy, validation.Required, validation.By(validateStrategy)),
		validation.Field(&c.Sessions, validation.By(validateSessions)),
		validation.Field(&c.Breaker, validation.By(validateBreaker)),
		validation.Field(&c.Backends,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackend)),
		),
		validation.Field(&c.Logging, validation.Required, validation.By(validateLogging)),
	)
}

func validateServer(value interface{}) error {
	sc, ok := value.(ServerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ServerConfig")
	}

	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&sc.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
	)
}

func validateAdmin(value interface{}) error {
	ac, ok := value.(AdminConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an AdminConfig")
	}

	return validation.ValidateStruct(&ac,
		validation.Field(&ac.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
	)
}

func validateHealthCheck(value interface{}) error {
	hc, ok := value.(HealthCheckConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
	}

	return validation.ValidateStruct(&hc,
		validation.Field(&hc.Interval,
			validation.Required,
			validation.By(validateDuration),
		),
	)
}

func validateStrategy(value interface{}) error {
	sc, ok := value.(StrategyConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
	}

	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Type,
			validation.Required,
			validation.In(
				StrategyRoundRobin,
				StrategyWeightedRoundRobin,
				StrategyRandom,
				StrategyLeastConn,
			),
		),
	)
}

func validateSessions(value interface{}) error {
	sc, ok := value.(SessionsConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a SessionsConfig")
	}

	if !sc.Enabled {
		return nil
	}

	return validation.ValidateStruct(&sc,
		validation.Field(&sc.TTL,
			validation.Required,
			validation.By(validateDuration),
		),
	)
}

func validateBreaker(value interface{}) error {
	bc, ok := value.(BreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
	}

	return validation.ValidateStruct(&bc,
		validation.Field(&bc.Threshold, validation.Required, validation.Min(1)),
		validation.Field(&bc.ResetTimeout, validation.Required, validation.By(validateDuration)),
	)
}

func validateLogging(value interface{}) error {
	lc, ok := value.(LoggingConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
	}

	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Level,
			validation.Required,
			validation.In("debug", "info", "warn", "error"),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateBackend(value interface{}) error {
	bc, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if bc.URL == "" {
		return validation.NewError("validation_empty_url", "backend URL cannot be empty")
	}

	parsed, err := url.Parse(bc.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsed.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if bc.Weight < 1 {
		return validation.NewError("validation_invalid_weight", "weight must be at least 1")
	}

	return nil
}
