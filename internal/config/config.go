// Package config loads and validates the GroupWarden configuration from
// config.yaml, WARDEN_-prefixed environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const cacheTTL = 30 * time.Minute

// Config defines the application configuration. Values can be set via
// environment variables prefixed with WARDEN_ (e.g. WARDEN_WEBHOOK_DOMAIN)
// or through config.yaml.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Retention RetentionConfig `mapstructure:"retention"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
}

// WebhookConfig holds the public HTTPS domain Telegram delivers updates to.
// The bot session cannot start without it, so it is validated up front.
type WebhookConfig struct {
	Domain string `mapstructure:"domain" validate:"required,fqdn"`
}

type AuthConfig struct {
	Password      string        `mapstructure:"password"       validate:"required,min=8"`
	SessionSecret string        `mapstructure:"session_secret" validate:"required,min=32"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"      validate:"required,min=1m"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

type RetentionConfig struct {
	Days int `mapstructure:"days" validate:"required,min=1"`
}

// SchedulerConfig maps task names to their schedules, mirroring the
// scheduler task registry.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// CacheTTL is the lifetime of whitelist and command cache entries.
func (c *Config) CacheTTL() time.Duration { return cacheTTL }

// Load reads configuration from an optional .env file, config.yaml, and the
// environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("webhook.domain", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("database.path", "storage.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("retention.days", 30)
	v.SetDefault("scheduler.tasks.log_retention.enabled", true)
	v.SetDefault("scheduler.tasks.log_retention.schedule", "0 3 * * *")
}
