// Package config handles application configuration from environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr" validate:"required"`

	DatabaseDriver string `mapstructure:"database_driver" validate:"oneof=sqlite postgres"`
	DatabaseURL    string `mapstructure:"database_url" validate:"required"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`
	LogPath   string `mapstructure:"log_path"`

	SecretKey string        `mapstructure:"secret_key" validate:"required"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`

	WebhookVerifyToken   string        `mapstructure:"webhook_verify_token" validate:"required"`
	InstagramAPIBase     string        `mapstructure:"instagram_api_base" validate:"required,url"`
	InstagramSendTimeout time.Duration `mapstructure:"instagram_send_timeout" validate:"gt=0"`
	FallbackResponse     string        `mapstructure:"match_fallback_response"`

	CORSOrigins []string `mapstructure:"cors_origins"`

	TelegramBotToken    string `mapstructure:"telegram_bot_token"`
	TelegramAlertChatID int64  `mapstructure:"telegram_alert_chat_id"`

	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval" validate:"gte=0"`
}

var defaults = map[string]any{
	"http_addr":               ":8000",
	"database_driver":         "sqlite",
	"database_url":            "./data/autoreply.db",
	"log_level":               "info",
	"log_format":              "text",
	"log_path":                "",
	"secret_key":              "",
	"token_ttl":               7 * 24 * time.Hour,
	"webhook_verify_token":    "",
	"instagram_api_base":      "https://graph.instagram.com/v18.0",
	"instagram_send_timeout":  10 * time.Second,
	"match_fallback_response": "",
	"cors_origins":            "http://localhost:5173,http://localhost:5174",
	"telegram_bot_token":      "",
	"telegram_alert_chat_id":  0,
	"maintenance_interval":    6 * time.Hour,
}

// Load reads configuration from defaults, the optional YAML file named by
// CONFIG_FILE (or ./config.yaml), and environment variables, in increasing
// priority, then validates it.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AlertsEnabled reports whether delivery failures should be sent to Telegram.
func (c *Config) AlertsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAlertChatID != 0
}

// splitList trims entries and drops empty ones. Values coming from a single
// comma separated string are split as well.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}
