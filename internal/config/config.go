// Package config provides YAML-based configuration loading for GramChat.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level GramChat configuration, loaded from gramchat.yaml.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Upload   UploadConfig   `yaml:"upload"`
	Notify   NotifyConfig   `yaml:"notify"`
	Events   EventsConfig   `yaml:"events"`
	Janitor  JanitorConfig  `yaml:"janitor"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig holds HTTP server settings.
type ListenConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects the storage backend. Driver is "mysql" or "sqlite";
// sqlite uses Path, mysql uses Host/Port/Name/User/Password.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// AuthConfig holds JWT signing settings.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// UploadConfig holds attachment upload settings.
type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// NotifyConfig holds staff notification channel settings. Empty tokens
// disable the corresponding adapter.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack notifier settings.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord notifier settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// EventsConfig holds the optional RabbitMQ event bridge settings. An empty
// URL disables publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// JanitorConfig holds the background sweep settings. Schedule is a standard
// 5-field cron expression.
type JanitorConfig struct {
	Schedule          string `yaml:"schedule"`
	StaleAfterMinutes int    `yaml:"stale_after_minutes"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "gramchat.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "gramchat"
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 50 << 20
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "gramchat.events"
	}
	if c.Janitor.Schedule == "" {
		c.Janitor.Schedule = "*/5 * * * *"
	}
	if c.Janitor.StaleAfterMinutes == 0 {
		c.Janitor.StaleAfterMinutes = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when bot_token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when bot_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
