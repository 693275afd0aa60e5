// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	Debug       bool   `mapstructure:"debug"`
	AdminChatID int64  `mapstructure:"admin_chat_id"` // 0 disables /announce
}

// DiscordConfig holds Discord gateway configuration.
type DiscordConfig struct {
	Token             string   `mapstructure:"token"`
	DefaultGuild      string   `mapstructure:"default_guild"`
	ChannelCategories []string `mapstructure:"channel_categories"` // category IDs offered during onboarding; empty = all
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// CleanupConfig holds relay record retention settings.
type CleanupConfig struct {
	Schedule      string `mapstructure:"schedule"`       // cron spec
	RetentionDays int    `mapstructure:"retention_days"` // relay records older than this are pruned
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "./data/relay.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.default_guild", "")
	v.SetDefault("discord.channel_categories", []string{})
	v.SetDefault("cleanup.schedule", "0 4 * * *")
	v.SetDefault("cleanup.retention_days", 30)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Read environment variables
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required")
	}
	if c.Cleanup.RetentionDays < 1 {
		return fmt.Errorf("cleanup retention must be at least one day")
	}
	return nil
}

// ServerAddress returns the full server address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
