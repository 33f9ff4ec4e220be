package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mailvet/")
	v.AddConfigPath("$HOME/.mailvet")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAILVET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// SMTP probe defaults
	v.SetDefault("smtp.sender", "verify@example.com")
	v.SetDefault("smtp.helo_domain", "localhost")
	v.SetDefault("smtp.timeout", "10s")
	v.SetDefault("smtp.max_retries", 3)
	v.SetDefault("smtp.catch_all_detection", true)
	v.SetDefault("smtp.socks5_proxy", "")
	v.SetDefault("smtp.socks5_username", "")
	v.SetDefault("smtp.socks5_password", "")

	// Microsoft API probe defaults
	v.SetDefault("microsoft_api.enabled", true)
	v.SetDefault("microsoft_api.endpoint", "https://login.microsoftonline.com/common/GetCredentialType")
	v.SetDefault("microsoft_api.timeout", "10s")
	v.SetDefault("microsoft_api.max_retries", 3)
	v.SetDefault("microsoft_api.catch_all_detection", true)

	// Browser probe defaults
	v.SetDefault("browser.enabled", false)

	// DNS defaults
	v.SetDefault("dns.timeout", "5s")

	// Rate limiting defaults
	v.SetDefault("ratelimit.max_requests", 10)
	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.global_per_second", 10)

	// Batch dispatch defaults
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.max_workers", 32)
	v.SetDefault("dispatch.process_isolation", false)
	v.SetDefault("dispatch.min_delay", "2s")
	v.SetDefault("dispatch.max_delay", "4s")
	v.SetDefault("dispatch.worker_join_timeout", "5m")

	// Domain list defaults
	v.SetDefault("domains.whitelist", []string{})
	v.SetDefault("domains.blacklist", []string{})

	// Store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite_path", "./data/mailvet.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/mailvet")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
