package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "WHITELIST"
	defaultHTTPAddress     = "0.0.0.0:3000"
	defaultDatabasePath    = "whitelist.db"
	defaultAdminUser       = "admin"
	defaultAdminPass       = "admin123"
	defaultSessionTTLHours = 12
	defaultLogLevel        = "info"
)

// AppConfig captures runtime configuration for the whitelist API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	AdminUser       string
	AdminPass       string
	FiveMWebhookKey string
	SessionTTL      time.Duration
	LogLevel        string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("admin.user", defaultAdminUser)
	configViper.SetDefault("admin.pass", defaultAdminPass)
	configViper.SetDefault("fivem.webhook_key", "")
	configViper.SetDefault("session.ttl_hours", defaultSessionTTLHours)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		AdminUser:       configViper.GetString("admin.user"),
		AdminPass:       configViper.GetString("admin.pass"),
		FiveMWebhookKey: configViper.GetString("fivem.webhook_key"),
		SessionTTL:      time.Duration(configViper.GetInt("session.ttl_hours")) * time.Hour,
		LogLevel:        configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// validate rejects configurations that cannot serve requests at all. An empty
// fivem webhook key stays legal: pushes fail closed at request time instead.
func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.AdminUser) == "" {
		return fmt.Errorf("admin.user is required")
	}
	if c.AdminPass == "" {
		return fmt.Errorf("admin.pass is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_hours must be positive")
	}
	return nil
}
