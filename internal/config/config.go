package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "DRILLHUB"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "drillhub.db"
	defaultLogLevel     = "info"
	defaultAuthIssuer   = "drillhub-backend"
	defaultAuthAudience = "drillhub-clients"
	defaultTokenTTL     = 30 * time.Minute
	defaultCacheTTL     = 5 * time.Minute
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	AuthSigningSecret string
	AuthIssuer        string
	AuthAudience      string
	AuthTokenTTL      time.Duration
	CacheTTL          time.Duration
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
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.audience", defaultAuthAudience)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("cache.ttl", defaultCacheTTL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		AuthSigningSecret: configViper.GetString("auth.signing_secret"),
		AuthIssuer:        configViper.GetString("auth.issuer"),
		AuthAudience:      configViper.GetString("auth.audience"),
		AuthTokenTTL:      configViper.GetDuration("auth.token_ttl"),
		CacheTTL:          configViper.GetDuration("cache.ttl"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}
