package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"gopkg.in/yaml.v2"
)

// AppFile is the app config path, relative to the working directory.
var AppFile = "app.yaml"

const (
	defaultPort          = 9000
	defaultJWTSecret     = "nightgard-secret-key-change-in-production"
	defaultRetentionDays = 30
)

// DefaultAppConfig returns the configuration written on first start.
func DefaultAppConfig() *types.AppConfig {
	return &types.AppConfig{
		Port:              defaultPort,
		JWTSecret:         defaultJWTSecret,
		JWTExpiryDuration: 24,
		Mode:              "prod",
		Database: types.DatabaseConfig{
			Type:             "sqlite",
			Database:         "nightgard.db",
			LogRetentionDays: defaultRetentionDays,
		},
		DDNS: types.DDNSConfig{
			IntervalSeconds: int(ddns.DefaultInterval / time.Second),
			AutoStart:       true,
		},
	}
}

// LoadAppConfig reads AppFile into types.NightGardAppConfig. A missing file is
// replaced by the defaults, which are written back.
func LoadAppConfig() error {
	if _, err := os.Stat(AppFile); os.IsNotExist(err) {
		types.NightGardAppConfig = DefaultAppConfig()
		if saveErr := SaveAppConfig(); saveErr != nil {
			log.Printf("Warning: failed to save default app config: %v", saveErr)
		} else {
			log.Printf("Created default %s configuration file", AppFile)
		}
		return nil
	}

	cfg, err := ReadAppConfig(AppFile)
	if err != nil {
		return err
	}
	types.NightGardAppConfig = cfg
	return nil
}

// ReadAppConfig parses path and fills unset fields with defaults.
func ReadAppConfig(path string) (*types.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app config file failed: %w", err)
	}

	cfg := &types.AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse app config file failed: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *types.AppConfig) {
	def := DefaultAppConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = def.JWTSecret
	}
	if cfg.JWTExpiryDuration <= 0 {
		cfg.JWTExpiryDuration = def.JWTExpiryDuration
	}
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = def.Database.Type
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = def.Database.Database
	}
	if cfg.Database.LogRetentionDays <= 0 {
		cfg.Database.LogRetentionDays = def.Database.LogRetentionDays
	}
	if cfg.DDNS.IntervalSeconds <= 0 {
		cfg.DDNS.IntervalSeconds = def.DDNS.IntervalSeconds
	}
}

// Validate rejects values the daemon cannot run with.
func Validate(cfg *types.AppConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	if cfg.Mode != "dev" && cfg.Mode != "test" && cfg.Mode != "prod" {
		return fmt.Errorf("mode must be one of: dev, test, prod")
	}
	switch cfg.Database.Type {
	case "sqlite", "sqlite-pure":
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
	for _, ep := range cfg.DDNS.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("ddns endpoint url cannot be empty")
		}
	}
	return nil
}

// SaveAppConfig writes types.NightGardAppConfig to AppFile, keeping the
// previous file as AppFile.backup.
func SaveAppConfig() error {
	if types.NightGardAppConfig == nil {
		return fmt.Errorf("app config is nil")
	}

	data, err := yaml.Marshal(types.NightGardAppConfig)
	if err != nil {
		return fmt.Errorf("marshal app config failed: %w", err)
	}

	if old, err := os.ReadFile(AppFile); err == nil {
		if err := os.WriteFile(AppFile+".backup", old, 0o600); err != nil {
			log.Printf("Warning: failed to backup %s: %v", AppFile, err)
		}
	}

	if err := os.WriteFile(AppFile, data, 0o600); err != nil {
		return fmt.Errorf("save app config file failed: %w", err)
	}
	return nil
}

// GetAppConfig returns the loaded config, or nil before LoadAppConfig.
func GetAppConfig() *types.AppConfig {
	return types.NightGardAppConfig
}

// AgentConfig is the bootstrap agent configuration from the ddns section.
func AgentConfig(c types.DDNSConfig) ddns.Config {
	return ddns.Config{
		Domain:   c.Domain,
		Token:    c.Token,
		Interval: c.Interval(),
	}
}

// Endpoints converts the configured echo endpoints, falling back to
// ddns.DefaultEndpoints when none are set.
func Endpoints(c types.DDNSConfig) []ddns.Endpoint {
	if len(c.Endpoints) == 0 {
		return ddns.DefaultEndpoints
	}
	eps := make([]ddns.Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		eps = append(eps, ddns.Endpoint{URL: ep.URL, Field: ep.Field})
	}
	return eps
}
