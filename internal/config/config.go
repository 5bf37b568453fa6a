package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	ServiceName string        `yaml:"service_name"`
	DataDir     string        `yaml:"data_dir"`
	Storage     StorageConfig `yaml:"storage"`
	Server      ServerConfig  `yaml:"server"`
	Log         LogConfig     `yaml:"log"`
	Export      ExportConfig  `yaml:"export"`
	Alert       AlertConfig   `yaml:"alert"`
}

// StorageConfig selects the history/tariff backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ExportConfig drives the scheduled history export. An empty Schedule
// disables the worker. Schedule is either a number of seconds or a standard
// five-field cron expression. FontPath is a TrueType font for PDF output.
type ExportConfig struct {
	Schedule string `yaml:"schedule"`
	Dir      string `yaml:"dir"`
	Format   string `yaml:"format"`
	FontPath string `yaml:"font"`
}

// AlertConfig configures the webhook notified when the scheduled export
// keeps failing. An empty WebhookURL disables alerting.
type AlertConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	WebhookType string `yaml:"webhook_type"`
	MinFailures int    `yaml:"min_failures"`
}

var supportedDrivers = map[string]bool{
	"json":         true,
	"memory":       true,
	"sqlite":       true,
	"postgres":     true,
	"postgrespool": true,
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ServiceName: "utilitybill",
		DataDir:     ".",
		Storage: StorageConfig{
			Driver:      "json",
			AutoMigrate: true,
		},
		Server: ServerConfig{Port: "8000"},
		Log:    LogConfig{Level: "info"},
		Export: ExportConfig{Dir: "exports", Format: "xlsx"},
		Alert:  AlertConfig{MinFailures: 1},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// UTILITYBILL_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("UTILITYBILL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.DataDir = getenvDefault("UTILITYBILL_DATA_DIR", cfg.DataDir)
	cfg.Storage.Driver = getenvDefault("UTILITYBILL_DB_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getenvDefault("UTILITYBILL_DB_DSN", cfg.Storage.DSN)
	cfg.Storage.AutoMigrate = getenvBoolDefault("UTILITYBILL_AUTO_MIGRATE", cfg.Storage.AutoMigrate)
	cfg.Server.Port = getenvDefault("PORT", cfg.Server.Port)
	cfg.Log.Level = getenvDefault("UTILITYBILL_LOG_LEVEL", cfg.Log.Level)
	cfg.Export.Schedule = getenvDefault("UTILITYBILL_EXPORT_SCHEDULE", cfg.Export.Schedule)
	cfg.Export.Dir = getenvDefault("UTILITYBILL_EXPORT_DIR", cfg.Export.Dir)
	cfg.Export.Format = getenvDefault("UTILITYBILL_EXPORT_FORMAT", cfg.Export.Format)
	cfg.Export.FontPath = getenvDefault("UTILITYBILL_EXPORT_FONT", cfg.Export.FontPath)
	cfg.Alert.WebhookURL = getenvDefault("UTILITYBILL_ALERT_WEBHOOK_URL", cfg.Alert.WebhookURL)
	cfg.Alert.WebhookType = getenvDefault("UTILITYBILL_ALERT_WEBHOOK_TYPE", cfg.Alert.WebhookType)
	cfg.Alert.MinFailures = getenvIntDefault("UTILITYBILL_ALERT_MIN_FAILURES", cfg.Alert.MinFailures)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot fix up on its own.
func (c Config) Validate() error {
	if c.Storage.Driver == "" {
		return errors.New("config: storage driver required")
	}
	if !supportedDrivers[c.Storage.Driver] {
		return fmt.Errorf("config: unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" || c.Storage.Driver == "postgrespool" {
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: UTILITYBILL_DB_DSN is required for driver %s", c.Storage.Driver)
		}
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("config: invalid port %q", c.Server.Port)
	}
	switch c.Export.Format {
	case "xlsx", "pdf":
	default:
		return fmt.Errorf("config: unsupported export format %q", c.Export.Format)
	}
	switch c.Alert.WebhookType {
	case "", "slack", "discord", "generic":
	default:
		return fmt.Errorf("config: unsupported alert webhook type %q", c.Alert.WebhookType)
	}
	if c.Alert.MinFailures < 1 {
		return fmt.Errorf("config: alert min_failures must be at least 1, got %d", c.Alert.MinFailures)
	}
	return nil
}

// LoadDotEnv loads the first .env file found in the working directory or
// one of its two parents. It reports the file it loaded, or "" if none.
func LoadDotEnv() (string, error) {
	paths := []string{".env"}
	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		paths = append(paths,
			filepath.Join(parentDir, ".env"),
			filepath.Join(filepath.Dir(parentDir), ".env"),
		)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", fmt.Errorf("load %s: %w", p, err)
		}
		abs, _ := filepath.Abs(p)
		return abs, nil
	}
	return "", nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
