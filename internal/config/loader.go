package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the configuration values for the scheduler service.
// Values are resolved in three layers: built-in defaults, an optional YAML
// config file, and finally environment variables, with later layers winning.
type Config struct {
	HTTPPort         int    `yaml:"http_port"`
	SQLiteDSN        string `yaml:"sqlite_dsn"`
	SessionSecret    string `yaml:"session_secret"`
	SessionTTL       time.Duration
	SessionTTLRaw    string `yaml:"session_ttl"`
	SessionPurgeCron string `yaml:"session_purge_cron"`
	LogLevel         string `yaml:"log_level"`
}

// Load resolves configuration from the optional YAML file named by
// SCHEDULER_CONFIG_FILE and the process environment.
//
// The loader applies sensible defaults for optional fields while validating
// required values and reporting the offending variable names.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		SQLiteDSN:        "file:scheduler.db?_foreign_keys=on",
		SessionTTL:       24 * time.Hour,
		SessionPurgeCron: "@hourly",
		LogLevel:         "info",
	}

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("SCHEDULER_SESSION_SECRET")); secret != "" {
		cfg.SessionSecret = secret
	}
	if cfg.SessionSecret == "" {
		missing = append(missing, "SCHEDULER_SESSION_SECRET")
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SCHEDULER_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if cronValue := strings.TrimSpace(os.Getenv("SCHEDULER_SESSION_PURGE_CRON")); cronValue != "" {
		cfg.SessionPurgeCron = cronValue
	}

	if level := strings.TrimSpace(os.Getenv("SCHEDULER_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	default:
		invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required configuration values are missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("configuration values are invalid: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if raw := strings.TrimSpace(cfg.SessionTTLRaw); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("config file %s: session_ttl is invalid: %q", path, raw)
		}
		cfg.SessionTTL = ttl
	}

	return nil
}
