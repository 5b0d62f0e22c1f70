// Package config loads service configuration from the environment.
// A .env file is honored when present (loaded by cmd/server via godotenv);
// real environment variables always win.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/warp/invoice-engine/logging"
)

// Config holds everything the server needs at startup.
type Config struct {
	// HTTP
	Port        string
	CORSOrigins []string

	// Storage
	DBPath string

	// Workflow
	// SendBackResume selects where a re-submitted SENTBACK document
	// re-enters the chain: "restart" (tier 1) or "level" (the tier that
	// issued the send-back).
	SendBackResume string

	// Approver membership seeded into the store at startup.
	ApproverLevel1 []string
	ApproverLevel2 []string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		CORSOrigins:    splitEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080"),
		DBPath:         getEnv("DB_PATH", "invoices.db"),
		SendBackResume: getEnv("SENDBACK_RESUME", "restart"),
		ApproverLevel1: splitEnv("APPROVER_LEVEL1", ""),
		ApproverLevel2: splitEnv("APPROVER_LEVEL2", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:  getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:      getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SendBackResume != "restart" && c.SendBackResume != "level" {
		return fmt.Errorf("SENDBACK_RESUME must be 'restart' or 'level', got %q", c.SendBackResume)
	}
	return nil
}

// ResumeFromSentBack reports whether a re-submit resumes at the tier
// that issued the send-back.
func (c *Config) ResumeFromSentBack() bool {
	return c.SendBackResume == "level"
}

// GetLoggerConfig returns the logging configuration slice of the config.
func (c *Config) GetLoggerConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
