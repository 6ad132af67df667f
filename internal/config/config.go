// Package config reads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Shared holds the settings both processes read.
type Shared struct {
	TuningFile string
	SampleRate float64
	LogLevel   string
	LogFile    string
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
}

func loadShared(logFile string) Shared {
	return Shared{
		TuningFile: getEnvOrDefault("TABVOICE_TUNING_FILE", ""),
		SampleRate: float64(getEnvIntOrDefault("TABVOICE_SAMPLE_RATE", 48000)),
		LogLevel:   strings.ToLower(getEnvOrDefault("TABVOICE_LOG_LEVEL", "info")),
		LogFile:    getEnvOrDefault("TABVOICE_LOG_FILE", logFile),
	}
}

func (s Shared) validate() error {
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: TABVOICE_LOG_LEVEL %q is not one of debug, info, warn, error", s.LogLevel)
	}
	if s.SampleRate < 8000 {
		return fmt.Errorf("config: TABVOICE_SAMPLE_RATE must be at least 8000")
	}
	return nil
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
