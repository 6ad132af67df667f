package config

import "time"

// EngineConfig configures cmd/engine.
type EngineConfig struct {
	Shared

	CoordinatorURL string
	Retry          time.Duration
	InboxSize      int
	RampWindow     time.Duration
	AcquireTimeout time.Duration
}

// LoadEngine reads engine configuration from environment variables.
func LoadEngine() (*EngineConfig, error) {
	loadDotEnv()
	cfg := &EngineConfig{
		Shared:         loadShared("logs/engine.log"),
		CoordinatorURL: getEnvOrDefault("TABVOICE_COORDINATOR_URL", "ws://127.0.0.1:8190/api/v1/engine/ws"),
		Retry:          millis(getEnvIntOrDefault("TABVOICE_ENGINE_RETRY_MS", 1000)),
		InboxSize:      getEnvIntOrDefault("TABVOICE_ENGINE_INBOX", 64),
		RampWindow:     millis(getEnvIntOrDefault("TABVOICE_RAMP_MS", 100)),
		AcquireTimeout: millis(getEnvIntOrDefault("TABVOICE_ACQUIRE_TIMEOUT_MS", 10000)),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.InboxSize < 1 {
		cfg.InboxSize = 1
	}
	return cfg, nil
}
