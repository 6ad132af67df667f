package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EngineInProcess = "inprocess"
	EngineRemote    = "remote"
)

// CoordinatorConfig configures cmd/coordinator.
type CoordinatorConfig struct {
	Shared

	BindAddr          string
	PortCandidates    []string
	PortAutoFallback  bool
	EngineMode        string
	EngineWait        time.Duration
	TransitionTimeout time.Duration

	WatchTabs      bool
	CDPAddress     string
	CDPPort        int
	JournalDir     string
	NotifyURL      string
	LaunchBrowser  bool
	BrowserBinary  string
	BrowserProfile string
}

// LoadCoordinator reads coordinator configuration from environment variables.
func LoadCoordinator() (*CoordinatorConfig, error) {
	loadDotEnv()
	cfg := &CoordinatorConfig{
		Shared:            loadShared("logs/coordinator.log"),
		BindAddr:          getEnvOrDefault("TABVOICE_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:    splitList(getEnvOrDefault("TABVOICE_PORT_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192,127.0.0.1:8193")),
		PortAutoFallback:  getEnvBoolOrDefault("TABVOICE_PORT_AUTO_FALLBACK", true),
		EngineMode:        strings.ToLower(getEnvOrDefault("TABVOICE_ENGINE_MODE", EngineInProcess)),
		EngineWait:        millis(getEnvIntOrDefault("TABVOICE_ENGINE_WAIT_MS", 5000)),
		TransitionTimeout: millis(getEnvIntOrDefault("TABVOICE_TRANSITION_TIMEOUT_MS", 10000)),
		WatchTabs:         getEnvBoolOrDefault("TABVOICE_WATCH_TABS", false),
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		JournalDir:        getEnvOrDefault("TABVOICE_JOURNAL_DIR", ""),
		NotifyURL:         getEnvOrDefault("TABVOICE_NOTIFY_URL", ""),
		LaunchBrowser:     getEnvBoolOrDefault("TABVOICE_LAUNCH_BROWSER", false),
		BrowserBinary:     getEnvOrDefault("CHROMIUM_BINARY", ""),
		BrowserProfile:    getEnvOrDefault("CHROMIUM_PROFILE_DIR", "./browser-profile"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.EngineMode != EngineInProcess && cfg.EngineMode != EngineRemote {
		return nil, fmt.Errorf("config: TABVOICE_ENGINE_MODE %q is not %s or %s", cfg.EngineMode, EngineInProcess, EngineRemote)
	}
	if cfg.TransitionTimeout < 100*time.Millisecond {
		cfg.TransitionTimeout = 100 * time.Millisecond
	}
	return cfg, nil
}

// CDPURL returns the CDP endpoint used by the chromedp remote allocator.
func (c *CoordinatorConfig) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}
