package config

import (
	"testing"
	"time"
)

func TestLoadCoordinator_Defaults(t *testing.T) {
	cfg, err := LoadCoordinator()
	if err != nil {
		t.Fatalf("LoadCoordinator() error = %v", err)
	}
	if cfg.EngineMode != EngineInProcess {
		t.Fatalf("EngineMode = %q; want %q", cfg.EngineMode, EngineInProcess)
	}
	if cfg.TransitionTimeout != 10*time.Second {
		t.Fatalf("TransitionTimeout = %v; want 10s", cfg.TransitionTimeout)
	}
	if cfg.LaunchBrowser || cfg.BrowserProfile != "./browser-profile" {
		t.Fatalf("LaunchBrowser, BrowserProfile = %v, %q; want false, ./browser-profile", cfg.LaunchBrowser, cfg.BrowserProfile)
	}
	if got := cfg.CDPURL(); got != "http://127.0.0.1:9220" {
		t.Fatalf("CDPURL() = %q; want http://127.0.0.1:9220", got)
	}
}

func TestLoadCoordinator_FromEnv(t *testing.T) {
	t.Setenv("TABVOICE_ENGINE_MODE", "Remote")
	t.Setenv("TABVOICE_TRANSITION_TIMEOUT_MS", "5")
	t.Setenv("TABVOICE_WATCH_TABS", "true")
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("TABVOICE_PORT_CANDIDATES", " 127.0.0.1:9001, ,127.0.0.1:9002")
	t.Setenv("TABVOICE_PORT_AUTO_FALLBACK", "false")

	cfg, err := LoadCoordinator()
	if err != nil {
		t.Fatalf("LoadCoordinator() error = %v", err)
	}
	if cfg.EngineMode != EngineRemote {
		t.Fatalf("EngineMode = %q; want %q", cfg.EngineMode, EngineRemote)
	}
	if cfg.TransitionTimeout != 100*time.Millisecond {
		t.Fatalf("TransitionTimeout = %v; want floor of 100ms", cfg.TransitionTimeout)
	}
	if !cfg.WatchTabs || cfg.CDPPort != 9333 {
		t.Fatalf("WatchTabs, CDPPort = %v, %d; want true, 9333", cfg.WatchTabs, cfg.CDPPort)
	}
	if len(cfg.PortCandidates) != 2 || cfg.PortCandidates[1] != "127.0.0.1:9002" || cfg.PortAutoFallback {
		t.Fatalf("PortCandidates, PortAutoFallback = %v, %v; want two candidates, false", cfg.PortCandidates, cfg.PortAutoFallback)
	}
}

func TestLoadCoordinator_RejectsBadValues(t *testing.T) {
	t.Setenv("TABVOICE_ENGINE_MODE", "cloud")
	if _, err := LoadCoordinator(); err == nil {
		t.Fatal("LoadCoordinator() = nil error; want bad mode error")
	}
	t.Setenv("TABVOICE_ENGINE_MODE", "")
	t.Setenv("TABVOICE_LOG_LEVEL", "verbose")
	if _, err := LoadCoordinator(); err == nil {
		t.Fatal("LoadCoordinator() = nil error; want bad log level error")
	}
}

func TestLoadEngine(t *testing.T) {
	t.Setenv("TABVOICE_RAMP_MS", "250")
	t.Setenv("TABVOICE_ENGINE_INBOX", "0")
	t.Setenv("TABVOICE_SAMPLE_RATE", "not-a-number")

	cfg, err := LoadEngine()
	if err != nil {
		t.Fatalf("LoadEngine() error = %v", err)
	}
	if cfg.RampWindow != 250*time.Millisecond {
		t.Fatalf("RampWindow = %v; want 250ms", cfg.RampWindow)
	}
	if cfg.InboxSize != 1 {
		t.Fatalf("InboxSize = %d; want 1", cfg.InboxSize)
	}
	if cfg.SampleRate != 48000 {
		t.Fatalf("SampleRate = %v; want default 48000", cfg.SampleRate)
	}
	if cfg.LogFile != "logs/engine.log" {
		t.Fatalf("LogFile = %q; want logs/engine.log", cfg.LogFile)
	}
}
