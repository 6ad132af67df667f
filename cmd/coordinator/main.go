package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/api"
	"github.com/dgnsrekt/tabvoice/internal/browser"
	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/config"
	"github.com/dgnsrekt/tabvoice/internal/coordinator"
	"github.com/dgnsrekt/tabvoice/internal/host"
	"github.com/dgnsrekt/tabvoice/internal/journal"
	"github.com/dgnsrekt/tabvoice/internal/link"
	"github.com/dgnsrekt/tabvoice/internal/netutil"
	"github.com/dgnsrekt/tabvoice/internal/notify"
	"github.com/dgnsrekt/tabvoice/internal/pipeline"
	"github.com/dgnsrekt/tabvoice/internal/platform/virtual"
	"github.com/dgnsrekt/tabvoice/internal/relay"
	"github.com/dgnsrekt/tabvoice/internal/settings"
	"github.com/dgnsrekt/tabvoice/internal/tabwatch"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.LoadCoordinator()
	if err != nil {
		slog.Error("failed to load coordinator config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("coordinator config loaded",
		"bind_addr", cfg.BindAddr,
		"engine_mode", cfg.EngineMode,
		"transition_timeout", cfg.TransitionTimeout,
		"watch_tabs", cfg.WatchTabs,
		"journal_dir", cfg.JournalDir,
		"notify", cfg.NotifyURL != "",
		"tuning_file", cfg.TuningFile,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	broker := relay.NewBroker()
	surface := []bus.Sender{broker}
	if cfg.JournalDir != "" {
		j := journal.New(cfg.JournalDir, 256, 25)
		defer func() { _ = j.Close() }()
		surface = append(surface, j)
	}
	if cfg.NotifyURL != "" {
		n := notify.New(cfg.NotifyURL, nil)
		defer n.Close()
		surface = append(surface, n)
	}
	up := bus.NewMailbox(host.DefaultInboxSize)
	platform := virtual.New(virtual.WithSampleRate(cfg.SampleRate))

	var (
		engineHost coordinator.Host
		inspector  api.Inspector
		engineLink http.Handler
	)
	switch cfg.EngineMode {
	case config.EngineRemote:
		srv := link.NewServer(up, cfg.EngineWait)
		engineHost, engineLink = srv, srv
	default:
		opts := pipeline.Options{}
		if cfg.TuningFile != "" {
			tuning, err := pipeline.LoadTuning(cfg.TuningFile)
			if err != nil {
				slog.Error("failed to load tuning", "file", cfg.TuningFile, "error", err)
				os.Exit(1)
			}
			opts.Tuning = &tuning
		}
		inproc := host.NewInProcess(platform, up, opts, host.DefaultInboxSize)
		defer inproc.Close()
		engineHost = inproc
		inspector = func(tabID settings.TabID) ([]pipeline.StageSnapshot, settings.EnhancementConfig, error) {
			e := inproc.Engine()
			if e == nil {
				return nil, settings.EnhancementConfig{}, pipeline.ErrNoSession
			}
			return e.Snapshot(tabID)
		}
	}

	coord := coordinator.New(engineHost, platform, coordinator.Options{
		Surface:           bus.Tee(surface...),
		Store:             settings.NewStore(),
		TransitionTimeout: cfg.TransitionTimeout,
	})
	go coord.Run(ctx, up.Inbox())

	serverOpts := []api.Option{api.WithEvents(broker)}
	if engineLink != nil {
		serverOpts = append(serverOpts, api.WithEngineLink(engineLink))
	}
	if inspector != nil {
		serverOpts = append(serverOpts, api.WithInspector(inspector))
	}
	if cfg.WatchTabs && cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.BrowserProfile,
			Binary:     cfg.BrowserBinary,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Warn("browser launch failed", "error", err)
		}
		defer launcher.Stop()
	}
	if cfg.WatchTabs {
		registry := tabwatch.NewRegistry()
		watcher := tabwatch.NewWatcher(cfg.CDPURL(), registry, coord)
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("tab watcher unavailable, continuing without it", "cdp_url", cfg.CDPURL(), "error", err)
		} else {
			defer watcher.Close()
			serverOpts = append(serverOpts, api.WithBrowserTabs(registry))
		}
	}

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(coord, serverOpts...)}

	go func() {
		slog.Info("coordinator listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("coordinator server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("coordinator shutdown failed", "error", err)
	}
	up.Close()
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
