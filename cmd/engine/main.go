package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/config"
	"github.com/dgnsrekt/tabvoice/internal/link"
	"github.com/dgnsrekt/tabvoice/internal/pipeline"
	"github.com/dgnsrekt/tabvoice/internal/platform/virtual"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.LoadEngine()
	if err != nil {
		slog.Error("failed to load engine config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("engine config loaded",
		"coordinator_url", cfg.CoordinatorURL,
		"sample_rate", cfg.SampleRate,
		"ramp", cfg.RampWindow,
		"acquire_timeout", cfg.AcquireTimeout,
		"tuning_file", cfg.TuningFile,
		"log_level", cfg.LogLevel,
	)

	opts := pipeline.Options{RampWindow: cfg.RampWindow, AcquireTimeout: cfg.AcquireTimeout}
	if cfg.TuningFile != "" {
		tuning, err := pipeline.LoadTuning(cfg.TuningFile)
		if err != nil {
			slog.Error("failed to load tuning", "file", cfg.TuningFile, "error", err)
			os.Exit(1)
		}
		opts.Tuning = &tuning
	}

	// Stream ids are issued on the coordinator side, so any id is accepted here.
	platform := virtual.New(virtual.WithOpenAcquire(), virtual.WithSampleRate(cfg.SampleRate))
	client := link.NewClient(cfg.CoordinatorURL, cfg.Retry)
	engine := pipeline.NewEngine(platform, client, opts)
	inbox := bus.NewMailbox(cfg.InboxSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go client.Run(ctx, inbox)
	go func() {
		<-ctx.Done()
		inbox.Close()
	}()

	slog.Info("engine running")
	engine.Run(ctx, inbox.Inbox())

	for _, tabID := range engine.Sessions() {
		engine.Stop(context.Background(), tabID)
	}
	slog.Info("engine stopped")
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
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

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}
	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
