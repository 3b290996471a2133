package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/remy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	logLevel := flag.String("log_level", "", "override log level (debug|info|warn|error)")
	logFormat := flag.String("log_format", "", "override log format (text|json)")
	flag.Parse()

	cfg, err := remy.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	engine, err := remy.NewEngine(remy.EngineOptions{Config: cfg})
	if err != nil {
		slog.Error("engine_init_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session_failed", "error", err, "session_id", engine.SessionID())
		os.Exit(1)
	}
	slog.Info("session_complete", "session_id", engine.SessionID())
}
