// Package remy assembles the configured providers into a running session:
// ledger, duplex arbiter, timer registry, coordinator, observers, lifecycle.
package remy

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/remy/pkg/duplex"
	"github.com/harunnryd/remy/pkg/ledger"
	"github.com/harunnryd/remy/pkg/metrics"
	"github.com/harunnryd/remy/pkg/notify"
	"github.com/harunnryd/remy/pkg/observers"
	"github.com/harunnryd/remy/pkg/ports"
	"github.com/harunnryd/remy/pkg/redact"
	"github.com/harunnryd/remy/pkg/runner"
	"github.com/harunnryd/remy/pkg/timers"
	"github.com/harunnryd/remy/pkg/turn"
)

type Engine struct {
	cfg       Config
	sessionID string

	coordinator *turn.Coordinator
	audio       *duplex.Arbiter
	mic         ports.AudioSource
	camera      ports.ImageSource
	notifier    notify.Notifier

	asyncObs *metrics.AsyncObserver
	jsonlObs *metrics.JSONLObserver
	statsObs *observers.SessionStatsObserver
	runner   *runner.LifecycleRunner
	logger   *slog.Logger
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
}

// starter is the optional lifecycle hook a provider may implement; the
// Deepgram mic opens its websocket here.
type starter interface {
	Start(ctx context.Context) error
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	redact.SetEnabled(cfg.Privacy.RedactPII)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	sessionID := uuid.NewString()
	logger := slog.Default().With(slog.String("session_id", sessionID))

	logger.Info("remy_init",
		"environment", cfg.Environment,
		"oracle_provider", cfg.Vendors.Oracle.Provider,
		"mic_provider", cfg.Vendors.Mic.Provider,
		"speaker_provider", cfg.Vendors.Speaker.Provider,
		"camera_provider", cfg.Vendors.Camera.Provider,
	)

	table, err := cfg.StateTable()
	if err != nil {
		return nil, err
	}

	decider, err := providers.BuildOracle(cfg.Vendors.Oracle.Provider, cfg)
	if err != nil {
		return nil, err
	}
	mic, err := providers.BuildMic(cfg.Vendors.Mic.Provider, cfg)
	if err != nil {
		return nil, err
	}
	speaker, err := providers.BuildSpeaker(cfg.Vendors.Speaker.Provider, cfg)
	if err != nil {
		return nil, err
	}
	camera, err := providers.BuildCamera(cfg.Vendors.Camera.Provider, cfg)
	if err != nil {
		return nil, err
	}
	notifier, err := providers.BuildNotifier(cfg.Notify.Provider, cfg)
	if err != nil {
		return nil, err
	}

	statsObs := observers.NewSessionStatsObserver(logger)
	obsList := []metrics.Observer{observers.NewLoggerObserver(logger), statsObs}
	var jsonlObs *metrics.JSONLObserver
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
		}
		jsonlObs, err = metrics.NewJSONLFileObserver(dir, sessionID)
		if err != nil {
			return nil, fmt.Errorf("metrics artifacts: %w", err)
		}
		var fileObs metrics.Observer = jsonlObs
		if cfg.Observability.SampleRate > 0 && cfg.Observability.SampleRate < 1 {
			fileObs = metrics.NewSamplingObserver(fileObs, cfg.Observability.SampleRate)
		}
		obsList = append(obsList, fileObs)
	}
	asyncObs := metrics.NewAsyncObserver(observers.NewMultiObserver(obsList...), 2048)
	var obs metrics.Observer = asyncObs

	ledgerOpts := ledger.Options{
		KeepImages: cfg.History.KeepImages,
		Logger:     logger,
	}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		dumper, err := ledger.NewFileDumper(dir, sessionID)
		if err != nil {
			return nil, fmt.Errorf("ledger artifacts: %w", err)
		}
		ledgerOpts.Dumper = dumper
	}

	audio := duplex.New(speaker, mic, duplex.WithLogger(logger))

	coordinator, err := turn.NewCoordinator(turn.CoordinatorConfig{
		InitialState:    cfg.Coordinator.InitialState,
		MonitoringState: cfg.Coordinator.MonitoringState,
		ListenTimeout:   time.Duration(cfg.Coordinator.ListenTimeoutMS) * time.Millisecond,
		ReactivePoll:    time.Duration(cfg.Coordinator.ReactivePollMS) * time.Millisecond,
		IdleDelay:       time.Duration(cfg.Coordinator.IdleDelayMS) * time.Millisecond,
		Greeting:        cfg.Greeting,
	}, turn.CoordinatorDeps{
		Table:    table,
		Ledger:   ledger.New(ledgerOpts),
		Timers:   timers.NewRegistry(),
		Audio:    audio,
		Camera:   camera,
		Oracle:   decider,
		Notifier: notifier,
		Observer: obs,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		sessionID:   sessionID,
		coordinator: coordinator,
		audio:       audio,
		mic:         mic,
		camera:      camera,
		notifier:    notifier,
		asyncObs:    asyncObs,
		jsonlObs:    jsonlObs,
		statsObs:    statsObs,
		logger:      logger,
	}

	hooks := runner.Hooks{
		OnStart: func() {
			logger.Info("engine_ready",
				"initial_state", cfg.Coordinator.InitialState,
				"states", len(cfg.States))
		},
		OnStop: func() {
			logger.Info("shutdown", "goroutines", runtime.NumGoroutine())
		},
	}
	e.runner = runner.NewLifecycleRunner(drainerFunc(e.drain), hooks, 30*time.Second)
	return e, nil
}

func (e *Engine) SessionID() string { return e.sessionID }

func (e *Engine) Config() Config { return e.cfg }

// Run drives the session to completion: terminal state, context cancellation,
// or a fatal coordinator error. The drain sequence runs in every case.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s, ok := e.mic.(starter); ok {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start mic: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordErr := make(chan error, 1)
	go func() {
		coordErr <- e.coordinator.Run(runCtx)
	}()

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- e.runner.Run(runCtx)
	}()

	err := <-coordErr
	cancel()
	<-runnerDone

	if err != nil && ctx.Err() != nil {
		// Cancellation requested by the caller is a clean exit.
		return nil
	}
	return err
}

func (e *Engine) Stop() error {
	return e.runner.Stop()
}

func (e *Engine) drain() error {
	if e.audio != nil {
		_ = e.audio.Close()
	}
	if e.mic != nil {
		_ = e.mic.Close()
	}
	if e.camera != nil {
		_ = e.camera.Close()
	}
	if e.asyncObs != nil {
		e.asyncObs.Close()
	}
	if e.statsObs != nil {
		_ = e.statsObs.Close()
	}
	if e.jsonlObs != nil {
		_ = e.jsonlObs.Close()
	}
	return nil
}

type drainerFunc func() error

func (f drainerFunc) Drain() error { return f() }
