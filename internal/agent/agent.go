package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dockpulse/internal/agent/version"
	"dockpulse/internal/api"
	"dockpulse/internal/collector"
	"dockpulse/internal/config"
	"dockpulse/internal/metrics"
	"dockpulse/internal/model"
	"dockpulse/internal/runtime"
	"dockpulse/internal/snapshot"
	"dockpulse/internal/stream"
	"dockpulse/internal/system"
)

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cache     *snapshot.Cache
	hub       *stream.Hub
	runtime   runtime.Source
	scheduler *collector.Scheduler
	forwarder *stream.Forwarder
	health    *HealthStatus
	server    *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	src, err := runtime.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("workload runtime: %w", err)
	}
	return newWithRuntime(cfg, logger, src)
}

func newWithRuntime(cfg config.Config, logger *slog.Logger, src runtime.Source) (*Agent, error) {
	m := metrics.New()
	forwarder, err := stream.NewForwarderFromConfig(cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("grpc forwarder: %w", err)
	}

	cache := snapshot.NewCache()
	hub := stream.NewHub(cache, cfg.ObserverBuffer, logger, m)
	health := NewHealthStatus(src.Name(), 3*cfg.SampleInterval, hub.Len)

	hostCollector := collector.NewHostCollector(system.NewReader(cfg.DiskPath), logger)
	workloadCollector := collector.NewWorkloadCollector(src, cfg.WorkloadReadConcurrency, logger, m)
	scheduler := collector.NewScheduler(
		logger,
		hostCollector,
		workloadCollector,
		&healthStore{store: cache, health: health},
		hub,
		m,
		cfg.SampleInterval,
	)

	router := api.NewRouter(api.Options{
		Snapshots:    cache,
		Hub:          hub,
		Metrics:      m,
		Health:       health,
		Runtime:      src,
		Version:      func() any { return version.Get(cfg) },
		Logger:       logger,
		WriteTimeout: cfg.WebSocketWriteTimeout,
		PingInterval: cfg.WebSocketPingInterval,
	})

	return &Agent{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		cache:     cache,
		hub:       hub,
		runtime:   src,
		scheduler: scheduler,
		forwarder: forwarder,
		health:    health,
		server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting dockpulse",
		"version", a.cfg.AgentVersion,
		"http_addr", a.cfg.HTTPAddr,
		"workload_runtime", a.runtime.Name(),
		"sample_interval", a.cfg.SampleInterval,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// graceful stop completed in time
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("dockpulse stopped")
	return nil
}

// Sample runs one cycle, or two separated by wait so workload CPU percentages
// have a previous reading to compare against.
func (a *Agent) Sample(ctx context.Context, wait time.Duration) (*model.CombinedSnapshot, error) {
	snap, err := a.scheduler.RunCycle(ctx)
	if err != nil || wait <= 0 {
		return snap, err
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}
	return a.scheduler.RunCycle(ctx)
}

// Close releases the workload runtime and forwarder without running the agent.
func (a *Agent) Close() error {
	a.hub.Close()
	var errs []error
	if a.forwarder != nil {
		errs = append(errs, a.forwarder.Close())
	}
	errs = append(errs, a.runtime.Close())
	return errors.Join(errs...)
}

func BuildLogger(cfg config.Config) *slog.Logger {
	return NewLogger(cfg, os.Stdout)
}

// NewLogger is BuildLogger writing to w.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(w, hOpts))
	}
	return slog.New(slog.NewTextHandler(w, hOpts))
}
