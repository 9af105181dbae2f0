// Package orchestrator wires the sidecar supervisor to observability and
// the terminal dashboard, and owns startup and shutdown ordering.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rave28/openchamber/internal/config"
	"github.com/Rave28/openchamber/internal/metrics"
	"github.com/Rave28/openchamber/internal/preflight"
	"github.com/Rave28/openchamber/internal/supervisor"
	"github.com/Rave28/openchamber/internal/tui"
)

// latencyRefreshInterval is how often probe latency percentiles are
// pushed into the Prometheus gauges.
const latencyRefreshInterval = 5 * time.Second

// Orchestrator owns the supervisor and its observability surround.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	supervisor    *supervisor.Supervisor
	collector     *metrics.Collector // nil when metrics are disabled
	metricsServer *metrics.Server    // nil when metrics are disabled
	scraper       *metrics.BackendScraper

	startTime time.Time
}

// New creates an Orchestrator from validated configuration.
func New(cfg *config.Config, version string, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		config:  cfg,
		logger:  logger,
		version: version,
	}

	if cfg.MetricsAddr != "" {
		o.collector = metrics.NewCollector(version)
	}
	o.scraper = metrics.NewBackendScraper(cfg.BackendScrapeInterval, o.collector, logger)
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.scraper, logger)
	}

	o.supervisor = supervisor.New(supervisor.Config{
		Executable:    cfg.Executable,
		ResourceRoot:  cfg.ResourceRoot,
		ServerURL:     cfg.ServerURL,
		DevMode:       cfg.DevMode,
		DevURL:        cfg.DevURL,
		HealthTimeout: cfg.HealthTimeout,
		PollInterval:  cfg.PollInterval,
		Logger:        logger,
		Callbacks: supervisor.Callbacks{
			OnStateChange: o.onStateChange,
			OnSpawn:       o.onSpawn,
			OnHealthy:     o.onHealthy,
		},
	})

	if o.collector != nil {
		o.supervisor.Prober().OnAttempt = o.collector.ObserveProbe
	}

	return o
}

// Run launches the backend and blocks until a signal, dashboard quit, or
// context cancellation. The sidecar is torn down before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	if !o.config.SkipPreflight && o.config.ServerURL == "" {
		result := preflight.RunAll(o.config.Executable, o.config.ResourceRoot)
		if !o.config.TUIEnabled {
			preflight.PrintResults(result)
		}
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	baseURL, err := o.supervisor.EnsureRunning(ctx)
	if err != nil {
		if o.collector != nil {
			o.collector.RecordSpawnFailure()
		}
		o.shutdown()
		return fmt.Errorf("backend launch failed: %w", err)
	}

	o.logger.Info("backend_available", "url", baseURL)

	o.scraper.SetBaseURL(baseURL)
	go o.scraper.Run(ctx)
	if o.collector != nil {
		go o.refreshLatencyGauges(ctx)
	}

	// Dashboard quit and OS signals both end the run.
	if o.config.TUIEnabled {
		err = o.runDashboard(ctx, sigCh)
	} else {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
		case <-ctx.Done():
			o.logger.Info("context_cancelled")
		}
	}

	cancel()
	o.shutdown()

	return err
}

// runDashboard runs the TUI, forwarding signals into a quit message.
func (o *Orchestrator) runDashboard(ctx context.Context, sigCh <-chan os.Signal) error {
	model := tui.New(tui.Config{
		Version:     o.version,
		MetricsAddr: o.config.MetricsAddr,
		Status:      o.supervisor,
		Latency:     o.supervisor.Prober().Latency(),
		Scraper:     o.scraper,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		select {
		case <-sigCh:
			tui.SendQuit(program)
		case <-ctx.Done():
			tui.SendQuit(program)
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// shutdown tears down the sidecar and the metrics server.
func (o *Orchestrator) shutdown() {
	wasRunning := o.supervisor.Running()
	o.supervisor.Terminate()
	if wasRunning && o.collector != nil {
		o.collector.RecordTermination()
	}

	if o.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	o.logger.Info("shutdown_complete", "uptime", time.Since(o.startTime).String())
}

// refreshLatencyGauges periodically mirrors probe percentiles into
// Prometheus gauges.
func (o *Orchestrator) refreshLatencyGauges(ctx context.Context) {
	ticker := time.NewTicker(latencyRefreshInterval)
	defer ticker.Stop()

	tracker := o.supervisor.Prober().Latency()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := tracker.Snapshot()
			o.collector.UpdateProbeLatency(metrics.ProbeLatencyUpdate{
				P50: stats.P50,
				P95: stats.P95,
				Max: stats.Max,
			})
		}
	}
}

// onStateChange mirrors supervisor state into metrics and the log.
func (o *Orchestrator) onStateChange(oldState, newState supervisor.State) {
	o.logger.Debug("sidecar_state_changed",
		"old", oldState.String(),
		"new", newState.String(),
	)
	if o.collector != nil {
		o.collector.SetSidecarState(int(newState), newState == supervisor.StateHealthy)
	}
}

func (o *Orchestrator) onSpawn(pid, port int) {
	if o.collector != nil {
		o.collector.RecordSpawn(port)
	}
}

func (o *Orchestrator) onHealthy(baseURL string, startupTime time.Duration) {
	if o.collector != nil {
		o.collector.SetStartupDuration(startupTime)
	}
}

// Supervisor exposes the supervised sidecar handle.
func (o *Orchestrator) Supervisor() *supervisor.Supervisor {
	return o.supervisor
}

// Scraper exposes the backend metrics scraper.
func (o *Orchestrator) Scraper() *metrics.BackendScraper {
	return o.scraper
}
