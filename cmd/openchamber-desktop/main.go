// Package main provides the openchamber-desktop CLI entry point.
//
// openchamber-desktop supervises the local OpenChamber backend for the
// desktop shell: it allocates a loopback port, spawns the backend with a
// built environment, polls its readiness endpoint, and guarantees
// teardown on exit.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Rave28/openchamber/internal/assets"
	"github.com/Rave28/openchamber/internal/config"
	"github.com/Rave28/openchamber/internal/logging"
	"github.com/Rave28/openchamber/internal/netutil"
	"github.com/Rave28/openchamber/internal/orchestrator"
	"github.com/Rave28/openchamber/internal/process"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/openchamber-desktop
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("openchamber-desktop %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// When the TUI is enabled, suppress logs to avoid interfering with
	// dashboard rendering.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle -print-cmd mode
	if cfg.PrintCmd {
		return printSidecarCommand(cfg)
	}

	logger.Info("starting",
		"version", version,
		"executable", cfg.Executable,
		"server_url", cfg.ServerURL,
		"dev_mode", cfg.DevMode,
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	orch := orchestrator.New(cfg, version, logger)
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("launcher_failed", "error", err)
		return 1
	}

	return 0
}

// printSidecarCommand prints the exact invocation a launch would use,
// with a freshly allocated port, then exits.
func printSidecarCommand(cfg *config.Config) int {
	port, err := netutil.AllocatePort()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error allocating port: %v\n", err)
		return 1
	}

	distDir, err := assets.Resolve(cfg.ResourceRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving web assets: %v\n", err)
		return 1
	}

	env := process.BuildEnvironment(port, distDir)
	fmt.Println(process.FormatCommand(cfg.Executable, env))
	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       openchamber-desktop                         ║")
	fmt.Println("║            Local Backend Supervisor for OpenChamber               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	if cfg.ServerURL != "" {
		fmt.Printf("  Server:      %s (external, nothing spawned)\n", cfg.ServerURL)
	} else {
		fmt.Printf("  Executable:  %s\n", cfg.Executable)
		fmt.Printf("  Resources:   %s\n", cfg.ResourceRoot)
	}
	if cfg.DevMode {
		fmt.Printf("  Dev server:  %s (probed first)\n", cfg.DevURL)
	}
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
