package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ParseFlags parses command-line flags and returns a Config.
// Precedence: defaults < config file < environment < flags.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()
	var configFile string

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `openchamber-desktop - local backend supervisor for the OpenChamber desktop shell

Usage:
  openchamber-desktop [flags]

Sidecar Flags:
`)
		printFlagCategory([]string{"executable", "resources", "config"})

		fmt.Fprintf(os.Stderr, "\nServer Selection:\n")
		printFlagCategory([]string{"server-url", "dev", "dev-url"})

		fmt.Fprintf(os.Stderr, "\nHealth Probing:\n")
		printFlagCategory([]string{"health-timeout", "poll-interval"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format", "backend-scrape-interval"})

		fmt.Fprintf(os.Stderr, "\nDashboard:\n")
		printFlagCategory([]string{"tui"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics:\n")
		printFlagCategory([]string{"print-cmd", "skip-preflight"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Launch and supervise the bundled backend
  openchamber-desktop -resources /opt/openchamber

  # Connect to an existing remote server instead of spawning
  openchamber-desktop -server-url https://chamber.example.com

  # Developer workflow: reuse the CLI-managed dev server if healthy
  openchamber-desktop -dev

`)
	}

	// Sidecar
	flag.StringVar(&cfg.Executable, "executable", cfg.Executable, "Backend executable name")
	flag.StringVar(&cfg.ResourceRoot, "resources", cfg.ResourceRoot, "Resource root containing bundled web assets")
	flag.StringVar(&configFile, "config", "", "YAML config file path")

	// Server selection
	flag.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "Explicit server URL (skips spawning)")
	flag.BoolVar(&cfg.DevMode, "dev", cfg.DevMode, "Probe the developer server before spawning")
	flag.StringVar(&cfg.DevURL, "dev-url", cfg.DevURL, "Developer server URL probed in -dev mode")

	// Health probing
	flag.DurationVar(&cfg.HealthTimeout, "health-timeout", cfg.HealthTimeout, "Total readiness deadline")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Delay between readiness probes")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	flag.DurationVar(&cfg.BackendScrapeInterval, "backend-scrape-interval", cfg.BackendScrapeInterval,
		"Interval for scraping the backend's /metrics endpoint")

	// Dashboard
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Diagnostics
	flag.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the sidecar invocation and exit")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Parse
	flag.Parse()

	// Config file settings sit below environment and flags. Re-apply
	// both after loading so the file never overrides them.
	if configFile != "" {
		fileCfg := DefaultConfig()
		if err := LoadFile(fileCfg, configFile); err != nil {
			return nil, err
		}
		merged := *fileCfg
		applyFlagOverrides(&merged, cfg)
		cfg = &merged
	}

	ApplyEnv(cfg)

	return cfg, nil
}

// applyFlagOverrides copies explicitly-set flag values from src onto dst.
func applyFlagOverrides(dst, src *Config) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["executable"] {
		dst.Executable = src.Executable
	}
	if set["resources"] {
		dst.ResourceRoot = src.ResourceRoot
	}
	if set["server-url"] {
		dst.ServerURL = src.ServerURL
	}
	if set["dev"] {
		dst.DevMode = src.DevMode
	}
	if set["dev-url"] {
		dst.DevURL = src.DevURL
	}
	if set["health-timeout"] {
		dst.HealthTimeout = src.HealthTimeout
	}
	if set["poll-interval"] {
		dst.PollInterval = src.PollInterval
	}
	if set["metrics"] {
		dst.MetricsAddr = src.MetricsAddr
	}
	if set["v"] {
		dst.Verbose = src.Verbose
	}
	if set["log-format"] {
		dst.LogFormat = src.LogFormat
	}
	if set["backend-scrape-interval"] {
		dst.BackendScrapeInterval = src.BackendScrapeInterval
	}
	if set["tui"] {
		dst.TUIEnabled = src.TUIEnabled
	}
	if set["print-cmd"] {
		dst.PrintCmd = src.PrintCmd
	}
	if set["skip-preflight"] {
		dst.SkipPreflight = src.SkipPreflight
	}
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
