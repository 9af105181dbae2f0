// Package health implements bounded readiness polling of the sidecar.
package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultRequestTimeout bounds a single probe request so a hung
	// connection cannot consume the whole readiness deadline.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultLatencyWindow is the rolling window for probe latency percentiles.
	DefaultLatencyWindow = 60 * time.Second
)

// CheckConfig holds the parameters of one readiness-polling run.
type CheckConfig struct {
	BaseURL      string
	Timeout      time.Duration // total deadline
	PollInterval time.Duration // fixed delay between attempts
}

// Validate checks the polling invariant: interval strictly below timeout.
func (c CheckConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %v)", c.Timeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive (got %v)", c.PollInterval)
	}
	if c.PollInterval >= c.Timeout {
		return fmt.Errorf("poll interval must be shorter than timeout (%v >= %v)", c.PollInterval, c.Timeout)
	}
	return nil
}

// HealthURL returns the readiness endpoint for the configured base URL.
func (c CheckConfig) HealthURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/health"
}

// Prober polls an HTTP readiness endpoint until success or deadline.
// Its client bypasses any inherited HTTP proxy so loopback probes never
// detour through one.
type Prober struct {
	client  *http.Client
	logger  *slog.Logger
	latency *LatencyTracker

	// OnAttempt, if set, is invoked after every probe attempt.
	OnAttempt func(duration time.Duration, success bool)
}

// NewProber creates a Prober with a proxy-bypassing HTTP client.
func NewProber(logger *slog.Logger) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	return &Prober{
		client: &http.Client{
			Transport: transport,
			Timeout:   DefaultRequestTimeout,
		},
		logger:  logger,
		latency: NewLatencyTracker(DefaultLatencyWindow),
	}
}

// Latency returns the rolling probe-latency tracker.
func (p *Prober) Latency() *LatencyTracker {
	return p.latency
}

// AwaitReady polls GET {base_url}/health at the configured fixed interval
// until a 2xx response or the deadline. Individual request failures are
// swallowed; only deadline exhaustion is terminal. Returns true on the
// first success, false once the deadline passes without one.
func (p *Prober) AwaitReady(ctx context.Context, cfg CheckConfig) bool {
	url := cfg.HealthURL()
	deadline := time.Now().Add(cfg.Timeout)

	for {
		if p.probe(ctx, url) {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(cfg.PollInterval):
		}

		if !time.Now().Before(deadline) {
			p.logger.Debug("health_deadline_exhausted", "url", url, "timeout", cfg.Timeout.String())
			return false
		}
	}
}

// probe issues a single readiness request. Success is any 2xx status.
func (p *Prober) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	success := false
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		success = resp.StatusCode >= 200 && resp.StatusCode < 300
	}

	p.latency.Record(elapsed)
	if p.OnAttempt != nil {
		p.OnAttempt(elapsed, success)
	}

	if !success {
		if err != nil {
			p.logger.Debug("health_probe_error", "url", url, "error", err)
		} else {
			p.logger.Debug("health_probe_not_ready", "url", url, "status", resp.StatusCode)
		}
	}

	return success
}
