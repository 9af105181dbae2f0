// Package metrics provides Prometheus metrics for the desktop launcher.
//
// The launcher exports its own lifecycle metrics (spawns, probes, state)
// and mirrors a small set of metrics scraped from the backend sidecar.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// Launcher Lifecycle
// =============================================================================

var (
	launcherInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openchamber_launcher_info",
			Help: "Information about the launcher build (value always 1)",
		},
		[]string{"version"},
	)

	sidecarState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_sidecar_state",
			Help: "Current sidecar lifecycle state (0=not_started 1=port_allocated 2=spawned 3=healthy 4=failed 5=terminated)",
		},
	)

	sidecarUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_sidecar_up",
			Help: "1 while a spawned sidecar is confirmed healthy",
		},
	)

	sidecarPort = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_sidecar_port",
			Help: "Loopback port allocated for the sidecar (0 = none)",
		},
	)

	spawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openchamber_spawns_total",
			Help: "Total sidecar process spawns",
		},
	)

	spawnFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openchamber_spawn_failures_total",
			Help: "Total launch attempts that failed before the sidecar became healthy",
		},
	)

	terminationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openchamber_terminations_total",
			Help: "Total sidecar teardowns",
		},
	)

	startupDurationSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_startup_duration_seconds",
			Help: "Wall time from launch start until the sidecar answered its first probe",
		},
	)
)

// =============================================================================
// Health Probing
// =============================================================================

var (
	probeAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openchamber_health_probe_attempts_total",
			Help: "Total readiness probe attempts",
		},
	)

	probeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openchamber_health_probe_failures_total",
			Help: "Probe attempts that errored or returned a non-2xx status",
		},
	)

	probeDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "openchamber_health_probe_duration_seconds",
			Help: "Readiness probe round-trip time distribution",
			Buckets: []float64{
				0.001, 0.0025, 0.005, 0.01, 0.025,
				0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
			},
		},
	)

	probeLatencyP50Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_health_probe_latency_p50_seconds",
			Help: "Probe latency 50th percentile over the rolling window",
		},
	)

	probeLatencyP95Seconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_health_probe_latency_p95_seconds",
			Help: "Probe latency 95th percentile over the rolling window",
		},
	)

	probeLatencyMaxSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_health_probe_latency_max_seconds",
			Help: "Maximum probe latency over the rolling window",
		},
	)
)

// =============================================================================
// Backend Mirror (scraped from the sidecar's own /metrics)
// =============================================================================

var (
	backendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_backend_up",
			Help: "1 while the sidecar's /metrics endpoint answers",
		},
	)

	backendGoroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_backend_goroutines",
			Help: "Goroutine count reported by the sidecar",
		},
	)

	backendResidentMemoryBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_backend_resident_memory_bytes",
			Help: "Resident memory reported by the sidecar",
		},
	)

	backendCPURate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openchamber_backend_cpu_rate",
			Help: "Sidecar CPU usage rate derived from successive scrapes (cores)",
		},
	)

	backendScrapesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openchamber_backend_scrapes_total",
			Help: "Total scrapes of the sidecar's /metrics endpoint",
		},
	)

	backendScrapeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openchamber_backend_scrape_failures_total",
			Help: "Sidecar metric scrapes that failed",
		},
	)
)

// =============================================================================
// Collector
// =============================================================================

// Collector owns metric registration and the update entry points wired
// into the supervisor and prober.
type Collector struct {
	version string
}

// NewCollector creates a collector on the default registry.
func NewCollector(version string) *Collector {
	return NewCollectorWithRegistry(version, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(version string, registry prometheus.Registerer) *Collector {
	c := &Collector{version: version}

	registry.MustRegister(
		launcherInfo,
		sidecarState,
		sidecarUp,
		sidecarPort,
		spawnsTotal,
		spawnFailuresTotal,
		terminationsTotal,
		startupDurationSeconds,

		probeAttemptsTotal,
		probeFailuresTotal,
		probeDurationSeconds,
		probeLatencyP50Seconds,
		probeLatencyP95Seconds,
		probeLatencyMaxSeconds,

		backendUp,
		backendGoroutines,
		backendResidentMemoryBytes,
		backendCPURate,
		backendScrapesTotal,
		backendScrapeFailuresTotal,
	)

	launcherInfo.WithLabelValues(version).Set(1)

	return c
}

// ObserveProbe records one readiness probe attempt. Wired into the
// prober's OnAttempt hook.
func (c *Collector) ObserveProbe(d time.Duration, success bool) {
	probeAttemptsTotal.Inc()
	probeDurationSeconds.Observe(d.Seconds())
	if !success {
		probeFailuresTotal.Inc()
	}
}

// RecordSpawn records a sidecar start on the given port.
func (c *Collector) RecordSpawn(port int) {
	spawnsTotal.Inc()
	sidecarPort.Set(float64(port))
}

// RecordSpawnFailure records a launch attempt that never reached healthy.
func (c *Collector) RecordSpawnFailure() {
	spawnFailuresTotal.Inc()
}

// RecordTermination records a sidecar teardown.
func (c *Collector) RecordTermination() {
	terminationsTotal.Inc()
	sidecarUp.Set(0)
	sidecarPort.Set(0)
}

// SetSidecarState mirrors the supervisor state into gauges.
func (c *Collector) SetSidecarState(state int, healthy bool) {
	sidecarState.Set(float64(state))
	if healthy {
		sidecarUp.Set(1)
	} else {
		sidecarUp.Set(0)
	}
}

// SetStartupDuration records how long the sidecar took to become healthy.
func (c *Collector) SetStartupDuration(d time.Duration) {
	startupDurationSeconds.Set(d.Seconds())
}

// ProbeLatencyUpdate holds rolling-window probe latency percentiles.
type ProbeLatencyUpdate struct {
	P50 time.Duration
	P95 time.Duration
	Max time.Duration
}

// UpdateProbeLatency refreshes the pre-calculated percentile gauges.
func (c *Collector) UpdateProbeLatency(u ProbeLatencyUpdate) {
	probeLatencyP50Seconds.Set(u.P50.Seconds())
	probeLatencyP95Seconds.Set(u.P95.Seconds())
	probeLatencyMaxSeconds.Set(u.Max.Seconds())
}

// UpdateBackend mirrors a scraped backend snapshot into gauges.
func (c *Collector) UpdateBackend(snap *BackendSnapshot) {
	backendScrapesTotal.Inc()
	if snap == nil || !snap.Healthy {
		backendScrapeFailuresTotal.Inc()
		backendUp.Set(0)
		return
	}

	backendUp.Set(1)
	backendGoroutines.Set(float64(snap.Goroutines))
	backendResidentMemoryBytes.Set(float64(snap.ResidentMemory))
	backendCPURate.Set(snap.CPURate)
}
